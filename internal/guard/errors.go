package guard

import (
	"errors"
	"fmt"
)

// ParseError reports malformed guard text.
type ParseError struct {
	Input   string
	Pos     int // byte offset of the offending input
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("guard %q: %s at offset %d", e.Input, e.Message, e.Pos)
}

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
