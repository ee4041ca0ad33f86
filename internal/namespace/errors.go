package namespace

import (
	"errors"
	"fmt"

	"github.com/roach88/fsmnet/internal/ir"
)

var (
	// ErrTooLateToRegister is returned by Register once the namespace has
	// been compiled.
	ErrTooLateToRegister = errors.New("namespace already compiled")

	// ErrNotCompiled is returned by Execute before Compile has succeeded.
	ErrNotCompiled = errors.New("namespace not compiled")
)

// GuardError reports a registration whose guard could not be compiled. Err
// is usually a *guard.ParseError.
type GuardError struct {
	Registration ir.Registration
	Err          error
}

func (e *GuardError) Error() string {
	r := e.Registration
	return fmt.Sprintf("guard %q on %s (%s -> %s, event %s): %v",
		r.Guard, r.Machine, r.From, r.To, r.EventClass, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }

// IsGuardError returns true if err is or wraps a *GuardError.
func IsGuardError(err error) bool {
	var ge *GuardError
	return errors.As(err, &ge)
}
