package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/ir"
)

// loadSpecs loads every namespace under path and validates it. Specs that
// do not load are a command error; specs that load but do not validate
// are a failure.
func loadSpecs(path string) ([]ir.NamespaceSpec, error) {
	res, errs := compiler.Load(path, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load specs", errs[0])
	}
	for i := range res.Namespaces {
		if verrs := compiler.Validate(&res.Namespaces[i]); len(verrs) > 0 {
			return nil, WrapExitError(ExitFailure, "invalid specs", verrs[0])
		}
	}
	return res.Namespaces, nil
}

// loadErrorCode splits a load error into its code and message.
func loadErrorCode(err error) (string, string) {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	return compiler.ErrCodeGeneric, err.Error()
}

func loadErrorPos(err error) token.Pos {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Pos
	}
	return token.NoPos
}

// outputLoadErrors reports every load error and returns the exit error
// for them. what names the step that failed ("Compilation", "Validation").
func outputLoadErrors(f *OutputFormatter, what string, errs []error) error {
	exit := NewExitError(ExitCommandError, fmt.Sprintf("%s failed with %d error(s)", what, len(errs)))

	if f.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := loadErrorCode(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := f.Encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors}); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintf(f.Writer, "✗ %s failed\n\n", what)
	for _, err := range errs {
		if pos := loadErrorPos(err); pos.IsValid() {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n", pos.Filename(), pos.Line(), pos.Column())
		}
		code, message := loadErrorCode(err)
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", code, message)
	}
	return exit
}

// outputValidationErrors reports validation errors and returns the exit
// error for them (exit code 1).
func outputValidationErrors(f *OutputFormatter, what string, errs []compiler.ValidationError) error {
	exit := NewExitError(ExitFailure, fmt.Sprintf("%s failed with %d error(s)", what, len(errs)))

	if f.JSON() {
		if err := f.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintf(f.Writer, "✗ %s failed\n\n", what)
	for _, e := range errs {
		fmt.Fprintf(f.Writer, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
	}
	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "%d error(s)\n", len(errs))
	return exit
}
