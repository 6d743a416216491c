package diag

import (
	"errors"
	"fmt"
)

// Error is a fatal diagnostic carried through error returns.
type Error struct {
	Code Code
	Loc  Location
	Msg  string
	Err  error
}

// Errorf builds an *Error with a formatted message. A trailing %w verb wraps
// its operand as usual.
func Errorf(code Code, loc Location, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Code: code, Loc: loc, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: %s", e.Code.ID(), e.Loc, e.Msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Diagnostic converts e into an error-level diagnostic.
func (e *Error) Diagnostic() Diagnostic {
	return NewError(e.Code, e.Loc, e.Msg)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return UnknownCode, false
}

// ReportErr forwards err to r. Errors that are not *Error are reported with
// fallback as their code.
func ReportErr(r Reporter, fallback Code, err error) {
	if r == nil || err == nil {
		return
	}
	var de *Error
	if errors.As(err, &de) {
		r.Report(de.Code, SevError, de.Loc, de.Msg, nil)
		return
	}
	r.Report(fallback, SevError, NoLocation, err.Error(), nil)
}
