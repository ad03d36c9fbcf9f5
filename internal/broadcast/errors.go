package broadcast

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the concrete error is usually *Error.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrRemote     = errors.New("remote service error")
	ErrParse      = errors.New("parse error")
)

// Error attaches a kind and the failing operation to an underlying error.
//
// Example:
//
//	return broadcast.WrapRemote("bind stream", err)
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return fmt.Sprint(e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Err: fmt.Errorf(format, args...)}
}

func Parsef(format string, args ...any) error {
	return &Error{Kind: ErrParse, Err: fmt.Errorf(format, args...)}
}

// WrapRemote wraps a failure from the video service. Errors that already carry
// a kind (for example a not-found mapped by the client) are returned as-is.
func WrapRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrRemote, Op: op, Err: err}
}

// KindOf returns the matching kind sentinel, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrParse, ErrRemote} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
