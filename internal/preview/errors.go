package preview

import (
	"fmt"
	"net/http"
)

// Error is a fatal job error surfaced to the caller as {code, message}.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func internalError(err error, format string, args ...interface{}) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: fmt.Sprintf(format, args...), Err: err}
}

// unexpectedType reports content whose MIME type does not match what a step requires.
func unexpectedType(what, actual string, expected ...string) *Error {
	return &Error{
		Code:    http.StatusInternalServerError,
		Message: fmt.Sprintf("unexpected MIME type %q for %s, expected one of %v", actual, what, expected),
	}
}
