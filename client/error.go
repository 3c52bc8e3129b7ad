package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx gateway response.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// IsErrorViolation reports an aborting existence violation.
func IsErrorViolation(err error) bool {
	return hasCode(err, http.StatusConflict)
}

// IsErrorUnavailable reports a failed or discarded transaction. The
// operation may be retried.
func IsErrorUnavailable(err error) bool {
	return hasCode(err, http.StatusServiceUnavailable)
}

func IsErrorBadRequest(err error) bool {
	return hasCode(err, http.StatusBadRequest)
}

func hasCode(err error, code int) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
