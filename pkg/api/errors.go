package api

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindInvalidRequest is a malformed URL or an unencodable body. Not retried.
	KindInvalidRequest ErrorKind = iota + 1
	// KindNoResponseBody is a successful status with nothing to decode.
	KindNoResponseBody
	// KindDecodeFailure is a body that does not match the expected shape.
	KindDecodeFailure
	// KindTransport covers connectivity failures and timeouts.
	KindTransport
	// KindHTTPStatus is a non-2xx response.
	KindHTTPStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindNoResponseBody:
		return "no response body"
	case KindDecodeFailure:
		return "decode failure"
	case KindTransport:
		return "transport"
	case KindHTTPStatus:
		return "http status"
	}
	return "unknown"
}

// Error is returned by every Client method.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: http error: %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
