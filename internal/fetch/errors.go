package fetch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures.
type ErrorKind int

const (
	// KindTransport covers connection failures, timeouts and TLS errors.
	KindTransport ErrorKind = iota
	// KindStatus means the server answered with a non-2xx status.
	KindStatus
	// KindBodyRead means the response body could not be read completely.
	KindBodyRead
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindBodyRead:
		return "body read"
	default:
		return "unknown"
	}
}

// Error is returned by Fetch.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int // set for KindStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a fetch *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
