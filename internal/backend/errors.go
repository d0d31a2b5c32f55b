package backend

import "fmt"

// ErrorKind classifies a failed backend call
type ErrorKind string

const (
	// ErrTransport: the request never produced a response
	ErrTransport ErrorKind = "transport"
	// ErrStatus: the backend answered with a non-2xx status
	ErrStatus ErrorKind = "status"
	// ErrDomain: the backend answered 2xx with an "error" field
	ErrDomain ErrorKind = "domain"
	// ErrDecode: the response body did not have the expected shape
	ErrDecode ErrorKind = "decode"
)

// Error is the single error type returned by Client methods. Message is
// meant for the status bar as-is.
type Error struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(endpoint string, err error) *Error {
	return &Error{
		Kind:     ErrTransport,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("could not reach the analysis backend: %v", err),
		Err:      err,
	}
}

func decodeError(endpoint string, err error) *Error {
	return &Error{
		Kind:     ErrDecode,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("unexpected response from %s: %v", endpoint, err),
		Err:      err,
	}
}
