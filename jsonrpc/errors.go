package jsonrpc

import (
	"errors"
	"fmt"
)

// ErrInvalidRegistration is returned when registering an empty method name or
// a nil handler.
var ErrInvalidRegistration = errors.New("jsonrpc: invalid registration")

// Failure is an expected, handler-signaled RPC failure. It is the only kind of
// handler error the dispatcher turns into a wire error; any other error is
// treated as a fault.
type Failure struct {
	Code    int
	Message string
}

// Fail returns a Failure with the given code and message.
func Fail(code int, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

// Failf is like Fail with a formatted message.
func Failf(code int, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	if f == nil {
		return "jsonrpc: failure: <nil>"
	}
	return fmt.Sprintf("jsonrpc: failure %d: %s", f.Code, f.Message)
}

// DuplicateMethodError is returned when a method name is registered twice.
// The first registration is kept.
type DuplicateMethodError struct {
	Name string
}

func (e *DuplicateMethodError) Error() string {
	return "jsonrpc: method already registered: " + e.Name
}

// UnknownMethodError is returned by Registry.Invoke for a name that was never
// registered. Dispatch checks Has first and reports unknown methods in the
// Response instead.
type UnknownMethodError struct {
	Name string
}

func (e *UnknownMethodError) Error() string {
	return "jsonrpc: unknown method: " + e.Name
}

// InvalidRequestError reports a malformed request envelope. It is returned by
// Dispatch before any method lookup.
type InvalidRequestError struct {
	Reason string
	// ID is the request id, if the request carried one.
	ID Value
}

func (e *InvalidRequestError) Error() string {
	return "jsonrpc: invalid request: " + e.Reason
}

// Code returns the wire error code for the error.
func (e *InvalidRequestError) Code() int {
	return CodeInvalidRequest
}

// Response builds the error response for the malformed request. The id is
// null when the request did not carry one.
func (e *InvalidRequestError) Response() *Response {
	id := e.ID
	if id.IsZero() {
		id = RawJSON([]byte("null"))
	}
	return &Response{
		ID:    id,
		Error: &Error{Code: e.Code(), Message: "Invalid request: " + e.Reason},
	}
}

// FaultError wraps a handler error that is not a *Failure. Faults are not
// converted into responses; the host decides how to surface them.
type FaultError struct {
	Method string
	ID     Value
	Err    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("jsonrpc: method %s (id %s) faulted: %v", e.Method, e.ID, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// DecodeError reports a payload that does not parse as the wire shape. No
// response can be built for it since no id is known.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jsonrpc: decode %s payload: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
