package jsonrpc

import "strconv"

// Version is the only protocol version accepted on input.
const Version = "2.0"

// Error codes produced by this package. Handlers pick their own codes for
// failures they signal.
const (
	CodeInvalidRequest = 400
	CodeUnknownMethod  = 501
	CodeTimeout        = 504

	// CodeInvalidParams is used by receiver methods registered with
	// RegisterReceiver when params cannot be bound to the method's arguments.
	CodeInvalidParams = -32602
)

// Request is a decoded JSON-RPC call.
type Request struct {
	// Version is the "jsonrpc" member. It must equal Version.
	Version string
	Method  string
	// Params is passed to the handler untouched.
	Params Value
	// ID is carried verbatim into the Response.
	ID Value
}

// NewRequest builds a request for method with params encoded as JSON.
func NewRequest(method string, params any, id Value) (*Request, error) {
	req := &Request{Version: Version, Method: method, ID: id}
	if params != nil {
		p, err := NewValue(params)
		if err != nil {
			return nil, err
		}
		req.Params = p
	}
	return req, nil
}

// Validate reports whether the request is well formed. It returns an
// *InvalidRequestError when it is not.
func (r *Request) Validate() error {
	if r == nil {
		return &InvalidRequestError{Reason: "empty request"}
	}
	if r.Version != Version {
		return &InvalidRequestError{Reason: "unsupported jsonrpc version " + strconv.Quote(r.Version), ID: r.ID}
	}
	if r.Method == "" {
		return &InvalidRequestError{Reason: "method required", ID: r.ID}
	}
	if r.ID.IsZero() {
		return &InvalidRequestError{Reason: "id required"}
	}
	if !r.ID.isScalar() {
		return &InvalidRequestError{Reason: "id must be a string, number or null"}
	}
	return nil
}

// Response is the outcome of a dispatched request. Exactly one of Result and
// Error is meaningful: a Response with a nil Error is a success, even when
// Result is nil.
type Response struct {
	Result any
	Error  *Error
	ID     Value
}

// Failed reports whether the response carries an error.
func (r *Response) Failed() bool {
	return r.Error != nil
}

// DecodeResult unmarshals the result into dst. It is meant for responses read
// back with a Codec, where Result holds a Value.
func (r *Response) DecodeResult(dst any) error {
	if v, ok := r.Result.(Value); ok {
		return v.Decode(dst)
	}
	v, err := NewValue(r.Result)
	if err != nil {
		return err
	}
	return v.Decode(dst)
}

// Error is the wire error object. It is built by the dispatcher from a
// handler's Failure or from a protocol-level problem.
type Error struct {
	Code    int    `json:"code" cbor:"code"`
	Message string `json:"message" cbor:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
