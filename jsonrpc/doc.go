// Package jsonrpc implements a transport-agnostic JSON-RPC 2.0 request
// dispatcher.
//
// The package covers the envelope model (Request, Response, Error), a method
// Registry, the Dispatch function that turns a Request into a Response, and
// Codecs that move envelopes to and from the wire (JSON and CBOR).
//
//	raw bytes -> Codec.DecodeRequest -> Dispatch -> Codec.EncodeResponse -> raw bytes
//
// # Basic Usage
//
//	reg := jsonrpc.NewRegistry()
//	reg.MustRegister("MyCompany.MyApp.Foo", jsonrpc.HandlerFunc(
//	    func(ctx context.Context, params, id jsonrpc.Value) (any, error) {
//	        var p struct{ Arg1 int `json:"arg1"` }
//	        if err := params.Decode(&p); err != nil {
//	            return nil, jsonrpc.Fail(jsonrpc.CodeInvalidParams, "invalid params")
//	        }
//	        return p.Arg1 + 42, nil
//	    }))
//
//	req, err := jsonrpc.JSON.DecodeRequest(payload)
//	if err != nil {
//	    // *DecodeError: there is no id to answer to.
//	}
//	resp, err := jsonrpc.Dispatch(ctx, reg, req)
//	var invalid *jsonrpc.InvalidRequestError
//	if errors.As(err, &invalid) {
//	    resp = invalid.Response()
//	} else if err != nil {
//	    // *FaultError: the handler failed outside RPC semantics.
//	}
//	out, err := jsonrpc.JSON.EncodeResponse(resp)
//
// # Wire Format
//
//	{"jsonrpc":"2.0","method":"<string>","params":<any>,"id":<id>}
//	{"result":<any>,"id":<id>}
//	{"error":{"code":<int>,"message":"<string>"},"id":<id>}
//
// Responses never echo the "jsonrpc" member. Exactly one of "result" and
// "error" is present; a nil result is written as null.
//
// # Error Handling
//
// Handlers return a *Failure (see Fail) for expected RPC failures; the code
// and message are copied into the response. Dispatch reports:
//   - unknown methods in the response, code CodeUnknownMethod (501)
//   - malformed envelopes as *InvalidRequestError (code 400) before any lookup
//   - any other handler error as *FaultError, with no response
//
// Handler panics are not recovered.
//
// # Receivers
//
// RegisterReceiver binds the exported methods of a struct, decoding params
// into a typed struct argument:
//
//	type MathMethods struct{}
//
//	func (m *MathMethods) Add(ctx context.Context, p struct {
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}) (int, error) {
//	    return p.A + p.B, nil
//	}
//
//	reg.RegisterReceiver("math", &MathMethods{}) // -> "math.Add"
//
// # Concurrency
//
// The Registry does no locking. Once registration is finished, any number
// of goroutines may call Dispatch against it.
package jsonrpc
