package jsonrpc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Dispatch resolves req against reg, runs the handler and builds the response.
//
// A malformed request yields an *InvalidRequestError and no response; the
// registry is not consulted. An unregistered method yields a response with
// error code CodeUnknownMethod. A handler's *Failure becomes the response
// error. Any other handler error, a nil *Failure included, is returned as a *FaultError with no
// response. Handler panics are not recovered.
//
// The handler is called exactly once, on the calling goroutine.
func Dispatch(ctx context.Context, reg *Registry, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := zerolog.Ctx(ctx)

	resp := &Response{ID: req.ID}
	if !reg.Has(req.Method) {
		log.Debug().Str("method", req.Method).Msg("unknown method")
		resp.Error = &Error{Code: CodeUnknownMethod, Message: "Unknown method " + req.Method}
		return resp, nil
	}

	result, err := reg.Invoke(ctx, req.Method, req.Params, req.ID)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) && f != nil {
			log.Debug().Str("method", req.Method).Int("code", f.Code).Msg("handler failure")
			resp.Error = &Error{Code: f.Code, Message: f.Message}
			return resp, nil
		}
		return nil, &FaultError{Method: req.Method, ID: req.ID, Err: err}
	}
	resp.Result = result
	return resp, nil
}
