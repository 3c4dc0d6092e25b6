package server

import (
	"context"
	"errors"
	"time"

	"github.com/mnehpets/onerpc/jsonrpc"
)

type callOutcome struct {
	result   any
	err      error
	panicked bool
	panicVal any
}

// Timeout bounds calls to h by d.
//
// h runs on its own goroutine with a context that expires after d. If d
// passes first, Timeout returns a *jsonrpc.Failure with code
// jsonrpc.CodeTimeout and the handler's eventual result is discarded. A
// panic raised by h before the deadline is re-raised on the calling
// goroutine.
func Timeout(h jsonrpc.Handler, d time.Duration) jsonrpc.Handler {
	return jsonrpc.HandlerFunc(func(ctx context.Context, params jsonrpc.Value, id jsonrpc.Value) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		ch := make(chan callOutcome, 1)
		go func() {
			finished := false
			defer func() {
				if !finished {
					ch <- callOutcome{panicked: true, panicVal: recover()}
				}
			}()
			result, err := h.ServeRPC(ctx, params, id)
			finished = true
			ch <- callOutcome{result: result, err: err}
		}()

		select {
		case o := <-ch:
			if o.panicked {
				panic(o.panicVal)
			}
			return o.result, o.err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, jsonrpc.Fail(jsonrpc.CodeTimeout, "method timed out")
			}
			return nil, ctx.Err()
		}
	})
}
