// Command onerpc serves and calls JSON-RPC 2.0 methods.
//
// Usage:
//
//	onerpc serve stdio          # one request per JSON value on stdin
//	onerpc serve http           # POST /rpc, GET /rpc/methods, WebSocket /ws
//	onerpc call METHOD [PARAMS] # send one request to a running server
//	onerpc methods              # list the served methods
//
// Settings are read from .env, ONERPC_* environment variables and flags, in
// increasing order of precedence.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
