package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// Failure codes signalled by the built-in methods.
const (
	codeBoom           = 1234
	codeDivisionByZero = 1001
)

// newRegistry returns the methods served by the onerpc command.
func newRegistry() (*jsonrpc.Registry, error) {
	reg := jsonrpc.NewRegistry()
	funcs := map[string]jsonrpc.HandlerFunc{
		"MyCompany.MyApp.Foo": foo,
		"echo":                echo,
		"fail":                fail,
		"sleep":               sleep,
	}
	for name, fn := range funcs {
		if err := reg.Register(name, fn); err != nil {
			return nil, err
		}
	}
	if err := reg.RegisterReceiver("math", mathService{}); err != nil {
		return nil, err
	}
	return reg, nil
}

func foo(ctx context.Context, params, id jsonrpc.Value) (any, error) {
	var p struct {
		Arg1 float64 `json:"arg1"`
	}
	if err := params.Decode(&p); err != nil {
		return nil, jsonrpc.Fail(jsonrpc.CodeInvalidParams, "arg1 must be a number")
	}
	zerolog.Ctx(ctx).Info().Stringer("request_id", id).Msg("Got a Foo!")
	return p.Arg1 + 42, nil
}

func echo(_ context.Context, params, _ jsonrpc.Value) (any, error) {
	return params, nil
}

func fail(context.Context, jsonrpc.Value, jsonrpc.Value) (any, error) {
	return nil, jsonrpc.Fail(codeBoom, "boom")
}

// sleep waits for params.ms milliseconds. It is useful for exercising
// call timeouts.
func sleep(ctx context.Context, params, _ jsonrpc.Value) (any, error) {
	var p struct {
		MS int `json:"ms"`
	}
	if err := params.Decode(&p); err != nil || p.MS < 0 {
		return nil, jsonrpc.Fail(jsonrpc.CodeInvalidParams, "ms must be a non-negative integer")
	}
	t := time.NewTimer(time.Duration(p.MS) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return p.MS, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type mathService struct{}

type operands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

func (mathService) Add(_ context.Context, p operands) (float64, error) {
	return p.A + p.B, nil
}

func (mathService) Sub(_ context.Context, p operands) (float64, error) {
	return p.A - p.B, nil
}

func (mathService) Mul(_ context.Context, p operands) (float64, error) {
	return p.A * p.B, nil
}

func (mathService) Div(_ context.Context, p operands) (float64, error) {
	if p.B == 0 {
		return 0, jsonrpc.Fail(codeDivisionByZero, "division by zero")
	}
	return p.A / p.B, nil
}
