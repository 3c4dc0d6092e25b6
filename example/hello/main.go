// Hello decodes one hard-coded request, dispatches it and prints the
// response.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/jsonrpc"
)

const request = `{"jsonrpc":"2.0","method":"MyCompany.MyApp.Foo","params":{"arg1":3},"id":"deadbeefcafebabe"}`

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	reg := jsonrpc.NewRegistry()
	reg.MustRegister("MyCompany.MyApp.Foo", jsonrpc.HandlerFunc(func(ctx context.Context, params, id jsonrpc.Value) (any, error) {
		zerolog.Ctx(ctx).Info().Stringer("id", id).Msg("Got a Foo!")
		var p struct {
			Arg1 float64 `json:"arg1"`
		}
		if err := params.Decode(&p); err != nil {
			return nil, jsonrpc.Fail(jsonrpc.CodeInvalidParams, "arg1 must be a number")
		}
		return p.Arg1 + 42, nil
	}))

	req, err := jsonrpc.JSON.DecodeRequest([]byte(request))
	if err != nil {
		logger.Fatal().Err(err).Msg("decoding request")
	}
	logger.Info().Stringer("id", req.ID).Msg("request received")

	resp, err := jsonrpc.Dispatch(ctx, reg, req)
	if err != nil {
		logger.Fatal().Err(err).Msg("dispatching request")
	}

	out, err := (&jsonrpc.JSONCodec{Indent: "  "}).EncodeResponse(resp)
	if err != nil {
		logger.Fatal().Err(err).Msg("encoding response")
	}
	fmt.Println(string(out))
}
