// Jsonrpc serves a small receiver over HTTP with the stock processors.
//
//	curl -d '{"jsonrpc":"2.0","method":"math.Add","params":[1,2],"id":1}' localhost:8080/rpc
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/middleware"
	"github.com/mnehpets/onerpc/server"
)

type MathMethods struct{}

func (MathMethods) Add(_ context.Context, args struct {
	A int `json:"a"`
	B int `json:"b"`
}) (int, error) {
	return args.A + args.B, nil
}

func (MathMethods) Sub(_ context.Context, args struct {
	A int `json:"a"`
	B int `json:"b"`
}) (int, error) {
	return args.A - args.B, nil
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	reg := jsonrpc.NewRegistry()
	if err := reg.RegisterReceiver("math", MathMethods{}); err != nil {
		logger.Fatal().Err(err).Msg("registering methods")
	}

	srv, err := server.New(reg,
		server.WithLogger(logger),
		server.WithCallTimeout(5*time.Second),
		server.WithIntrospection(),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("building server")
	}

	mux := srv.Routes("/rpc", "/ws",
		middleware.RequestIDProcessor{},
		middleware.AccessLogProcessor{},
		middleware.NewHeadersProcessor(middleware.WithCORS(middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
		})),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info().Msg("Starting server on :8080")
	if err := server.Run(ctx, 10*time.Second, server.NewHTTPService(":8080", mux)); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
