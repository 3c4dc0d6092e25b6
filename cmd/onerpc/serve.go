package main

import (
	"github.com/spf13/cobra"

	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/metrics"
	"github.com/mnehpets/onerpc/middleware"
	"github.com/mnehpets/onerpc/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the built-in methods",
	}
	pf := cmd.PersistentFlags()
	pf.Duration("call-timeout", 0, "bound on each method call (0 disables)")
	pf.Int64("max-body", config.DefaultMaxBodyBytes, "maximum request size in bytes")

	cmd.AddCommand(newServeStdioCmd(a), newServeHTTPCmd(a))
	return cmd
}

// newServer builds the server for the built-in registry from a's settings.
func (a *app) newServer(opts ...server.Option) (*server.Server, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}
	codec, _ := jsonrpc.CodecByName(a.cfg.Codec)
	base := []server.Option{
		server.WithCodec(codec),
		server.WithLogger(a.logger),
		server.WithCallTimeout(a.cfg.CallTimeout),
		server.WithMaxBodyBytes(a.cfg.MaxBodyBytes),
		server.WithIntrospection(),
	}
	return server.New(reg, append(base, opts...)...)
}

func newServeStdioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Read requests from stdin and write responses to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := a.newServer()
			if err != nil {
				return err
			}
			a.logger.Info().Str("codec", a.cfg.Codec).Msg("serving stdio")
			return srv.ServeStream(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newServeHTTPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve requests over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg

			var opts []server.Option
			var services []server.Service
			if cfg.Metrics.Enabled {
				rpcMetrics := metrics.NewRPCMetrics()
				opts = append(opts, server.WithMetrics(rpcMetrics))
				services = append(services, metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, metrics.NewRegistry(rpcMetrics), a.logger))
			}

			srv, err := a.newServer(opts...)
			if err != nil {
				return err
			}
			mux := srv.Routes(cfg.RPCPath, cfg.WSPath,
				middleware.RequestIDProcessor{},
				middleware.AccessLogProcessor{},
				middleware.NewHeadersProcessor(),
			)
			services = append(services, server.NewHTTPService(cfg.ListenAddr, mux))

			a.logger.Info().
				Str("addr", cfg.ListenAddr).
				Str("rpc_path", cfg.RPCPath).
				Str("ws_path", cfg.WSPath).
				Strs("methods", srv.Methods()).
				Msg("serving http")
			return server.Run(cmd.Context(), cfg.ShutdownTimeout, services...)
		},
	}
	f := cmd.Flags()
	f.String("listen", config.DefaultListenAddr, "HTTP listen address")
	f.String("rpc-path", config.DefaultRPCPath, "path of the JSON-RPC endpoint")
	f.String("ws-path", config.DefaultWSPath, "path of the WebSocket endpoint (empty disables)")
	f.Bool("metrics", false, "serve Prometheus metrics")
	f.String("metrics-addr", config.DefaultMetricsAddr, "metrics listen address")
	return cmd
}
