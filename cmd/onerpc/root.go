package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/log"
)

// app carries the settings shared by every subcommand. It is filled in by
// the root command's PersistentPreRunE.
type app struct {
	envFiles []string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "onerpc",
		Short:        "JSON-RPC 2.0 dispatcher",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), a.envFiles...)
			if err != nil {
				return err
			}
			logger, err := log.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	pf.String("log-level", config.DefaultLogLevel, "log level (trace, debug, info, warn, error)")
	pf.String("log-format", config.DefaultLogFormat, "log format (json or console)")
	pf.String("codec", config.DefaultCodec, "wire codec (json or cbor)")

	root.AddCommand(
		newServeCmd(a),
		newCallCmd(a),
		newMethodsCmd(a),
	)
	return root
}
