// Package config loads onerpc host settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// EnvPrefix is prepended to every key when reading the environment, so
// LISTEN_ADDR is read from ONERPC_LISTEN_ADDR.
const EnvPrefix = "ONERPC"

// Default configuration constants
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultCodec           = "json"
	DefaultListenAddr      = ":8080"
	DefaultRPCPath         = "/rpc"
	DefaultWSPath          = "/ws"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultMetricsAddr     = ":9090"
	DefaultMetricsPath     = "/metrics"
	DefaultShutdownTimeout = 10 * time.Second
)

type MetricsConfig struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	LogLevel  string
	LogFormat string

	// Codec names the wire format used by the stdio transport and by HTTP
	// requests that carry no Content-Type.
	Codec string

	ListenAddr   string
	RPCPath      string
	WSPath       string
	MaxBodyBytes int64

	// CallTimeout bounds each handler call. Zero disables the bound.
	CallTimeout     time.Duration
	ShutdownTimeout time.Duration

	Metrics MetricsConfig
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "LOG_LEVEL",
	"log-format":   "LOG_FORMAT",
	"codec":        "CODEC",
	"listen":       "LISTEN_ADDR",
	"rpc-path":     "RPC_PATH",
	"ws-path":      "WS_PATH",
	"max-body":     "MAX_BODY_BYTES",
	"call-timeout": "CALL_TIMEOUT",
	"metrics":      "METRICS_ENABLED",
	"metrics-addr": "METRICS_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", DefaultLogLevel)
	v.SetDefault("LOG_FORMAT", DefaultLogFormat)
	v.SetDefault("CODEC", DefaultCodec)
	v.SetDefault("LISTEN_ADDR", DefaultListenAddr)
	v.SetDefault("RPC_PATH", DefaultRPCPath)
	v.SetDefault("WS_PATH", DefaultWSPath)
	v.SetDefault("MAX_BODY_BYTES", DefaultMaxBodyBytes)
	v.SetDefault("CALL_TIMEOUT", time.Duration(0))
	v.SetDefault("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_ADDR", DefaultMetricsAddr)
	v.SetDefault("METRICS_PATH", DefaultMetricsPath)
}

// Load reads configuration from envFiles (".env" when none are given), the
// environment and flags, in increasing order of precedence. Missing env
// files are ignored. flags may be nil; flags that were not set on the
// command line do not override the environment.
func Load(flags *pflag.FlagSet, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		Codec:           v.GetString("CODEC"),
		ListenAddr:      v.GetString("LISTEN_ADDR"),
		RPCPath:         v.GetString("RPC_PATH"),
		WSPath:          v.GetString("WS_PATH"),
		MaxBodyBytes:    v.GetInt64("MAX_BODY_BYTES"),
		CallTimeout:     v.GetDuration("CALL_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Addr:    v.GetString("METRICS_ADDR"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InvalidValueError reports a configuration key with an unusable value.
type InvalidValueError struct {
	Key    string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("config: %s_%s=%v: %s", EnvPrefix, e.Key, e.Value, e.Reason)
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return &InvalidValueError{"LOG_FORMAT", c.LogFormat, "must be json or console"}
	}
	if _, ok := jsonrpc.CodecByName(c.Codec); !ok {
		return &InvalidValueError{"CODEC", c.Codec, "must be json or cbor"}
	}
	if c.ListenAddr == "" {
		return &InvalidValueError{"LISTEN_ADDR", c.ListenAddr, "must not be empty"}
	}
	if !strings.HasPrefix(c.RPCPath, "/") {
		return &InvalidValueError{"RPC_PATH", c.RPCPath, "must start with /"}
	}
	if c.WSPath != "" && !strings.HasPrefix(c.WSPath, "/") {
		return &InvalidValueError{"WS_PATH", c.WSPath, "must start with / or be empty"}
	}
	if c.WSPath == c.RPCPath {
		return &InvalidValueError{"WS_PATH", c.WSPath, "must differ from RPC_PATH"}
	}
	if c.MaxBodyBytes <= 0 {
		return &InvalidValueError{"MAX_BODY_BYTES", c.MaxBodyBytes, "must be positive"}
	}
	if c.CallTimeout < 0 {
		return &InvalidValueError{"CALL_TIMEOUT", c.CallTimeout, "must not be negative"}
	}
	if c.ShutdownTimeout <= 0 {
		return &InvalidValueError{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout, "must be positive"}
	}
	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return &InvalidValueError{"METRICS_ADDR", c.Metrics.Addr, "must not be empty when metrics are enabled"}
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return &InvalidValueError{"METRICS_PATH", c.Metrics.Path, "must start with /"}
		}
	}
	return nil
}
