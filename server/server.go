// Package server hosts a jsonrpc.Registry behind concrete transports.
//
// A Server owns the decode, dispatch and encode pipeline and the fault
// boundary. Transports (ServeStream, HTTPHandler, WebSocketHandler) feed it
// one payload at a time and decide how to surface decode errors and faults.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/metrics"
)

// MethodsMethod is the name of the introspection method installed by
// WithIntrospection.
const MethodsMethod = "rpc.methods"

// Server dispatches encoded requests against a registry.
//
// The registry is read-only once a Server is built. Handle may be called
// concurrently.
type Server struct {
	registry *jsonrpc.Registry
	codec    jsonrpc.Codec
	logger   zerolog.Logger
	metrics  *metrics.RPCMetrics

	maxBodyBytes  int64
	callTimeout   time.Duration
	introspection bool
}

// Option configures a Server.
type Option func(*Server)

// WithCodec sets the default codec. The stdio transport always uses it; HTTP
// uses it when a request carries no Content-Type.
func WithCodec(c jsonrpc.Codec) Option {
	return func(s *Server) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogger sets the logger used for requests whose context carries none.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics records dispatch metrics into m.
func WithMetrics(m *metrics.RPCMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxBodyBytes limits HTTP request bodies, WebSocket messages and each
// value read by ServeStream.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithCallTimeout bounds every handler call with Timeout. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.callTimeout = d
	}
}

// WithIntrospection registers MethodsMethod, which returns the sorted list
// of served method names.
func WithIntrospection() Option {
	return func(s *Server) {
		s.introspection = true
	}
}

const defaultMaxBodyBytes = 1 << 20

// New builds a Server for reg. reg itself is never modified; timeouts and
// introspection are applied to a copy.
func New(reg *jsonrpc.Registry, opts ...Option) (*Server, error) {
	if reg == nil {
		return nil, errors.New("server: nil registry")
	}
	s := &Server{
		registry:     reg,
		codec:        jsonrpc.JSON,
		logger:       zerolog.Nop(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.callTimeout > 0 {
		s.registry = s.registry.Wrap(func(_ string, h jsonrpc.Handler) jsonrpc.Handler {
			return Timeout(h, s.callTimeout)
		})
	}
	if s.introspection {
		if s.registry == reg {
			s.registry = reg.Wrap(func(_ string, h jsonrpc.Handler) jsonrpc.Handler { return h })
		}
		served := s.registry
		err := served.RegisterFunc(MethodsMethod, func(context.Context, jsonrpc.Value, jsonrpc.Value) (any, error) {
			return served.Methods(), nil
		})
		if err != nil {
			return nil, fmt.Errorf("server: installing introspection: %w", err)
		}
	}
	return s, nil
}

// Codec returns the default codec.
func (s *Server) Codec() jsonrpc.Codec {
	return s.codec
}

// Methods returns the served method names in sorted order.
func (s *Server) Methods() []string {
	return s.registry.Methods()
}

// Handle decodes payload with the default codec, dispatches it and returns
// the encoded response.
func (s *Server) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	return s.HandleWith(ctx, s.codec, payload)
}

// HandleWith is like Handle with an explicit codec.
//
// It returns a *jsonrpc.DecodeError for payloads that are not requests, and a
// *jsonrpc.FaultError when the handler faults or its result cannot be
// encoded. Neither produces response bytes. Malformed requests are answered
// with an error response. Handler panics are not recovered.
func (s *Server) HandleWith(ctx context.Context, c jsonrpc.Codec, payload []byte) ([]byte, error) {
	req, err := c.DecodeRequest(payload)
	if err != nil {
		s.metrics.DecodeError(c.Name())
		return nil, err
	}

	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &s.logger
	}
	log := base.With().Str("method", req.Method).Stringer("id", req.ID).Logger()
	ctx = log.WithContext(ctx)
	log.Debug().Str("codec", c.Name()).Msg("request received")

	start := time.Now()
	outcome := metrics.OutcomeFault
	done := s.metrics.Start(req.Method)
	defer func() { done(outcome) }()

	resp, err := jsonrpc.Dispatch(ctx, s.registry, req)
	if err != nil {
		var invalid *jsonrpc.InvalidRequestError
		if !errors.As(err, &invalid) {
			log.Error().Err(err).Msg("handler fault")
			return nil, err
		}
		outcome = metrics.OutcomeInvalid
		log.Warn().Str("reason", invalid.Reason).Msg("invalid request")
		resp = invalid.Response()
	}

	out, err := c.EncodeResponse(resp)
	if err != nil {
		outcome = metrics.OutcomeFault
		log.Error().Err(err).Msg("encoding response")
		return nil, &jsonrpc.FaultError{Method: req.Method, ID: req.ID, Err: fmt.Errorf("encoding response: %w", err)}
	}

	switch {
	case outcome == metrics.OutcomeInvalid:
	case resp.Error == nil:
		outcome = metrics.OutcomeOK
	case !s.registry.Has(req.Method):
		outcome = metrics.OutcomeUnknown
	default:
		outcome = metrics.OutcomeFailure
	}
	log.Info().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("request handled")
	return out, nil
}
