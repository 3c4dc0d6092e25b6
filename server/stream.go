package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// ErrFrameTooLarge reports a stream value larger than the server's size limit.
var ErrFrameTooLarge = errors.New("server: request exceeds size limit")

// ServeStream reads successive requests from r with the default codec and
// writes one response per request to w, in order. Text codecs terminate
// each response with a newline.
//
// It returns nil at the end of r. A value that cannot be read from r stops
// the stream and its *jsonrpc.DecodeError is returned; a well-formed value
// that is not a request is logged and skipped. A fault stops the stream and
// its *jsonrpc.FaultError is returned.
//
// Each value is limited to the size set by WithMaxBodyBytes. A larger value
// stops the stream with a *jsonrpc.DecodeError wrapping ErrFrameTooLarge.
//
// Cancelling ctx is observed between requests; a blocked read on r is not
// interrupted.
func (s *Server) ServeStream(ctx context.Context, r io.Reader, w io.Writer) error {
	limited := &frameLimiter{r: r, limit: s.maxBodyBytes}
	frames := s.codec.NewFrameReader(limited)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		limited.reset()
		frame, err := frames.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err == nil && int64(len(frame)) > s.maxBodyBytes {
			err = &jsonrpc.DecodeError{Codec: s.codec.Name(), Err: ErrFrameTooLarge}
		}
		if err != nil {
			s.metrics.DecodeError(s.codec.Name())
			s.logger.Error().Err(err).Msg("reading request stream")
			return err
		}

		out, err := s.HandleWith(ctx, s.codec, frame)
		if err != nil {
			var decodeErr *jsonrpc.DecodeError
			if errors.As(err, &decodeErr) {
				s.logger.Warn().Err(err).Msg("skipping payload")
				continue
			}
			return err
		}
		if !s.codec.Binary() {
			out = append(out, '\n')
		}
		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("server: writing response: %w", err)
		}
	}
}

// frameLimiter caps the bytes read from r between calls to reset. Unlike
// io.LimitReader it fails with ErrFrameTooLarge rather than io.EOF, so an
// oversized value is not mistaken for the end of the stream.
type frameLimiter struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func (l *frameLimiter) reset() {
	l.remaining = l.limit
}

func (l *frameLimiter) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, ErrFrameTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
