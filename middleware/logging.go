package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mnehpets/onerpc/endpoint"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestIDProcessor, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDProcessor assigns every request an id. A UUID supplied by the
// client in X-Request-Id is kept; anything else is replaced with a new one.
// The id is echoed in the response header and added to the context logger
// as request_id.
type RequestIDProcessor struct{}

func (RequestIDProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	id := r.Header.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	ctx := context.WithValue(r.Context(), requestIDKey{}, id)
	logger := zerolog.Ctx(ctx).With().Str("request_id", id).Logger()
	return next(w, r.WithContext(logger.WithContext(ctx)))
}

// AccessLogProcessor logs one line per HTTP request through the context
// logger. Place it after RequestIDProcessor to include the request id.
type AccessLogProcessor struct{}

func (AccessLogProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	err := next(sw, r)

	status := sw.status
	if err != nil {
		// The handler renders the error after the chain returns.
		status = http.StatusInternalServerError
		var ee *endpoint.EndpointError
		if errors.As(err, &ee) && ee.Status >= 100 {
			status = ee.Status
		}
	}
	if status == 0 {
		status = http.StatusOK
	}

	log := zerolog.Ctx(r.Context())
	ev := log.Info()
	if status >= http.StatusInternalServerError {
		ev = log.Error().AnErr("error", err)
	}
	ev.Str("http_method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("bytes", sw.bytes).
		Dur("duration", time.Since(start)).
		Str("remote_addr", r.RemoteAddr).
		Msg("http request")
	return err
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

var (
	_ endpoint.Processor = RequestIDProcessor{}
	_ endpoint.Processor = AccessLogProcessor{}
)
