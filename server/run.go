package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service is a long-running listener. Start blocks until the service stops
// and returns nil after a clean Shutdown.
type Service interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type httpService struct {
	srv *http.Server
}

// NewHTTPService wraps an HTTP listener on addr as a Service.
func NewHTTPService(addr string, h http.Handler) Service {
	return &httpService{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *httpService) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listening on %s: %w", s.srv.Addr, err)
	}
	return nil
}

func (s *httpService) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run starts every service and blocks until ctx is done or one of them
// fails. Then all services are shut down, each given shutdownTimeout. The
// first failure is returned.
func Run(ctx context.Context, shutdownTimeout time.Duration, services ...Service) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(svc.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return svc.Shutdown(sctx)
		})
	}
	return g.Wait()
}
