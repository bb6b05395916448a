// Package server exposes the record store over HTTP with gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/internal/logging"
	"github.com/deicod/pizzeria/internal/observability/metrics"
	"github.com/deicod/pizzeria/observability/tracing"
	"github.com/deicod/pizzeria/store"
)

// Options wires the server's dependencies. Only Store is required.
type Options struct {
	Store     store.Store
	Log       *zap.SugaredLogger
	Tracer    tracing.Tracer
	Collector metrics.Collector
}

type Server struct {
	store     store.Store
	log       *zap.SugaredLogger
	tracer    tracing.Tracer
	collector metrics.Collector
	engine    *gin.Engine
}

// New builds the router and its middleware chain.
func New(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		log:       opts.Log,
		tracer:    tracing.OrNoop(opts.Tracer),
		collector: opts.Collector,
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.collector == nil {
		s.collector = metrics.NoopCollector{}
	}

	engine := gin.New()
	engine.Use(
		s.requestID(),
		s.traceRequests(),
		s.observeRequests(),
		s.recovery(),
	)
	s.routes(engine)
	s.engine = engine
	return s
}

func (s *Server) routes(r gin.IRouter) {
	r.GET("/restaurants", s.listRestaurants)
	r.GET("/restaurants/:id", s.getRestaurant)
	r.DELETE("/restaurants/:id", s.deleteRestaurant)
	r.GET("/pizzas", s.listPizzas)
	r.POST("/restaurant_pizzas", s.createRestaurantPizza)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve runs hs with the server's handler until ctx is cancelled, then shuts
// down gracefully within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, hs *http.Server, shutdownTimeout time.Duration) error {
	hs.Handler = s.engine
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("HTTP server listening", "address", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Infow("Shutting down HTTP server", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-errCh
}
