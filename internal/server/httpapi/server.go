// Package httpapi serves the provisioner admin API: health, bearer tokens
// for operators, and read/retry access to the provisioning job ledger.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/secnexus/internal/logging"
	smodels "github.com/dmitrijs2005/secnexus/internal/server/models"
)

// Jobs is the part of the job service exposed over HTTP.
type Jobs interface {
	Get(ctx context.Context, eventID string) (*smodels.Job, error)
	List(ctx context.Context, status string, limit int) ([]smodels.Job, error)
	Retry(ctx context.Context, eventID string) (*smodels.Job, error)
}

type Config struct {
	Address           string
	SecretKey         []byte
	TokenValidity     time.Duration
	AdminPasswordHash string
}

type Server struct {
	cfg    Config
	jobs   Jobs
	health func(ctx context.Context) error
	logger logging.Logger
}

// NewServer builds the admin API. health reports whether the ledger is
// reachable; nil means always healthy.
func NewServer(cfg Config, jobs Jobs, health func(ctx context.Context) error, l logging.Logger) *Server {
	return &Server{
		cfg:    cfg,
		jobs:   jobs,
		health: health,
		logger: l.With("module", "http_server"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Post("/token", s.handleToken)

	r.Route("/jobs", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", s.handleListJobs)
		r.Get("/{eventID}", s.handleGetJob)
		r.Post("/{eventID}/retry", s.handleRetryJob)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
