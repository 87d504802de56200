// Package httpapi is the HTTP boundary of the SCS server: routing,
// request-size limiting, CORS, and the mapping of vault results onto JSON
// responses and status codes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/scs-backend/scs/internal/logging"
	"github.com/scs-backend/scs/internal/server/config"
	"github.com/scs-backend/scs/internal/server/users"
	"github.com/scs-backend/scs/internal/server/vault"
)

type Server struct {
	address         string
	handler         *Handler
	maxUploadBytes  int64
	shutdownTimeout time.Duration
	logger          logging.Logger
}

func NewServer(cfg *config.Config, us *users.Service, vs *vault.Service, logger logging.Logger) *Server {
	return &Server{
		address:         cfg.EndpointAddrHTTP,
		handler:         NewHandler(us, vs, cfg.MaxUploadBytes, logger),
		maxUploadBytes:  cfg.MaxUploadBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger.With("module", "http_server"),
	}
}

// Routes builds the API router with the shared middleware applied.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(CORS)
	r.Use(SizeLimit(s.maxUploadBytes))

	r.HandleFunc("/api/register", s.handler.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", s.handler.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/upload", s.handler.Upload).Methods(http.MethodPost)
	r.HandleFunc("/api/download", s.handler.Download).Methods(http.MethodGet)
	r.HandleFunc("/api/download/blob", s.handler.DownloadBlob).Methods(http.MethodGet)
	r.HandleFunc("/api/files", s.handler.ListFiles).Methods(http.MethodGet)
	r.HandleFunc("/api/delete", s.handler.Delete).Methods(http.MethodDelete)

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
