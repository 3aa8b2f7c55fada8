// Package api implements the REST surface over the catalog: listing
// environments/systems/groups, exporting and linting policy documents, and
// driving the join pipeline.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/org/jitaccess/internal/audit"
	"github.com/org/jitaccess/internal/catalog"
	"github.com/org/jitaccess/internal/deferral"
	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/internal/provisioner"
	"github.com/org/jitaccess/internal/subject"
)

// Config holds server-level HTTP settings.
type Config struct {
	ListenAddr string
}

// Server is the API server.
type Server struct {
	catalog     *catalog.Catalog
	resolver    *subject.Resolver
	deferral    *deferral.Service
	provisioner *provisioner.Provisioner
	idpClient   idp.Client
	audit       audit.Sink
	logger      logging.Logger
	cfg         Config
	httpSrv     *http.Server
}

// NewServer creates a fully wired Server. If sink is nil, audit entries
// are written through logger instead. prov and idpClient back
// ReconciliationStatusHandler; either may be nil for a server that never
// serves that route.
func NewServer(cat *catalog.Catalog, resolver *subject.Resolver, deferralSvc *deferral.Service, prov *provisioner.Provisioner, idpClient idp.Client, sink audit.Sink, logger logging.Logger, cfg Config) *Server {
	if sink == nil {
		sink = audit.NewLogger(logger)
	}
	return &Server{
		catalog:     cat,
		resolver:    resolver,
		deferral:    deferralSvc,
		provisioner: prov,
		idpClient:   idpClient,
		audit:       sink,
		logger:      logger,
		cfg:         cfg,
	}
}

// BuildRouter wires up every route and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(auditMiddleware(s.audit))

	r.Handle("/metrics", MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.resolver))

		r.Get("/environments", s.ListEnvironmentsHandler)
		r.Get("/environments/{env}", s.GetEnvironmentHandler)
		r.Get("/environments/{env}/policy", s.ExportPolicyHandler)
		r.Get("/environments/{env}/status", s.ReconciliationStatusHandler)
		r.Get("/environments/{env}/systems/{sys}", s.GetSystemHandler)
		r.Get("/environments/{env}/systems/{sys}/groups/{name}", s.GetGroupHandler)
		r.Post("/environments/{env}/systems/{sys}/groups/{name}", s.JoinGroupHandler)
		r.Post("/lint", s.LintPolicyHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.BuildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("starting HTTP server", logging.Field("addr", s.cfg.ListenAddr))
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
