package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"geo-cluster-pipeline/internal/api/handler"
	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/internal/metrics"
	"geo-cluster-pipeline/internal/pipeline"
	"geo-cluster-pipeline/internal/store"
	"geo-cluster-pipeline/pkg/logging"
	"geo-cluster-pipeline/pkg/router"
)

// Server owns the run registry, the pipeline and the HTTP router.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	handler *handler.RunHandler
	router  *router.Router
	logger  logging.Logger
}

// NewServer opens the store and assembles the API.
func NewServer(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	st, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p := pipeline.New(cfg, pipeline.Deps{Recorder: st, Metrics: m, Logger: logger})
	if err := p.Output().EnsureOutputDirExists(); err != nil {
		st.Close()
		return nil, err
	}

	h := handler.NewRunHandler(cfg, st, p, logger)
	r := router.New(logger)
	r.SetTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
	RegisterRoutes(r, h, m)

	return &Server{cfg: cfg, store: st, handler: h, router: r, logger: logger}, nil
}

// Router exposes the assembled router, e.g. for httptest.
func (s *Server) Router() *router.Router { return s.router }

// Run serves until ctx is cancelled, then cancels in-flight runs and
// closes the store.
func (s *Server) Run(ctx context.Context) error {
	err := s.router.Start(ctx, s.cfg.Server.Addr())
	s.handler.Shutdown()
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
