// Package server provides the HTTP budget allocation service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/budgetopt/budgetopt/internal/artifact"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/rules"
)

// Config controls the service runtime behavior.
type Config struct {
	Addr        string
	Log         zerolog.Logger
	Loader      *artifact.Loader
	Allocator   *rules.Allocator
	CORSOrigins []string
	// ReloadEvery re-warms the model cache on this interval; zero disables it.
	ReloadEvery time.Duration
	Metrics     *Metrics
}

// Status is served at /healthz.
type Status struct {
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	LastReload  time.Time         `json:"last_reload"`
	ReloadCount int64             `json:"reload_count"`
	Source      string            `json:"source"`
	Models      map[string]string `json:"models"`
}

// Service provides the HTTP API and background model reloads.
type Service struct {
	cfg      Config
	log      zerolog.Logger
	router   *chi.Mux
	validate *validator.Validate
	metrics  *Metrics
	cron     *cron.Cron

	mu          sync.RWMutex
	startedAt   time.Time
	lastReload  time.Time
	reloadCount int64
	modelErrs   map[model.AreaType]error
}

// New returns a service with routes wired. Loader and Allocator are required.
func New(cfg Config) (*Service, error) {
	if cfg.Loader == nil {
		return nil, errors.New("server: loader is required")
	}
	if cfg.Allocator == nil {
		return nil, errors.New("server: allocator is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8090"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	s := &Service{
		cfg:       cfg,
		log:       cfg.Log.With().Str("component", "server").Logger(),
		router:    chi.NewRouter(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		metrics:   cfg.Metrics,
		startedAt: time.Now(),
		modelErrs: make(map[model.AreaType]error),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestID)
	s.router.Use(s.observe)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
}

func (s *Service) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)
		r.Get("/models", s.handleModels)
		r.Post("/predict", s.handlePredict)
		r.Post("/allocate", s.handleAllocate)
	})
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP listener and reload schedule until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Str("source", s.cfg.Loader.Source().String()).Msg("listening")

	// Warm up front so /healthz is useful immediately.
	s.Reload(ctx)

	if s.cfg.ReloadEvery > 0 {
		if err := s.startReloads(ctx); err != nil {
			_ = server.Close()
			return err
		}
		defer s.stopReloads()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Service) startReloads(ctx context.Context) error {
	s.cron = cron.New()
	schedule := fmt.Sprintf("@every %s", s.cfg.ReloadEvery)
	if _, err := s.cron.AddFunc(schedule, func() { s.Reload(ctx) }); err != nil {
		return fmt.Errorf("scheduling reload %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Msg("model reload scheduled")
	return nil
}

func (s *Service) stopReloads() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Reload re-warms every area's model. Changed artifacts are picked up by
// the loader's version check; missing ones are logged and reported on
// /healthz.
func (s *Service) Reload(ctx context.Context) {
	failed := s.cfg.Loader.Warm(ctx)

	for _, area := range model.AreaTypes() {
		err := failed[area]
		result, loaded := "ok", 1.0
		if err != nil {
			result, loaded = "error", 0
			s.log.Warn().Err(err).Str("area", area.Key()).Msg("model unavailable")
		}
		s.metrics.reloads.WithLabelValues(area.Key(), result).Inc()
		s.metrics.modelsLoaded.WithLabelValues(area.Key()).Set(loaded)
	}

	s.mu.Lock()
	s.modelErrs = failed
	s.lastReload = time.Now()
	s.reloadCount++
	s.mu.Unlock()
}

// Status reports the service's current state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make(map[string]string, len(model.AreaTypes()))
	for _, area := range model.AreaTypes() {
		switch err, ok := s.modelErrs[area]; {
		case s.reloadCount == 0:
			models[area.Key()] = "unknown"
		case ok && err != nil:
			models[area.Key()] = err.Error()
		default:
			models[area.Key()] = "ok"
		}
	}

	return Status{
		Status:      "ok",
		StartedAt:   s.startedAt,
		LastReload:  s.lastReload,
		ReloadCount: s.reloadCount,
		Source:      s.cfg.Loader.Source().String(),
		Models:      models,
	}
}
