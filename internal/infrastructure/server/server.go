package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/modbridge/internal/api/http"
	"github.com/GriffinCanCode/modbridge/internal/api/middleware"
	"github.com/GriffinCanCode/modbridge/internal/api/ws"
	"github.com/GriffinCanCode/modbridge/internal/coordinator"
	"github.com/GriffinCanCode/modbridge/internal/domain/registry"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/locale"
	"github.com/GriffinCanCode/modbridge/internal/localmods"
	"github.com/GriffinCanCode/modbridge/internal/scripts"
	"github.com/GriffinCanCode/modbridge/internal/store"
)

const shutdownGrace = 5 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	coordinator *coordinator.Coordinator
	store       *store.Store
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
}

// Options overrides the server's seams. Zero values use the real ones.
type Options struct {
	Fs      afero.Fs
	Fetcher scripts.Fetcher
	Logger  *logging.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	logger.Info("Initializing modbridge coordinator",
		zap.String("addr", cfg.Addr()),
		zap.String("store", cfg.Store.Dir),
		zap.String("mods", cfg.Mods.Dir),
	)

	metrics := monitoring.NewMetrics()

	st, err := openStore(fs, cfg.Store)
	if err != nil {
		return nil, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = scripts.NewClient(scripts.ClientConfig{
			BaseURL:  cfg.Scripts.BaseURL,
			MaxBytes: cfg.Scripts.MaxBytes,
			Timeout:  cfg.Scripts.Timeout,
			Retries:  cfg.Scripts.Retries,
			RPS:      cfg.Scripts.RPS,
			Logger:   logger.Component("fetch"),
			Metrics:  metrics,
		})
	}
	cache := scripts.NewCache(fetcher, st, logger.Component("cache"), metrics)

	resolver := localmods.NewFSResolver(fs, cfg.Mods.Dir)
	reg := registry.NewManager(st, cache, resolver, logger.Component("registry"), metrics)
	if _, err := registry.NewSeeder(reg, fs, cfg.Mods.ManifestPath).Seed(context.Background()); err != nil {
		logger.Warn("Failed to seed local mods", zap.Error(err))
	}

	catalog, err := locale.LoadDir(fs, cfg.Locale.Dir, cfg.Locale.Default)
	if err != nil {
		logger.Warn("Failed to load locale bundles", zap.Error(err))
		catalog = locale.NewCatalog(cfg.Locale.Default)
	}
	logger.Info("Locales loaded", zap.Strings("locales", catalog.Locales()))

	coord := coordinator.New(coordinator.Config{AckTimeout: cfg.Relay.AckTimeout},
		reg, cache, st, catalog, logger.Component("coordinator"), metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	apihttp.NewHandlers(coord).Register(router)

	// Channel A for bridges
	router.GET("/bridge", ws.NewHandler(coord, logger.Component("ws"), metrics).HandleConnection)

	// Bundled mod files and their manifest, for HTTP resolvers
	router.StaticFS("/modfiles", afero.NewHttpFs(fs).Dir(cfg.Mods.Dir))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:      router,
		coordinator: coord,
		store:       st,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
	}, nil
}

func openStore(fs afero.Fs, cfg config.StoreConfig) (*store.Store, error) {
	if cfg.Dir == "" {
		return store.NewMemory(), nil
	}
	st, err := store.Open(fs, cfg.Dir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Coordinator returns the coordinator behind the API.
func (s *Server) Coordinator() *coordinator.Coordinator {
	return s.coordinator
}

// Run serves HTTP until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr()
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; the
	// coordinator's Close ends them.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops background work and flushes the store.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if err := s.coordinator.Close(); err != nil {
		s.logger.Error("Failed to stop coordinator", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close store", zap.Error(err))
		return fmt.Errorf("failed to close store: %w", err)
	}

	_ = s.logger.Sync()
	return nil
}
