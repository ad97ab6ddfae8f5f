// Package bootstrap wires all dependencies and starts the application.
// Behavior is configured from the YAML file; environment variables cover
// only logging, which must exist before the config is read.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/whovisions/costgate/adapters/clock"
	"github.com/whovisions/costgate/adapters/csvimport"
	"github.com/whovisions/costgate/adapters/idgen"
	"github.com/whovisions/costgate/adapters/memory"
	"github.com/whovisions/costgate/adapters/metrics"
	"github.com/whovisions/costgate/adapters/sqlite"
	"github.com/whovisions/costgate/adapters/upstream"
	"github.com/whovisions/costgate/app"
	"github.com/whovisions/costgate/config"
	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/route"
	"github.com/whovisions/costgate/domain/tier"
	"github.com/whovisions/costgate/ports"
	"github.com/whovisions/costgate/web"
)

// Environment variable names for bootstrap configuration.
const (
	EnvLogLevel  = "COSTGATE_LOG_LEVEL"
	EnvLogFormat = "COSTGATE_LOG_FORMAT"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	Store      ports.PriceStore
	Tracker    *app.Tracker
	Estimator  *app.Estimator
	Executor   *app.Executor
	Importer   *csvimport.Importer
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry
	HTTPServer *http.Server

	invoker ports.TierInvoker
}

// Options controls application construction.
type Options struct {
	// ConfigPath is the YAML config file. Empty means built-in defaults
	// with no file watching.
	ConfigPath string

	// WithServer builds the HTTP server. CLI commands that only touch
	// the store leave it off.
	WithServer bool
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	logger := setupLoggerFromEnv()

	holder, err := newHolder(opts.ConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := holder.Get()

	a := &App{
		Logger:   logger,
		Config:   holder,
		Registry: prometheus.NewRegistry(),
	}
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	if err := a.initStore(cfg); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	clk := clock.Real{}
	ids := idgen.UUID{}

	a.Tracker = app.NewTracker(app.TrackerDeps{
		Store:   a.Store,
		Clock:   clk,
		IDGen:   ids,
		Metrics: a.Metrics,
		Logger:  logger,
	})
	a.Estimator = app.NewEstimator(app.EstimatorDeps{
		Store:   a.Store,
		Specs:   a.tierSpecs,
		Clock:   clk,
		MaxAge:  cfg.Estimator.MaxPriceAge,
		Metrics: a.Metrics,
		Logger:  logger,
	})
	a.Executor = app.NewExecutor(app.ExecutorDeps{
		Estimator:      a.Estimator,
		Specs:          a.tierSpecs,
		Routing:        a.routing,
		Clock:          clk,
		AttemptTimeout: cfg.Executor.AttemptTimeout,
		Metrics:        a.Metrics,
		Logger:         logger,
	})
	a.Importer = csvimport.New(a.Store, clk, ids, logger)

	if cfg.Executor.UpstreamURL != "" {
		inv, err := upstream.New(upstream.Config{
			BaseURL: cfg.Executor.UpstreamURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init upstream: %w", err)
		}
		a.invoker = inv
	}

	if opts.WithServer {
		a.initHTTPServer(cfg)
	}

	return a, nil
}

// tierSpecs reads the current tier ladder; hot-reload safe.
func (a *App) tierSpecs() []tier.Spec {
	return a.Config.Get().TierSpecs()
}

func (a *App) routing() (route.Table, fallback.Chains) {
	cfg := a.Config.Get()
	return cfg.RoutingTable(), cfg.Chains()
}

func newHolder(path string, logger zerolog.Logger) (*config.Holder, error) {
	if path == "" {
		return config.NewStaticHolder(config.Default(), logger), nil
	}
	holder, err := config.NewHolder(path, logger)
	if err != nil {
		return nil, err
	}
	if err := holder.WatchFile(); err != nil {
		logger.Warn().Err(err).Msg("config file watching disabled")
	}
	holder.WatchSignals()
	return holder, nil
}

func (a *App) initStore(cfg *config.Config) error {
	switch cfg.Storage.Driver {
	case "memory":
		a.Store = memory.NewPriceStore()
		a.Logger.Info().Msg("using in-memory price store")
	default:
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.Store = sqlite.NewPriceStore(db)
		a.Logger.Info().Str("path", cfg.Storage.Path).Msg("sqlite price store ready")
	}
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := web.NewHandler(web.Deps{
		Tracker:          a.Tracker,
		Estimator:        a.Estimator,
		Executor:         a.Executor,
		Invoker:          a.invoker,
		Clock:            clock.Real{},
		Registry:         a.Registry,
		Logger:           a.Logger,
		DefaultThreshold: cfg.Spike.ThresholdPercent,
		DefaultLookback:  cfg.Spike.LookbackDays,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until interrupt or server error.
func (a *App) Run() error {
	if a.HTTPServer == nil {
		return fmt.Errorf("no http server configured")
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}
	a.Config.Stop()
	// Store.Close closes the sqlite handle when one is open.
	if err := a.Store.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("store close error")
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLoggerFromEnv() zerolog.Logger {
	levelStr := os.Getenv(EnvLogLevel)
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv(EnvLogFormat) == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
