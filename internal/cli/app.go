package cli

import (
	"github.com/fariz/warden/internal/audit"
	"github.com/fariz/warden/internal/config"
	"github.com/fariz/warden/internal/logger"
	"github.com/fariz/warden/internal/metrics"
	"github.com/fariz/warden/pkg/coretools"
	"github.com/fariz/warden/pkg/errkit"
	"github.com/fariz/warden/pkg/ratelimit"
	"github.com/fariz/warden/pkg/security"
	"github.com/fariz/warden/pkg/toolexec"
)

// App holds the wired pipeline for one command invocation. Every
// collaborator is an explicit instance owned here.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Audit    *audit.Store
	Limiter  *ratelimit.Limiter
	Executor *toolexec.Executor
}

// newApp loads configuration and wires the full pipeline. Configuration
// problems are fatal: the error aborts the command.
func newApp(handler toolexec.ConfirmationHandler) (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: log}

	policy, err := security.NewPolicy(cfg.Security)
	if err != nil {
		app.Close()
		return nil, err
	}
	validator := security.NewValidator(policy)

	app.Limiter, err = ratelimit.New(cfg.RateLimit.LimiterConfig())
	if err != nil {
		app.Close()
		return nil, err
	}

	registry := toolexec.NewRegistry()
	if err := coretools.Register(registry); err != nil {
		app.Close()
		return nil, err
	}

	app.Metrics = metrics.NewMetrics()

	opts := []toolexec.ExecutorOption{
		toolexec.WithMetrics(app.Metrics),
		toolexec.WithRetrier(errkit.NewRetrier(cfg.Retry.RetrierConfig())),
	}

	if cfg.Audit.Enabled {
		app.Audit, err = audit.NewStore(cfg.Audit.Path, log.GetZerolog())
		if err != nil {
			app.Close()
			return nil, err
		}
		opts = append(opts, toolexec.WithAudit(app.Audit))
	}

	app.Executor = toolexec.NewExecutor(
		registry,
		validator,
		app.Limiter,
		toolexec.NewConfirmationManager(handler, cfg.Confirmation.Timeout()),
		opts...,
	)

	return app, nil
}

// Close releases the app's resources
func (a *App) Close() {
	if a.Limiter != nil {
		a.Limiter.Stop()
	}
	if a.Audit != nil {
		a.Audit.Close()
	}
	if a.Logger != nil {
		a.Logger.Close()
	}
}
