// Package daemon runs the long-lived maintenance service: the metrics
// endpoint and scheduled audit retention.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fariz/warden/internal/audit"
	"github.com/fariz/warden/internal/config"
	"github.com/fariz/warden/internal/logger"
	"github.com/fariz/warden/internal/metrics"
	"github.com/fariz/warden/pkg/errkit"
)

// Daemon owns the background services around the tool pipeline
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	audit   *audit.Store

	scheduler     *cron.Cron
	metricsServer *http.Server
}

// New creates a daemon. The audit store may be nil when auditing is disabled.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics, store *audit.Store) *Daemon {
	return &Daemon{
		config:  cfg,
		logger:  log,
		metrics: m,
		audit:   store,
	}
}

// Run starts the daemon's services and blocks until the context is cancelled
// or a termination signal arrives
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.startScheduler(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if d.config.Metrics.Enabled {
		d.startMetricsServer(errCh)
	}

	d.logger.Info().Msg("Daemon started")

	select {
	case <-ctx.Done():
		d.logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		d.logger.Error().Err(err).Msg("Metrics server failed")
		d.shutdown()
		return err
	}

	d.shutdown()
	return nil
}

// startScheduler schedules daily audit pruning when auditing is enabled
func (d *Daemon) startScheduler() error {
	d.scheduler = cron.New()

	if d.audit != nil && d.config.Audit.Enabled {
		retention := d.config.Audit.RetentionDays
		_, err := d.scheduler.AddFunc("@daily", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			cutoff := time.Now().AddDate(0, 0, -retention)
			removed, err := d.audit.Prune(ctx, cutoff)
			if err != nil {
				d.logger.Error().Err(err).Msg("Audit prune failed")
				return
			}
			d.logger.Info().
				Int64("removed", removed).
				Time("cutoff", cutoff).
				Msg("Audit prune completed")
		})
		if err != nil {
			return errkit.Wrap(errkit.KindConfiguration, err, "failed to schedule audit prune")
		}
	}

	d.scheduler.Start()
	return nil
}

func (d *Daemon) startMetricsServer(errCh chan<- error) {
	addr := fmt.Sprintf("%s:%d", d.config.Metrics.Host, d.config.Metrics.Port)

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	d.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		d.logger.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

func (d *Daemon) shutdown() {
	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
	}

	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	d.logger.Info().Msg("Daemon stopped")
}
