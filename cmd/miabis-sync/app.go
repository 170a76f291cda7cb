package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/miabis/miabis/internal/config"
	"github.com/miabis/miabis/internal/domain/miabis"
	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/blaze"
	"github.com/miabis/miabis/internal/platform/db"
	"github.com/miabis/miabis/internal/platform/fhirstore"
	"github.com/miabis/miabis/internal/platform/metrics"
)

// pushJob is the Pushgateway job one-shot commands report under.
const pushJob = "miabis_sync"

// app is everything a command needs: the service over the configured store,
// the ICD-10 code table, and the metrics and health surfaces of that store.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	svc     *miabis.Service
	codes   terminology.ICD10Repository
	metrics *metrics.Collector
	health  echo.HandlerFunc
	close   func()
}

// pushMetrics reports the command's store traffic to the configured
// Pushgateway. A failed push is logged and does not fail the command.
func (a *app) pushMetrics(ctx context.Context) {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	if err := a.metrics.Push(ctx, a.cfg.PushgatewayURL, pushJob); err != nil {
		a.logger.Warn().Err(err).Str("url", a.cfg.PushgatewayURL).Msg("metrics push failed")
		return
	}
	a.logger.Debug().Str("url", a.cfg.PushgatewayURL).Msg("metrics pushed")
}

// opener builds the app for one command invocation.
type opener func(ctx context.Context) (*app, error)

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// openFromEnv loads and validates the configuration and connects the
// selected store backend.
func openFromEnv(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return openApp(ctx, cfg, newLogger(cfg))
}

func openApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	collector := metrics.NewCollector("miabis", nil)
	a := &app{cfg: cfg, logger: logger, codes: terminology.WHO(), metrics: collector, close: func() {}}

	var store metrics.Store
	switch cfg.StoreBackend {
	case config.BackendBlaze:
		client, err := blaze.New(blaze.Config{
			BaseURL:   cfg.BlazeURL,
			Username:  cfg.BlazeUsername,
			Password:  cfg.BlazePassword,
			Timeout:   cfg.BlazeTimeout,
			RetryMax:  cfg.BlazeRetryMax,
			RetryWait: cfg.BlazeRetryWait,
			PageSize:  cfg.BlazePageSize,
		}, blaze.WithLogger(logger.With().Str("component", "blaze").Logger()), blaze.WithMetrics(collector))
		if err != nil {
			return nil, err
		}
		store = client
		a.health = db.HealthHandler(config.BackendBlaze, client.Ping, nil)
		logger.Debug().Str("url", cfg.BlazeURL).Msg("using blaze store")

	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			Schema:   cfg.DBSchema,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		store = fhirstore.NewPostgres(pool)
		a.codes = terminology.NewICD10RepoPG(pool)
		a.health = db.PoolHealthHandler(pool)
		a.close = pool.Close
		logger.Debug().Str("schema", cfg.DBSchema).Msg("using postgres store")

	case config.BackendMemory:
		store = fhirstore.NewMemory()
		a.health = db.HealthHandler(config.BackendMemory, func(context.Context) error { return nil }, nil)
		logger.Warn().Msg("using in-memory store, nothing is persisted")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	a.svc = miabis.NewService(metrics.Instrument(store, collector),
		miabis.WithLogger(logger.With().Str("component", "miabis").Logger()),
		miabis.WithCodeTable(a.codes))
	return a, nil
}
