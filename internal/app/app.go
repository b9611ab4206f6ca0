// Package app wires together frostguard's runtime modes: an HTTP API
// process serving ingestion and alert lifecycle endpoints, a worker process
// running the escalation sweep and SMS dispatch, and a stream process
// hosting the live-reading subscription hub (spec §9 REDESIGN FLAGS:
// these run as separate processes rather than goroutines inside one binary
// so each can be scaled independently).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/frostguard/core/internal/audit"
	"github.com/frostguard/core/internal/config"
	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/httpserver"
	"github.com/frostguard/core/internal/platform"
	"github.com/frostguard/core/internal/telemetry"
	"github.com/frostguard/core/pkg/alert"
	"github.com/frostguard/core/pkg/escalation"
	"github.com/frostguard/core/pkg/evaluator"
	"github.com/frostguard/core/pkg/ingest"
	"github.com/frostguard/core/pkg/jobqueue"
	"github.com/frostguard/core/pkg/metricbucket"
	"github.com/frostguard/core/pkg/notify"
	"github.com/frostguard/core/pkg/stream"
	"github.com/frostguard/core/pkg/threshold"
	"github.com/frostguard/core/pkg/unitcache"
)

// Run loads infrastructure shared by every mode and dispatches to the
// mode-specific entry point named by cfg.Mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(telemetry.LoggerOptions{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		FilePath:  cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSize,
	})
	slog.SetDefault(logger)
	logger.Info("starting frostguard", "mode", cfg.Mode)

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, pool, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, pool, rdb)
	case "stream":
		return runStream(ctx, cfg, logger, pool)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// runAPI serves the HTTP ingestion and query surface: inbound readings,
// the alert lifecycle, manual escalation, and the audit log. Evaluation
// (FSM + alert creation) and metric bucketing happen inline in the
// ingestion path, same as the worker mode's escalation sweep happens off
// the request path — both read and write through the single shared pool
// since frostguard isolates tenants by row, not by schema.
func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	queries := db.New(pool)

	auditWriter := audit.NewWriter(pool, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	streamFlush, err := time.ParseDuration(cfg.StreamFlushInterval)
	if err != nil {
		return fmt.Errorf("parsing stream flush interval %q: %w", cfg.StreamFlushInterval, err)
	}
	hub := stream.NewHub(logger)
	go hub.Run(ctx)
	buffer := stream.NewBuffer(streamFlush, hub.PublishReadingBatch)
	buffer.Run()
	defer buffer.Stop()
	go sampleBufferDepth(ctx, buffer, streamFlush)

	hysteresisTenths := int32(cfg.HysteresisTenths)
	resolver := threshold.New(queries)
	resolver.DefaultConfirm = time.Duration(cfg.DefaultConfirmSec) * time.Second
	eval := evaluator.New(queries, resolver, hysteresisTenths)
	eval.Hub = hub
	aggregator := metricbucket.New(queries, resolver)
	aggregator.Hub = hub

	orchestrator := &ingest.Orchestrator{
		Pool:       pool,
		Evaluator:  eval,
		Aggregator: aggregator,
		Buffer:     buffer,
		Logger:     logger,
	}

	jobs := jobqueue.New(rdb, "sms", logger)
	escalationEngine := escalation.NewEngine(pool, jobs, logger)

	alertStore := alert.NewStore(queries, hub)

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg)

	srv.Router.Get("/status", srv.HandleStatus)

	ingestHandler := ingest.NewHandler(orchestrator)
	srv.APIRouter.Mount("/readings", ingestHandler.Routes())

	alertHandler := alert.NewHandler(alertStore, auditWriter, logger)
	srv.APIRouter.Mount("/alerts", alertHandler.Routes())

	// Mounted separately from /alerts (rather than merged into the same
	// sub-router) to avoid mounting two independent chi routers at an
	// identical path.
	escalationHandler := escalation.NewHandler(escalationEngine, logger)
	srv.APIRouter.Mount("/alert-escalations", escalationHandler.Routes())

	auditHandler := audit.NewHandler(queries, logger)
	srv.APIRouter.Mount("/audit-log", auditHandler.Routes())

	streamHandler := &stream.Handler{Hub: hub, Logger: logger}
	srv.APIRouter.Mount("/stream", streamHandler)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// sampleBufferDepth periodically publishes the stream buffer's unflushed
// sample count to the buffer-depth gauge, at the same cadence the buffer
// itself flushes.
func sampleBufferDepth(ctx context.Context, buffer *stream.Buffer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			telemetry.StreamBufferDepth.Set(float64(buffer.Depth()))
		}
	}
}

// runWorker runs the background sweeps: escalation-level bumps per tenant,
// SMS dispatch off the reliable queue, and the offline-unit demotion sweep
// (spec §4.6, §4.8).
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) error {
	logger.Info("worker started")

	jobs := jobqueue.New(rdb, "sms", logger)
	engine := escalation.NewEngine(pool, jobs, logger)

	interval, err := time.ParseDuration(cfg.EscalationSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing escalation sweep interval %q: %w", cfg.EscalationSweepInterval, err)
	}
	engine.Interval = interval

	var smsChannel notify.Channel
	if cfg.SMSAccountSID != "" && cfg.SMSAuthToken != "" {
		twilio := notify.NewTwilioSMS(cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFromNumber)
		if cfg.SMSAPIBaseURL != "" {
			twilio.BaseURL = cfg.SMSAPIBaseURL
		}
		smsChannel = twilio
		logger.Info("sms dispatch using twilio REST channel")
	} else {
		smsChannel = &notify.NoopChannel{Logger: logger}
		logger.Info("sms dispatch disabled, using noop channel (SMS_ACCOUNT_SID not set)")
	}

	var mirror notify.Channel
	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		mirror = notify.NewSlackChannel(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
		logger.Info("slack mirror enabled", "channel", cfg.SlackAlertChannel)
	}

	dispatcher := &escalation.Dispatcher{
		Queries: db.New(pool),
		Channel: smsChannel,
		Mirror:  mirror,
		Logger:  logger,
	}

	offlineTimeout, err := time.ParseDuration(cfg.UnitOfflineTimeout)
	if err != nil {
		return fmt.Errorf("parsing unit offline timeout %q: %w", cfg.UnitOfflineTimeout, err)
	}
	sweepInterval, err := time.ParseDuration(cfg.UnitSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing unit sweep interval %q: %w", cfg.UnitSweepInterval, err)
	}
	cacheTTL, err := time.ParseDuration(cfg.UnitCacheTTL)
	if err != nil {
		return fmt.Errorf("parsing unit cache TTL %q: %w", cfg.UnitCacheTTL, err)
	}
	cache := unitcache.New(cacheTTL, cfg.UnitCacheMaxSize)
	// cache.Hub is left nil: this process has no live subscriber hub of its
	// own (that lives in runAPI/runStream), so unit:state:changed events from
	// the offline sweep are not published in the current deployment topology.

	go unitcache.RunSweepLoop(ctx, pool, cache, offlineTimeout, sweepInterval, logger)
	go jobqueue.RunWorker(ctx, jobs, dispatcher.Handle)

	engine.Run(ctx)
	return nil
}

// runStream hosts only the live-reading websocket fan-out, split from the
// API process per spec §9 REDESIGN FLAGS so a slow subscriber cannot back
// up ingestion request handling.
func runStream(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) error {
	logger.Info("stream process started")

	hub := stream.NewHub(logger)
	go hub.Run(ctx)

	streamHandler := &stream.Handler{Hub: hub, Logger: logger}

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      streamHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  0,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stream server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down stream server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
