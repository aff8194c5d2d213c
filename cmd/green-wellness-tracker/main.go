package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/green-wellness-tracker/internal/api/http"
	"github.com/i474232898/green-wellness-tracker/internal/config"
	"github.com/i474232898/green-wellness-tracker/internal/logger"
	"github.com/i474232898/green-wellness-tracker/internal/notify"
	"github.com/i474232898/green-wellness-tracker/internal/profile"
	"github.com/i474232898/green-wellness-tracker/internal/scheduler"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
	"github.com/i474232898/green-wellness-tracker/internal/sensor/providers"
	"github.com/i474232898/green-wellness-tracker/internal/store"
	"github.com/i474232898/green-wellness-tracker/internal/views"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}
	writers := []io.Writer{os.Stdout}
	var hook *logger.SentryHook
	if cfg.SentryDSN != "" {
		hook = logger.NewSentryHook(cfg.AppEnv, cfg.AppName, cfg.SentryDSN, cfg.SentryDebug)
		writers = append(writers, hook)
	}
	l := logger.New(cfg.AppName, cfg.AppEnv, level, writers...)
	defer func() {
		if hook != nil {
			hook.Flush()
		}
		_ = l.Stop()
	}()

	renderer, err := views.Load()
	if err != nil {
		l.Fatal("cannot load templates", map[string]any{"err": err})
	}

	// Shared HTTP client for the upstream API. Zero timeout keeps the client default.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	source := providers.NewSeoulProvider(httpClient, providers.SeoulConfig{
		Endpoint: cfg.APIEndpoint,
		APIKey:   cfg.APIKey,
		Dataset:  cfg.Dataset,
		RowLimit: cfg.RowLimit,
		Location: cfg.Location(),
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	})

	cache := store.NewDatasetCache(cfg.CacheTTL)

	var opts []sensor.Option
	if cfg.MQTTBroker != "" {
		pub := notify.NewMQTTPublisher(notify.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
			Retained:    true,
		}, l)
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pub.Connect(connectCtx); err != nil {
			l.Warning("mqtt not connected yet; relay will retry in background", map[string]any{"err": err})
		}
		cancel()
		defer pub.Disconnect()
		opts = append(opts, sensor.WithPublisher(pub))
	}

	service := sensor.NewService(source, cache, l, opts...)
	// Runs before the MQTT disconnect above.
	defer service.Wait()

	profiles, closeProfiles, err := openProfiles(cfg)
	if err != nil {
		l.Fatal("cannot open profile store", map[string]any{"err": err})
	}
	defer closeProfiles()

	// Scheduler that keeps the dataset cache warm.
	sched := scheduler.New(cfg.RefreshInterval, service, l)
	if err := sched.Start(); err != nil {
		l.Fatal("failed to start scheduler", map[string]any{"err": err})
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.AppOptions{
		AppName:   cfg.AppName,
		AccessLog: true,
		Ready: func() bool {
			_, ok := cache.Age()
			return ok
		},
	}, l)
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Sensors:     service,
		Profiles:    profiles,
		Views:       renderer,
		TrendWindow: cfg.TrendWindow,
		Logger:      l,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			l.Error(err, map[string]any{"op": "fiber server stopped"})
		}
	}()
	l.Info("application started", map[string]any{"port": cfg.Port, "profile_backend": cfg.ProfileBackend})

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	l.Warning("stopping application services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		l.Error(err, map[string]any{"op": "error during shutdown"})
	}
}

func openProfiles(cfg *config.AppConfig) (profile.Store, func(), error) {
	if cfg.ProfileBackend == config.BackendSQLite {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := profile.OpenSQLite(ctx, cfg.ProfileDBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
	return profile.NewFileStore(cfg.ProfileDir), func() {}, nil
}
