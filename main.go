package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"heartpredict/config"
	"heartpredict/db"
	qhttp "heartpredict/http"
	"heartpredict/logger"
	"heartpredict/monitoring"
	"heartpredict/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Logger
	log, level, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.Watch(ctx, configPath, log, func(next *config.Config) {
		if err := logger.SetLevel(level, next.Log.Level); err != nil {
			log.Warn("ignoring log level from reloaded config", zap.Error(err))
			return
		}
		log.Info("log level updated", zap.String("level", next.Log.Level))
	}); err != nil {
		log.Warn("config watch disabled", zap.Error(err))
	}

	// 3. Train the model; nothing is served until this succeeds
	model, err := service.LoadAndTrain(cfg, log)
	if err != nil {
		var fatal *service.StartupFatalError
		if errors.As(err, &fatal) {
			log.Error("startup training failed", zap.String("stage", fatal.Stage), zap.Error(fatal.Err))
		}
		return err
	}

	// 4. Metrics and live feed
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)
	metrics.SetModel(model.Evaluation.Accuracy, model.Summary.BalancedRows)

	hub := monitoring.NewHub(log)
	go hub.Run(ctx)

	// 5. Prediction service over the record store
	store := db.NewPredictionStore(cfg.Database.Path)
	svc, err := service.New(model, store, service.Options{
		CacheSize: cfg.Cache.Size,
		Logger:    log,
		Metrics:   metrics,
		Publisher: hub,
	})
	if err != nil {
		return err
	}
	log.Info("record store ready", zap.String("path", store.Path()))

	// 6. HTTP server
	handlers, err := qhttp.NewHandlers(qhttp.Dependencies{
		Service:  svc,
		History:  store,
		Feed:     hub.HandleWebSocket,
		Gatherer: reg,
		UI: qhttp.UIConfig{
			Title:           cfg.UI.Title,
			BackgroundImage: cfg.UI.BackgroundImage,
			LogoImage:       cfg.UI.LogoImage,
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, handlers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 7. Handle graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	if err := server.Stop(); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	log.Info("exiting")
	return nil
}
