package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/e7canasta/orion-depth/internal/config"
	"github.com/e7canasta/orion-depth/internal/core"
	"github.com/e7canasta/orion-depth/internal/emitter"
)

const defaultConfigPath = "config/depthd.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file (empty: env only)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("starting depthd",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"fps", cfg.Sensor.FPS,
		"skeletons", cfg.Sensor.Skeletons,
		"broker", cfg.MQTT.Broker,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var pub core.Publisher
	var em *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		em, err = emitter.NewMQTTEmitter(cfg)
		if err != nil {
			slog.Error("failed to create mqtt emitter", "error", err)
			os.Exit(1)
		}
		if err := em.Connect(ctx); err != nil {
			// paho keeps retrying in the background
			slog.Warn("mqtt not connected yet", "error", err)
		}
		pub = em
	} else {
		slog.Info("no mqtt broker configured, messages are logged only")
	}

	svc := core.New(cfg, pub)
	server := svc.StartHealthServer(cfg.HealthAddr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Run(ctx)
	}()

	exitCode := 0
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errChan; err != nil {
			slog.Error("service error", "error", err)
			exitCode = 1
		}
	case err := <-errChan:
		if err != nil {
			slog.Error("service error", "error", err)
			exitCode = 1
		}
	}

	shutdownTimeout := cfg.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown failed", "error", err)
		exitCode = 1
	}

	if em != nil {
		em.Disconnect()
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	slog.Info("depthd stopped successfully")
}
