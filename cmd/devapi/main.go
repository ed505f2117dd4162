package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"savings-client/internal/bootstrap"
	"savings-client/internal/config"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/server"
	"savings-client/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.DevAPI.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(cfg.DevAPI, sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewDevAPIContainer(cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to build dev API: %v", err)
	}
	defer container.Close()

	// 4. Run Server until interrupted
	srv := server.New(cfg, container, sysLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		sysLogger.Info("Server", "Shutting down", nil)
		_ = srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		sysLogger.Error("Server", "Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
