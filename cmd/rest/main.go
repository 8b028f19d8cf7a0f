package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-shopping-assistant-be/internal/bootstrap"
	"ai-shopping-assistant-be/internal/config"
	"ai-shopping-assistant-be/internal/server"
	"ai-shopping-assistant-be/internal/tracer"
	"ai-shopping-assistant-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Panicf("Unable to bootstrap container: %v", err)
	}
	defer container.Close()

	shutdownTracer := tracer.InitTracer(ctx, tracer.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "ai-shopping-assistant-be",
	}, container.Logger)
	defer func() { _ = shutdownTracer(context.Background()) }()

	srv := server.New(cfg, container)

	// 4. Run the server and background services under one group
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.IngestionConsumer.Consume(gctx)
	})

	if container.BatchWorker != nil {
		g.Go(func() error {
			return container.BatchWorker.RunBatchWorker(gctx, container.PubSub)
		})
	}

	g.Go(srv.Run)

	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		container.Logger.Error("MAIN", "Service stopped with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
