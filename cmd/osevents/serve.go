package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/crawl"
	"github.com/alfredjeanlab/osevents/internal/events"
	"github.com/alfredjeanlab/osevents/internal/metrics"
	"github.com/alfredjeanlab/osevents/internal/server"
	"github.com/alfredjeanlab/osevents/internal/store/postgres"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the HTTP API, gRPC health service and crawl scheduler",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(slog.Default())
	},
}

func serve(logger *slog.Logger) error {
	if err := cfg.RequireDatabaseURL(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}()

	bus, err := newBus(cfg, logger)
	if err != nil {
		return err
	}
	stream := server.NewStreamHub()
	publisher := events.Fanout{stream}
	if bus != nil {
		publisher = append(publisher, bus)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	registry := newRegistry(cfg)
	orch, err := newOrchestrator(ctx, cfg, registry, store, publisher, m, logger, true)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken, logger)
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "err", err)
		}
	}()
	healthCtx, healthCancel := context.WithCancel(ctx)
	go server.WatchHealth(healthCtx, healthServer, store, healthInterval, logger)

	srv := server.New(server.Options{
		Store:     store,
		Crawler:   orch,
		Location:  cfg.Timezone,
		AuthToken: cfg.AuthToken,
		Stream:    stream,
		Metrics:   m,
		Gatherer:  reg,
		Logger:    logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "err", err)
		}
	}()

	var scheduler *crawl.Scheduler
	if cfg.CrawlInterval > 0 {
		scheduler = crawl.NewScheduler(orch, cfg.CrawlInterval, logger)
		scheduler.Start()
		logger.Info("crawl scheduler started", "interval", cfg.CrawlInterval)
	} else {
		logger.Info("crawl scheduler disabled (OSEVENTS_CRAWL_INTERVAL=0)")
	}

	var listener *crawl.Listener
	if bus != nil {
		listener = crawl.NewListener(bus, orch, logger)
		if err := listener.Start(); err != nil {
			logger.Error("failed to subscribe to crawl requests", "err", err)
			listener = nil
		} else {
			logger.Info("crawl request listener started", "topic", events.TopicCrawlRequested)
		}
	}

	logger.Info("osevents server started",
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
		"sources", registry.Names(),
	)
	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	// Crawl producers first, then the servers, so no notification is
	// published into a closed stream.
	if listener != nil {
		listener.Stop()
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	healthCancel()
	grpcServer.GracefulStop()

	stream.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}

	logger.Info("shutdown complete")
	return nil
}
