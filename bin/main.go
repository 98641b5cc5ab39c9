package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galaxy/lib/config"
	"galaxy/lib/maintenance"
	"galaxy/lib/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("cannot load configuration: %s", err))
	}

	close_logs, err := maintenance.InitLogger(cfg.LogFile)
	if err != nil {
		panic(fmt.Sprintf("cannot open log file: %s", err))
	}
	defer close_logs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	galaxy, err := server.New(cfg)
	if err != nil {
		panic(fmt.Sprintf("cannot start server: %s", err))
	}

	if err := galaxy.Start(ctx); err != nil {
		slog.Error("Server startup failed", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdown_ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		galaxy.Shutdown(shutdown_ctx)
	}()

	if err := galaxy.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		slog.Error("Server stopped", "error", err)
		stop()
	}
	<-done
}
