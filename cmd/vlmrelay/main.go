package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	relaypkg "github.com/visiona/vlmrelay/internal/relay"
	configpkg "github.com/visiona/vlmrelay/internal/relay/config"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
	wstransport "github.com/visiona/vlmrelay/transport/websocket"
)

func main() {
	logger := newServiceLogger()

	conf, err := configpkg.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", err, nil)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := relaypkg.NewService(conf, logger, relaypkg.ServiceDependencies{})
	if err != nil {
		logger.Error("failed to build service", err, nil)
		os.Exit(1)
	}

	svc.RegisterHTTPHandler(conf.HTTPPort, "/ws", wstransport.NewHandler(svc.Registry(), logger))

	if err := svc.Start(ctx); err != nil {
		logger.Error("relay exited with error", err, nil)
		os.Exit(1)
	}
}

func newServiceLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}
