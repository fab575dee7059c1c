package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shortwave/go-shortwave/internal/logger"
	"github.com/shortwave/go-shortwave/internal/radio/node"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// flag package already printed usage/error
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	// Initialize global logger and set level based on flag/config.
	logger.Init()
	if cfg.node.LogLevel != "" {
		if err := logger.SetLevel(cfg.node.LogLevel); err != nil {
			fmt.Printf("Warning: invalid log level %q, using default\n", cfg.node.LogLevel)
		}
	}
	log := logger.Logger().With("component", "cli")

	n, err := node.New(cfg.node, version)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run in a goroutine so a stuck shutdown can still be forced out.
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			log.Error("node failed", "error", err)
			os.Exit(1)
		}
		log.Info("node stopped cleanly")
		return
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	select {
	case err := <-done:
		if err != nil {
			log.Error("node stop error", "error", err)
			os.Exit(1)
		}
		log.Info("node stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
		os.Exit(1)
	}
}
