// Command flowdecode runs the NetFlow/IPFIX collector: it listens on a
// UDP socket, decodes export datagrams, and writes decoded flows as
// JSON-lines, gzip-compressed when -transport.file.gzip is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowbridge/flowdecode/pkg/flowdecode"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := flowdecode.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	logger, err := flowdecode.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	collector, err := flowdecode.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build collector: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := collector.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop collector: %w", err)
	}
	return nil
}
