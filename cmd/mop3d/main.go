package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mop3d/mop3d/internal/config"
	"github.com/mop3d/mop3d/internal/gateway"
	"github.com/mop3d/mop3d/internal/logging"
	"github.com/mop3d/mop3d/internal/metrics"
	"github.com/mop3d/mop3d/internal/pop3"
	"github.com/mop3d/mop3d/internal/server"
	"github.com/mop3d/mop3d/internal/smtp"
)

func main() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		collector = metrics.NewPrometheusCollector(metricsServer.Registry())
		go func() {
			if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	recent := &gateway.RecentID{}
	opener := gateway.NewOpener(&cfg, recent, collector, logger)

	srv, err := server.New(server.Config{Cfg: &cfg, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating server: %v\n", err)
		os.Exit(1)
	}

	srv.AddListener("pop3", cfg.POP3Addr(), pop3.Handler(opener, recent, collector))

	if cfg.NoSMTP {
		logger.Info("SMTP listener disabled")
	} else {
		submitter := gateway.NewSubmitter(&cfg, collector, logger)
		srv.AddListener("smtp", cfg.SMTPAddr(), smtp.Handler(cfg.Hostname, submitter, collector))
	}

	logger.Info("starting mop3d",
		"hostname", cfg.Hostname,
		"account", cfg.Account,
		"pop3", cfg.POP3Addr(),
		"smtp_enabled", !cfg.NoSMTP,
	)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("mop3d stopped")
}
