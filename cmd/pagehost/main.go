package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/localmods"
	"github.com/GriffinCanCode/modbridge/internal/pagehost"
	"github.com/GriffinCanCode/modbridge/internal/realm"
	"github.com/GriffinCanCode/modbridge/internal/relay"
)

const defaultPage = `<html><head><title>game</title></head><body><div id="game"></div></body></html>`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	flag.StringVar(&cfg.Page.CoordinatorURL, "coordinator", cfg.Page.CoordinatorURL, "Coordinator bridge URL")
	flag.StringVar(&cfg.Page.ModsURL, "mods", cfg.Page.ModsURL, "Base URL of the bundled mods")
	flag.StringVar(&cfg.Page.HTMLPath, "page", cfg.Page.HTMLPath, "HTML document to host (empty uses a blank game page)")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	defer func() { _ = logger.Sync() }()

	page := defaultPage
	if cfg.Page.HTMLPath != "" {
		raw, err := os.ReadFile(cfg.Page.HTMLPath)
		if err != nil {
			logger.Fatal("Failed to read page", zap.String("path", cfg.Page.HTMLPath), zap.Error(err))
		}
		page = string(raw)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := relay.DialWebSocket(ctx, cfg.Page.CoordinatorURL, nil)
	if err != nil {
		logger.Fatal("Failed to reach coordinator", zap.String("url", cfg.Page.CoordinatorURL), zap.Error(err))
	}
	conn := relay.NewConn(transport, logger.Component("relay"), nil)

	rc := realm.DefaultConfig()
	rc.ExecTimeout = cfg.Realm.ExecTimeout
	rc.RetryInterval = cfg.Realm.RetryInterval
	rc.MaxRetries = cfg.Realm.MaxRetries
	rc.RequestTimeout = cfg.Relay.RequestTimeout

	host, err := pagehost.New(conn, pagehost.Options{
		Realm:    rc,
		Page:     page,
		Resolver: localmods.NewHTTPResolver(cfg.Page.ModsURL, cfg.Scripts.Timeout),
		Logger:   logger.Component("page"),
	})
	if err != nil {
		conn.Close()
		logger.Fatal("Failed to create page", zap.Error(err))
	}
	defer host.Close()

	logger.Info("Page attached", zap.String("coordinator", cfg.Page.CoordinatorURL))
	if err := host.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Page stopped", zap.Error(err))
	}
}
