// glossad is the translation daemon: it owns the SQLite store, runs the
// chunked translation pipeline with its retry and timeout sweeps, and serves
// the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"

	"glossa/internal/cachestore"
	"glossa/internal/config"
	"glossa/internal/httpd"
	"glossa/internal/logging"
	"glossa/internal/services/llm"
	"glossa/internal/translation"
	"glossa/internal/translator"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("acquire daemon lock: %v", err)
	}
	if !locked {
		log.Fatalf("another glossad instance holds %s", cfg.LockPath())
	}
	defer lock.Unlock() //nolint:errcheck

	store, err := translation.Open(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	cache := cachestore.New(store.DB(), cfg.Cache)
	gateway := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		RetryAttempts:  cfg.LLM.RetryAttempts,
	})

	svc := translator.New(cfg, store, cache, gateway, logger)
	go svc.RunMaintenance(ctx)

	server := httpd.New(cfg, svc, store, cache, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("api server", logging.Error(err))
	}
	logger.Info("glossad shutting down")
}
