package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/config"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/extract"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/handler"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/ocr"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/repository"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/server"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/service"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/store"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/syncer"
)

// @title Receipt Rewards Engine API
// @version 1.0
// @description Receipt scanning, extraction and rewards pipeline with an encrypted offline capture queue
// @BasePath /
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg)
	log.Info().Msg("configuration loaded")

	// Session secret lives only for this process. If generation fails the
	// store falls back to plaintext storage rather than refusing captures.
	keyring, err := store.NewSessionKeyring()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session secret, offline captures will not be encrypted")
		keyring = &store.SessionKeyring{}
	}
	cipher := store.NewCipher(keyring, cfg.KeyIterations)

	offlineStore, err := store.Open(store.Config{
		Path:          cfg.StoragePath,
		RetryBase:     cfg.SaveRetryBase,
		RetryAttempts: cfg.SaveRetryAttempts,
	}, cipher, log.With().Str("component", "store").Logger())
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("failed to open offline store")
	}

	factory := ocr.RemoteEngineFactory(&ocr.RemoteEngineConfig{
		BaseURL: cfg.OCREngineURL,
		Timeout: cfg.OCREngineTimeout,
	})
	pool := ocr.NewPool(factory, ocr.PoolConfig{
		MaxEngines:             cfg.MaxEngines,
		MediumQualityThreshold: cfg.MediumQualityThreshold,
		HighQualityThreshold:   cfg.HighQualityThreshold,
	}, log.With().Str("component", "ocr").Logger())

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pool.Initialize(initCtx); err != nil {
		// engines are created lazily on first use as well, so a cold
		// recognizer at boot is not fatal
		log.Warn().Err(err).Msg("ocr pool warm-up failed, will retry on first request")
	}
	cancelInit()

	var rewards *repository.RewardsClient
	var sink repository.ReceiptSink
	if cfg.RewardsAPIURL != "" {
		rewards = repository.NewRewardsClient(&repository.RewardsConfig{
			BaseURL: cfg.RewardsAPIURL,
			APIKey:  cfg.RewardsAPIKey,
			Timeout: cfg.RewardsTimeout,
		})
		sink = rewards
	} else {
		log.Warn().Msg("no rewards backend configured, running in local-only mode")
	}

	processor := service.NewProcessorService(pool, extract.NewRegexExtractor(), sink, ocr.ProcessOptions{
		Timeout:       cfg.OCRTimeout,
		MinConfidence: cfg.MinConfidence,
	}, log.With().Str("component", "processor").Logger())
	if rewards != nil {
		processor.SetLedger(rewards)
	}

	notifier := syncer.NewChannelNotifier()
	coordinator := syncer.New(offlineStore, processor, notifier, log.With().Str("component", "syncer").Logger())

	syncCtx, cancelSync := context.WithCancel(context.Background())
	go coordinator.Run(syncCtx)

	appServer := server.NewServer(cfg, log.With().Str("component", "http").Logger())
	appServer.OnShutdown(func() {
		cancelSync()
		pool.Terminate()
		keyring.Invalidate()
		if err := offlineStore.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close offline store")
		}
	})

	receiptHandler := handler.NewReceiptHandler(processor, offlineStore, coordinator, notifier, pool, log.With().Str("component", "handler").Logger())
	receiptHandler.RegisterRoutes(appServer.GetRouter())

	if err := appServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("server shutdown complete")
}

// newLogger builds the process logger from configuration. LOG_FORMAT=pretty
// switches to human-readable console output for local development.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if cfg.LogFormat == "pretty" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}
