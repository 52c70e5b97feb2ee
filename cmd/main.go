package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/newsenrich/internal/ai"
	"github.com/bilgisen/newsenrich/internal/api"
	"github.com/bilgisen/newsenrich/internal/cache"
	"github.com/bilgisen/newsenrich/internal/config"
	"github.com/bilgisen/newsenrich/internal/enrich"
	"github.com/bilgisen/newsenrich/internal/feed"
	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/middleware"
	"github.com/bilgisen/newsenrich/internal/storage"
	"github.com/bilgisen/newsenrich/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: cfg.LogPretty,
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().
		Str("env", cfg.Env).
		Str("cache_backend", cfg.CacheBackend).
		Int("feeds", len(cfg.Feeds)).
		Msg("Starting application...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	kv, err := newCacheStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("Failed to initialize feed cache")
	}
	defer func() {
		log.Info().Msg("Closing feed cache...")
		if err := kv.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing feed cache")
		}
	}()

	// Remote analysis is optional; without a key only local analysis runs
	var remote ai.RemoteAnalyzer
	if cfg.AIApiKey != "" && cfg.AIApiKey != "test-key" {
		remote = ai.NewGeminiClient(ai.GeminiConfig{
			APIKey:        cfg.AIApiKey,
			Model:         cfg.AIModel,
			BaseURL:       cfg.AIBaseURL,
			Timeout:       cfg.AITimeout,
			RPM:           cfg.AIRPM,
			Burst:         cfg.AIBurst,
			MaxInputChars: cfg.AIMaxInputChars,
		})
	} else {
		log.Warn().Msg("AI_API_KEY not set, using local analysis only")
	}
	gateway := ai.NewGateway(remote, cfg.AITimeout)

	st := store.New(kv, store.Options{Retention: cfg.RetentionWindow})
	processor := feed.NewProcessor(
		feed.NewFetcher(feed.FetcherConfig{Timeout: cfg.HTTPTimeout, RetryCount: 3}),
		st,
		gateway,
		feed.NewContentFetcher(cfg.ContentTimeout),
		enrich.Config{BatchSize: cfg.EnrichBatchSize, BatchDelay: cfg.EnrichBatchDelay},
	)

	unsubscribe := st.Subscribe(func(s store.Stats) {
		log.Debug().
			Str("feed_key", s.FeedKey).
			Uint64("generation", s.Generation).
			Int("pending", s.Pending).
			Int("summarizing", s.Summarizing).
			Int("summarized", s.Summarized).
			Msg("Item store changed")
	})
	defer unsubscribe()

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	api.SetupRoutes(app, api.NewHandlers(cfg, processor, st, gateway.HasRemote()), cfg.AdminAPIKey)

	go refreshLoop(ctx, cfg, processor)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	done := make(chan struct{})
	go func() {
		processor.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Enrichment still running at shutdown deadline")
	}

	log.Info().Msg("Server exited properly")
}

func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		return cache.NewRedisClient(cfg)
	case "s3":
		return storage.NewS3Store(ctx, cfg)
	case "file":
		return storage.NewFileStore(cfg.CachePath)
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// refreshLoop loads the default feed at startup and reloads the active feed
// on every tick.
func refreshLoop(ctx context.Context, cfg *config.Config, processor *feed.Processor) {
	log := logger.Component("refresh")

	load := func(f config.Feed) {
		if _, err := processor.Load(ctx, f, false); err != nil {
			log.Error().
				Err(err).
				Str("feed_key", f.Key).
				Msg("Scheduled feed load failed")
		}
	}

	if f, ok := cfg.Feed(cfg.DefaultFeed); ok {
		load(f)
	}

	if cfg.RefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f, ok := processor.Active()
			if !ok {
				f, ok = cfg.Feed(cfg.DefaultFeed)
			}
			if ok {
				load(f)
			}
		}
	}
}
