package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsinsight/internal/analyzer"
	"newsinsight/internal/api"
	"newsinsight/internal/auth"
	"newsinsight/internal/bot"
	"newsinsight/internal/config"
	"newsinsight/internal/dashboard"
	"newsinsight/internal/database"
	"newsinsight/internal/ingest"
	"newsinsight/internal/metrics"
	"newsinsight/internal/ratelimiter"
	"newsinsight/internal/scheduler"
	"newsinsight/internal/sources"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	m := metrics.New()

	authSvc := auth.New(db, auth.Config{
		Secret:    cfg.Session.Secret,
		Issuer:    cfg.Session.Issuer,
		TTL:       cfg.Session.TTL,
		CacheSize: cfg.Session.CacheSize,
	}, log)

	deps := ingest.Deps{
		Store:    db,
		Sources:  initSources(ctx, cfg, log),
		Analyzer: initAnalyzer(ctx, cfg, log),
		Metrics:  m,
	}

	telegram, limiter := initTelegram(ctx, cfg, log)
	if telegram != nil {
		defer limiter.Stop()
		deps.Notifier = bot.NewDigest(limiter, log)

		go telegram.Start(ctx)
	}

	pipeline := ingest.New(deps, ingest.Config{
		Workers:  cfg.Ingest.Workers,
		Language: cfg.NewsAPI.Language,
		PageSize: cfg.NewsAPI.PageSize,
	}, log)

	sched := scheduler.New(ctx, pipeline, authSvc, scheduler.Config{
		IngestSpec:    cfg.Ingest.Schedule,
		IngestTimeout: cfg.Ingest.Timeout,
	}, log)

	if cfg.Ingest.OnStart {
		go sched.RunNow()
	}

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.Ingest.Schedule,
			"timezone", scheduler.Timezone)

		return
	}
	defer sched.Stop()

	srv, err := api.New(api.Deps{
		Auth:      authSvc,
		Dashboard: dashboard.New(db, log),
		Health:    db,
		Metrics:   m,
	}, api.Config{
		AuthRatePerSec:    cfg.HTTP.AuthRatePerSec,
		AuthBurst:         cfg.HTTP.AuthBurst,
		SecureCookies:     cfg.HTTP.SecureCookies,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize HTTP server",
			"error", err)

		return
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		log.InfoContext(ctx, "Shutdown signal is received")
	case err = <-serveErr:
		if err != nil {
			log.ErrorContext(ctx, "HTTP server is stopped",
				"error", err,
				"addr", cfg.HTTP.Addr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
			"error", err)
	}

	log.InfoContext(shutdownCtx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func initSources(ctx context.Context, cfg config.Config, log *slog.Logger) []sources.Source {
	srcs := []sources.Source{
		sources.NewRSSSource(log),
		sources.NewTelegramChannelSource(log),
	}

	if cfg.NewsAPI.APIKey == "" {
		log.WarnContext(ctx, "NEWS_API_KEY is missing so only feed and channel sources will be used",
			"envVar", "NEWS_API_KEY")

		return srcs
	}

	log.InfoContext(ctx, "NewsAPI source is initialized",
		"baseURL", cfg.NewsAPI.BaseURL)

	return append(srcs, sources.NewNewsAPIClient(cfg.NewsAPI.APIKey, cfg.NewsAPI.BaseURL, cfg.NewsAPI.Timeout))
}

func initAnalyzer(ctx context.Context, cfg config.Config, log *slog.Logger) analyzer.Analyzer {
	if cfg.LLM.APIKey == "" {
		log.WarnContext(ctx, "LLM_API_KEY is missing so fallback will be used",
			"envVar", "LLM_API_KEY")

		return nil
	}

	a, err := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Referer:   cfg.LLM.Referer,
		Title:     cfg.LLM.Title,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to create analyzer so fallback will be used",
			"error", err,
			"model", cfg.LLM.Model)

		return nil
	}

	log.InfoContext(ctx, "Analyzer is initialized",
		"model", cfg.LLM.Model,
		"baseURL", cfg.LLM.BaseURL)

	return a
}

func initTelegram(ctx context.Context, cfg config.Config, log *slog.Logger) (*bot.Bot, *ratelimiter.RateLimiter) {
	if cfg.TelegramToken == "" {
		log.WarnContext(ctx, "TELEGRAM_TOKEN is missing so digests are disabled",
			"envVar", "TELEGRAM_TOKEN")

		return nil, nil
	}

	telegram, err := bot.New(cfg.TelegramToken, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot so digests are disabled",
			"error", err)

		return nil, nil
	}

	log.InfoContext(ctx, "Bot is initialized")

	return telegram, ratelimiter.New(telegram, log)
}
