package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	receiptbot "github.com/set-night/receiptbot"
	"github.com/set-night/receiptbot/internal/config"
	"github.com/set-night/receiptbot/internal/handler"
	"github.com/set-night/receiptbot/internal/repository"
	"github.com/set-night/receiptbot/internal/service"
	"github.com/set-night/receiptbot/internal/session"
	"github.com/set-night/receiptbot/internal/telegram"
)

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Submission journal
	var (
		journal service.Journal
		history handler.History
	)
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		migrationsFS, err := fs.Sub(receiptbot.MigrationsFS, "migrations")
		if err != nil {
			slog.Error("failed to load embedded migrations", "error", err)
			os.Exit(1)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		j := repository.NewJournal(pool)
		journal, history = j, j
	} else {
		slog.Info("DATABASE_URL not set, submission journal disabled")
	}

	// Collaborators
	extractor, err := newExtractor(ctx, cfg)
	if err != nil {
		slog.Error("failed to create extractor", "error", err)
		os.Exit(1)
	}
	ledger := service.NewFireflyLedger(service.FireflyConfig{
		BaseURL:            cfg.FireflyURL,
		Token:              cfg.FireflyToken,
		DefaultAccountID:   cfg.FireflyDefaultAccountID,
		DefaultAccountName: cfg.FireflyDefaultAccountName,
		Timeout:            config.LedgerTimeout,
		CacheTTL:           config.LedgerCacheTTL,
	})

	// Handler pointer for use in default handler closure
	var (
		h        *handler.Handler
		tgLogger *telegram.TelegramLogger
	)

	// Create bot
	report := func(r any) {
		tgLogger.LogError(fmt.Errorf("panic: %v", r), "update handler")
	}
	opts := handler.BotOptions(cfg.IsAllowed, report, func() *handler.Handler { return h })

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Initialize telegram logger
	tgLogger = telegram.NewTelegramLogger(b, cfg)

	// Session state
	store := session.NewMemoryStore()
	intake := service.NewIntake(service.Deps{
		Store:     store,
		Locks:     session.NewKeyedMutex(),
		Extractor: extractor,
		Ledger:    ledger,
		Notifier:  telegram.NewNotifier(b, tgLogger),
		Journal:   journal,
		Options: service.Options{
			Debounce:           cfg.BatchDebounce(),
			MaxAttempts:        cfg.MaxProcessingAttempts,
			MinTags:            cfg.MinTags,
			AllowEmptyFinalize: cfg.AllowEmptyFinalize,
			ExtractionTimeout:  config.ExtractionTimeout,
			Detach:             true,
		},
	})

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Intake:   intake,
		History:  history,
		TgLogger: tgLogger,
	})

	// Register all handlers
	h.Register()

	// Start stale session eviction
	evictor := session.NewEvictor(store, cfg.SessionMaxAge(), config.SessionEvictInterval)
	evictor.Start(ctx)

	// Start bot
	slog.Info("starting bot",
		"username", me.Username,
		"provider", cfg.ExtractorProvider,
		"allowed_users", cfg.AllowedUserIDsString(),
		"journal", journal != nil,
	)
	b.Start(ctx)

	// Graceful shutdown
	evictor.Stop()
	intake.Stop()
	slog.Info("bot stopped gracefully")
}

func newExtractor(ctx context.Context, cfg *config.Config) (service.Extractor, error) {
	switch cfg.ExtractorProvider {
	case config.ProviderGemini:
		return service.NewGeminiExtractor(ctx, cfg.GeminiKey, cfg.GeminiModel)
	default:
		return service.NewOpenRouterExtractor(cfg.OpenRouterKey, cfg.OpenRouterModel, config.ExtractionTimeout), nil
	}
}
