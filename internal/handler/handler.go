package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/set-night/receiptbot/internal/config"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/service"
	"github.com/set-night/receiptbot/internal/telegram"
)

// Intake is the part of service.Intake the handlers drive.
type Intake interface {
	AddPhoto(ctx context.Context, userID string, image []byte, caption string) error
	AddGroupedPhoto(ctx context.Context, userID, correlationID string, image []byte, caption string) error
	AddText(ctx context.Context, userID, text string) error
	Finalize(ctx context.Context, userID string) error
	Retry(ctx context.Context, userID string) error
	Refine(ctx context.Context, userID string) error
	Confirm(ctx context.Context, userID string) error
	Cancel(ctx context.Context, userID string)
	Start(ctx context.Context, userID string)
	Status(ctx context.Context, userID string)
	Snapshot(userID string) (domain.Session, bool)
}

// History lists confirmed submissions; nil when the journal is disabled.
type History interface {
	Recent(ctx context.Context, userID string, limit int) ([]service.Submission, error)
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	intake   Intake
	history  History
	tgLogger *telegram.TelegramLogger
	actions  map[domain.Action]actionFunc
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot      *bot.Bot
	Cfg      *config.Config
	Intake   Intake
	History  History
	TgLogger *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	h := &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		intake:   deps.Intake,
		history:  deps.History,
		tgLogger: deps.TgLogger,
	}
	h.actions = h.actionTable()
	return h
}
