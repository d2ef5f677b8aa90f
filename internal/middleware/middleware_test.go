package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func privateMessage(userID int64) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
		},
	}
}

func TestAllowlist(t *testing.T) {
	allowed := func(id int64) bool { return id == 1 }

	tests := []struct {
		name   string
		update *models.Update
		want   bool
	}{
		{"allowed user", privateMessage(1), true},
		{"other user", privateMessage(2), false},
		{"group chat", &models.Update{Message: &models.Message{
			From: &models.User{ID: 1},
			Chat: models.Chat{ID: -100, Type: models.ChatTypeSupergroup},
		}}, false},
		{"callback", &models.Update{CallbackQuery: &models.CallbackQuery{
			From: models.User{ID: 1},
		}}, true},
		{"no sender", &models.Update{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := Allowlist(allowed)(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
				called = true
				s, ok := GetSender(ctx)
				if !ok || s.UserID != 1 {
					t.Errorf("sender = %+v, %v", s, ok)
				}
			})
			h(context.Background(), nil, tt.update)
			if called != tt.want {
				t.Errorf("called = %v, want %v", called, tt.want)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	var reported any
	h := Recover(func(r any) { reported = r })(func(context.Context, *bot.Bot, *models.Update) {
		panic("illegal transition")
	})

	h(context.Background(), nil, privateMessage(1))

	if reported != "illegal transition" {
		t.Errorf("reported = %v", reported)
	}
}

func TestWindowLimiter(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l := newWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.allow(1) || !l.allow(1) {
		t.Fatal("first two messages should pass")
	}
	if l.allow(1) {
		t.Error("third message in the window should be limited")
	}
	if !l.allow(2) {
		t.Error("other chats have their own window")
	}

	now = now.Add(time.Minute)
	if !l.allow(1) {
		t.Error("new window should reset the count")
	}
}
