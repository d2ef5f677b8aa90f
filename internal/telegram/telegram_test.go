package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"
)

func TestSplitMessage(t *testing.T) {
	short := "hello"
	if parts := SplitMessage(short, 10); len(parts) != 1 || parts[0] != short {
		t.Errorf("short text split: %v", parts)
	}

	text := strings.Repeat("абвгд\n", 10)
	parts := SplitMessage(text, 20)
	if strings.Join(parts, "") != text {
		t.Fatal("parts do not reassemble the text")
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > 20 {
			t.Errorf("part %d has %d runes", i, n)
		}
		if i < len(parts)-1 && !strings.HasSuffix(p, "\n") {
			t.Errorf("part %d not split at a newline: %q", i, p)
		}
	}
}

func TestLargestPhoto(t *testing.T) {
	if _, ok := LargestPhoto(nil); ok {
		t.Error("expected no photo")
	}
	best, ok := LargestPhoto([]models.PhotoSize{
		{FileID: "s", Width: 90, Height: 60},
		{FileID: "l", Width: 1280, Height: 853},
		{FileID: "m", Width: 320, Height: 213},
	})
	if !ok || best.FileID != "l" {
		t.Errorf("best = %+v", best)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := EscapeMarkdown("a_b*c`d[e")
	if got != `a\_b\*c'd\[e` {
		t.Errorf("EscapeMarkdown = %q", got)
	}
}
