package config

import (
	"log/slog"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("FIREFLY_URL", "http://firefly.local")
	t.Setenv("FIREFLY_TOKEN", "token")
	t.Setenv("OPENROUTER_API_KEY", "key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BatchDebounce() != 500*time.Millisecond {
		t.Errorf("BatchDebounce() = %v, want 500ms", cfg.BatchDebounce())
	}
	if cfg.SessionMaxAge() != 24*time.Hour {
		t.Errorf("SessionMaxAge() = %v, want 24h", cfg.SessionMaxAge())
	}
	if cfg.MaxProcessingAttempts != 3 {
		t.Errorf("MaxProcessingAttempts = %d, want 3", cfg.MaxProcessingAttempts)
	}
	if cfg.AllowEmptyFinalize {
		t.Error("AllowEmptyFinalize should default to false")
	}
	if cfg.ExtractorProvider != ProviderOpenRouter {
		t.Errorf("ExtractorProvider = %q, want %q", cfg.ExtractorProvider, ProviderOpenRouter)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "unknown provider", env: map[string]string{"EXTRACTOR_PROVIDER": "mystery"}, wantErr: true},
		{name: "gemini without key", env: map[string]string{"EXTRACTOR_PROVIDER": "gemini"}, wantErr: true},
		{name: "gemini with key", env: map[string]string{"EXTRACTOR_PROVIDER": "gemini", "GEMINI_API_KEY": "g"}, wantErr: false},
		{name: "zero debounce", env: map[string]string{"BATCH_DEBOUNCE_MS": "0"}, wantErr: true},
		{name: "zero attempts", env: map[string]string{"MAX_PROCESSING_ATTEMPTS": "0"}, wantErr: true},
		{name: "negative min tags", env: map[string]string{"MIN_TAGS": "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsAllowed(t *testing.T) {
	open := &Config{}
	if !open.IsAllowed(42) {
		t.Error("empty allowlist should admit everyone")
	}

	closed := &Config{AllowedUserIDs: []int64{1, 2}}
	if !closed.IsAllowed(2) {
		t.Error("listed user should be allowed")
	}
	if closed.IsAllowed(3) {
		t.Error("unlisted user should be rejected")
	}
	if got := closed.AllowedUserIDsString(); got != "1,2" {
		t.Errorf("AllowedUserIDsString() = %q, want %q", got, "1,2")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		c := &Config{LogLevel: in}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
