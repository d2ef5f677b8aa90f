package config

import "time"

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	// Extraction call ceiling
	ExtractionTimeout = 5 * time.Minute

	// Ledger HTTP timeout
	LedgerTimeout = 30 * time.Second

	// Categories, tags and budgets change rarely
	LedgerCacheTTL = 5 * time.Minute

	// Idle session eviction
	SessionEvictInterval = 10 * time.Minute

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Rate limits (per minute)
	RateLimitPerMinute = 30

	// Ledger pagination
	LedgerPageLimit = 100
	LedgerMaxPages  = 20
)

// FinalizeKeywords are plain-text messages treated as the finalize signal.
var FinalizeKeywords = []string{"next", "done", "далее", "готово"}
