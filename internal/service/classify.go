package service

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/set-night/receiptbot/internal/domain"
)

type LedgerErrorKind string

const (
	LedgerErrorConnectivity   LedgerErrorKind = "connectivity"
	LedgerErrorAuthentication LedgerErrorKind = "authentication"
	LedgerErrorAccount        LedgerErrorKind = "account"
	LedgerErrorGeneric        LedgerErrorKind = "generic"
)

// ClassifyLedgerError maps a ledger failure to a user-facing category. It is
// a best-effort heuristic over the error chain and message text.
func ClassifyLedgerError(err error) LedgerErrorKind {
	if err == nil {
		return LedgerErrorGeneric
	}
	if errors.Is(err, domain.ErrNoDefaultAccount) {
		return LedgerErrorAccount
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return LedgerErrorConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return LedgerErrorConnectivity
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection refused", "no such host", "timeout", "connection reset",
		"dial tcp", "(502)", "(503)", "(504)", "bad gateway", "service unavailable"):
		return LedgerErrorConnectivity
	case containsAny(msg, "(401)", "(403)", "unauthenticated", "unauthorized", "forbidden", "invalid token"):
		return LedgerErrorAuthentication
	case containsAny(msg, "account", "source_id", "source_name"):
		return LedgerErrorAccount
	default:
		return LedgerErrorGeneric
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
