package service

import (
	"fmt"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
)

// transitions lists the legal in-place status changes. Returning to Idle is
// never an in-place change: it always replaces the session via Store.Reset.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusIdle:                 {domain.StatusAwaitingInput},
	domain.StatusAwaitingInput:        {domain.StatusAwaitingInput, domain.StatusAwaitingFinalization},
	domain.StatusAwaitingFinalization: {domain.StatusProcessing, domain.StatusAwaitingInput},
	domain.StatusProcessing:           {domain.StatusAwaitingConfirmation, domain.StatusAwaitingInput},
	domain.StatusAwaitingConfirmation: {domain.StatusAwaitingInput},
}

func canTransition(from, to domain.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition panics on an illegal edge: callers check preconditions first,
// so reaching one is a bug.
func transition(s *domain.Session, to domain.Status, now time.Time) {
	if !canTransition(s.Status, to) {
		panic(fmt.Sprintf("illegal session transition %s -> %s (user %s)", s.Status, to, s.UserID))
	}
	s.Status = to
	s.Touch(now)
}
