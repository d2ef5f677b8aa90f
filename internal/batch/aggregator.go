// Package batch collapses Telegram media groups, which arrive as independent
// updates sharing a media group id, into a single append to a session.
package batch

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// FlushFunc receives a settled batch. It is called with the owner's lock held.
// caption joins the non-empty captions of the batch in arrival order.
type FlushFunc func(userID string, images [][]byte, caption string)

// Locker serializes work per user id.
type Locker interface {
	Lock(key string) (unlock func())
}

type pendingBatch struct {
	correlationID string
	owner         string
	images        [][]byte
	captions      []string
	timer         *time.Timer
	seq           uint64
}

// Aggregator buffers images per correlation id and flushes them once no new
// image has arrived for the debounce window.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	batches  map[string]*pendingBatch
	locker   Locker
	flush    FlushFunc
}

func NewAggregator(debounce time.Duration, locker Locker, flush FlushFunc) *Aggregator {
	return &Aggregator{
		debounce: debounce,
		batches:  make(map[string]*pendingBatch),
		locker:   locker,
		flush:    flush,
	}
}

// Add appends image to the batch for correlationID and restarts its settle
// timer, creating the batch on first arrival.
func (a *Aggregator) Add(userID, correlationID string, image []byte, caption string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[correlationID]
	if !ok {
		b = &pendingBatch{correlationID: correlationID, owner: userID}
		a.batches[correlationID] = b
		slog.Debug("media group started", "user_id", userID, "media_group_id", correlationID)
	} else {
		b.timer.Stop()
	}

	b.images = append(b.images, image)
	if caption = strings.TrimSpace(caption); caption != "" {
		b.captions = append(b.captions, caption)
	}
	b.seq++
	seq := b.seq
	b.timer = time.AfterFunc(a.debounce, func() {
		a.expire(correlationID, seq)
	})
}

// CancelForUser discards every pending batch owned by userID without
// flushing it. Callers hold the user's lock.
func (a *Aggregator) CancelForUser(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cancelled := false
	for id, b := range a.batches {
		if b.owner != userID {
			continue
		}
		b.timer.Stop()
		delete(a.batches, id)
		cancelled = true
		slog.Debug("media group cancelled", "user_id", userID, "media_group_id", id, "images", len(b.images))
	}
	return cancelled
}

// Pending returns how many images are buffered for userID.
func (a *Aggregator) Pending(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, b := range a.batches {
		if b.owner == userID {
			n += len(b.images)
		}
	}
	return n
}

// Stop drops all pending batches.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, b := range a.batches {
		b.timer.Stop()
		delete(a.batches, id)
	}
}

func (a *Aggregator) expire(correlationID string, seq uint64) {
	a.mu.Lock()
	b, ok := a.batches[correlationID]
	if !ok || b.seq != seq {
		a.mu.Unlock()
		return
	}
	owner := b.owner
	a.mu.Unlock()

	unlock := a.locker.Lock(owner)
	defer unlock()

	// Re-check under the user's lock: a cancel or a late arrival may have
	// happened while we were waiting.
	a.mu.Lock()
	b, ok = a.batches[correlationID]
	if !ok || b.seq != seq {
		a.mu.Unlock()
		return
	}
	delete(a.batches, correlationID)
	a.mu.Unlock()

	slog.Debug("media group settled", "user_id", owner, "media_group_id", correlationID, "images", len(b.images))
	a.flush(owner, b.images, strings.Join(b.captions, "\n"))
}
