package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Evictor periodically drops sessions idle for longer than maxAge.
type Evictor struct {
	store    Store
	maxAge   time.Duration
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

func NewEvictor(store Store, maxAge, interval time.Duration) *Evictor {
	return &Evictor{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
	}
}

func (e *Evictor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}

	evictCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.run(evictCtx)
}

// Stop cancels the loop and waits for it to exit.
func (e *Evictor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.running = false
	e.mu.Unlock()

	cancel()
	<-done
}

func (e *Evictor) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunOnce()
		}
	}
}

func (e *Evictor) RunOnce() int {
	removed := e.store.EvictStale(e.maxAge)
	if removed > 0 {
		slog.Info("evicted stale sessions", "removed", removed, "remaining", e.store.Len())
	}
	return removed
}
