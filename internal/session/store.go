package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/receiptbot/internal/domain"
)

// Store holds one Session per user id. Implementations guard the map only;
// callers serialize work on a single session with a KeyedMutex.
type Store interface {
	GetOrCreate(userID string) *domain.Session
	Get(userID string) (*domain.Session, bool)
	Reset(userID string, preserveImages bool) *domain.Session
	EvictStale(maxAge time.Duration) int
	Len() int
}

// MemoryStore is an in-process Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(userID string) *domain.Session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess = s.fresh(userID)
	s.sessions[userID] = sess
	return sess
}

func (s *MemoryStore) Get(userID string) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Reset replaces the user's session with a fresh Idle one under a new
// identity. With preserveImages the new session gets a copy of the image list.
func (s *MemoryStore) Reset(userID string, preserveImages bool) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.fresh(userID)
	if old, ok := s.sessions[userID]; ok && preserveImages && len(old.Images) > 0 {
		next.Images = make([][]byte, len(old.Images))
		copy(next.Images, old.Images)
	}
	s.sessions[userID] = next
	return next
}

func (s *MemoryStore) EvictStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for userID, sess := range s.sessions {
		if sess.LastUpdated.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) fresh(userID string) *domain.Session {
	return &domain.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      domain.StatusIdle,
		LastUpdated: s.now(),
	}
}

var _ Store = (*MemoryStore)(nil)
