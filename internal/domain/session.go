package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusIdle                 Status = "idle"
	StatusAwaitingInput        Status = "awaiting_input"
	StatusAwaitingFinalization Status = "awaiting_finalization"
	StatusProcessing           Status = "processing"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
)

// AcceptsMaterial reports whether photos and text are appended in this status.
func (s Status) AcceptsMaterial() bool {
	return s == StatusIdle || s == StatusAwaitingInput
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageEntry is one line of the conversation log handed to the extractor.
// ImageIndex is meaningful only when HasImage is set.
type MessageEntry struct {
	Role       Role
	Content    string
	HasImage   bool
	ImageIndex int
	Timestamp  time.Time
}

// Session is the per-user intake state. It is owned by the session store and
// must only be mutated while holding that user's lock.
type Session struct {
	ID                 string
	UserID             string
	Status             Status
	Messages           []MessageEntry
	Images             [][]byte
	Transactions       []Transaction
	ProcessingAttempts int
	LastError          string
	LastUpdated        time.Time
}

func (s *Session) Touch(now time.Time) {
	s.LastUpdated = now
}

func (s *Session) AppendMessage(entry MessageEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.Messages = append(s.Messages, entry)
	s.Touch(entry.Timestamp)
}

// AppendImage takes ownership of img and returns its stable index.
func (s *Session) AppendImage(img []byte) int {
	s.Images = append(s.Images, img)
	s.Touch(time.Now())
	return len(s.Images) - 1
}

// HasMaterial reports whether there is at least one image or one non-empty
// user-authored text entry.
func (s *Session) HasMaterial() bool {
	if len(s.Images) > 0 {
		return true
	}
	for _, m := range s.Messages {
		if m.Role == RoleUser && !m.HasImage && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to read without the user's lock.
func (s *Session) Clone() Session {
	c := *s
	c.Messages = append([]MessageEntry(nil), s.Messages...)
	c.Images = make([][]byte, len(s.Images))
	for i, img := range s.Images {
		c.Images[i] = append([]byte(nil), img...)
	}
	c.Transactions = make([]Transaction, len(s.Transactions))
	for i, tx := range s.Transactions {
		c.Transactions[i] = tx.Clone()
	}
	return c
}
