// Package session tracks per-user coaching state: skill level,
// conversation history, and a compacted summary of older turns. State
// is persisted as JSON in the key-value memory store so sessions
// survive restarts.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lenslab/photocoach/internal/storage"
)

// memoryKey is the key under which a user's session JSON is stored.
const memoryKey = "session"

// Skill levels recognized for coaching personalization.
const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
)

// DefaultSkillLevel is assigned to first-time users.
const DefaultSkillLevel = SkillBeginner

// compactThreshold is the history length beyond which older turns are
// folded into the compact summary.
const compactThreshold = 6

// recentWindow is how many trailing turns the compactor reads.
const recentWindow = 6

// maxSummarySentences caps how many response sentences survive
// compaction.
const maxSummarySentences = 3

// Turn is one completed coaching exchange.
type Turn struct {
	Query    string    `json:"query"`
	Response string    `json:"response,omitempty"`
	Issues   []string  `json:"issues,omitempty"`
	At       time.Time `json:"at"`
}

// Session is a user's persistent coaching state.
type Session struct {
	UserID         string `json:"user_id"`
	SkillLevel     string `json:"skill_level"`
	History        []Turn `json:"history,omitempty"`
	CompactSummary string `json:"compact_summary,omitempty"`
}

// ValidSkillLevel reports whether level is one of the recognized
// skill levels.
func ValidSkillLevel(level string) bool {
	switch level {
	case SkillBeginner, SkillIntermediate, SkillAdvanced:
		return true
	}
	return false
}

// Manager loads and persists sessions through the memory store.
type Manager struct {
	store *storage.Store
}

// NewManager creates a session manager over the given store.
func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// Get loads a user's session, creating a fresh one with default skill
// level for first-time users.
func (m *Manager) Get(userID string) (*Session, error) {
	raw, err := m.store.GetMemory(userID, memoryKey)
	if errors.Is(err, storage.ErrNotFound) {
		return &Session{UserID: userID, SkillLevel: DefaultSkillLevel}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session for %s: %w", userID, err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decoding session for %s: %w", userID, err)
	}
	s.UserID = userID
	if s.SkillLevel == "" {
		s.SkillLevel = DefaultSkillLevel
	}
	return &s, nil
}

// Save persists the session.
func (m *Manager) Save(s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session for %s: %w", s.UserID, err)
	}
	if err := m.store.SetMemory(s.UserID, memoryKey, string(raw)); err != nil {
		return fmt.Errorf("persisting session for %s: %w", s.UserID, err)
	}
	return nil
}

// AppendTurn records a completed exchange, compacts the history when it
// grows past the threshold, and persists the session.
func (m *Manager) AppendTurn(s *Session, turn Turn) error {
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}
	s.History = append(s.History, turn)

	if len(s.History) > compactThreshold {
		s.CompactSummary = CompactHistory(s.History, maxSummarySentences)
	}

	return m.Save(s)
}

// Users lists the user IDs with stored sessions.
func (m *Manager) Users() ([]string, error) {
	return m.store.ListMemoryUsers()
}

// CompactHistory folds the most recent turns into a short summary: the
// leading sentences of recent responses plus the progression of user
// questions. Used to keep prompt context bounded in long conversations.
func CompactHistory(history []Turn, maxSentences int) string {
	if len(history) == 0 {
		return ""
	}

	recent := history
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	var parts []string

	var sentences []string
	for _, t := range recent {
		for _, s := range strings.Split(t.Response, ".") {
			s = strings.TrimSpace(s)
			if s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	for _, s := range sentences {
		parts = append(parts, s+".")
	}

	var questions []string
	for _, t := range recent {
		if t.Query != "" {
			questions = append(questions, t.Query)
		}
	}
	if len(questions) > 0 {
		parts = append(parts, "Recent user questions: "+strings.Join(questions, "; "))
	}

	return strings.Join(parts, " ")
}
