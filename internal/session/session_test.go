package session

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lenslab/photocoach/internal/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewManager(store)
}

func TestGet_NewUserGetsDefaults(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.UserID != "alice" {
		t.Errorf("expected user ID alice, got %q", s.UserID)
	}
	if s.SkillLevel != SkillBeginner {
		t.Errorf("expected default skill level, got %q", s.SkillLevel)
	}
	if len(s.History) != 0 {
		t.Errorf("expected empty history, got %d turns", len(s.History))
	}
}

func TestSaveAndGet_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	s := &Session{UserID: "bob", SkillLevel: SkillAdvanced}
	s.History = append(s.History, Turn{Query: "how do I shoot at night?", Issues: []string{"high_iso"}})
	if err := m.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := m.Get("bob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.SkillLevel != SkillAdvanced {
		t.Errorf("expected advanced skill level, got %q", loaded.SkillLevel)
	}
	if len(loaded.History) != 1 || loaded.History[0].Query != "how do I shoot at night?" {
		t.Errorf("history not preserved: %+v", loaded.History)
	}
}

func TestSessions_ScopedPerUser(t *testing.T) {
	m := newTestManager(t)

	if err := m.Save(&Session{UserID: "alice", SkillLevel: SkillIntermediate}); err != nil {
		t.Fatalf("Save alice: %v", err)
	}
	if err := m.Save(&Session{UserID: "bob", SkillLevel: SkillAdvanced}); err != nil {
		t.Fatalf("Save bob: %v", err)
	}

	alice, err := m.Get("alice")
	if err != nil {
		t.Fatalf("Get alice: %v", err)
	}
	if alice.SkillLevel != SkillIntermediate {
		t.Errorf("alice skill level leaked: %q", alice.SkillLevel)
	}

	users, err := m.Users()
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %v", users)
	}
}

func TestAppendTurn_CompactsAfterThreshold(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Get("carol")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	for i := 0; i < compactThreshold; i++ {
		err := m.AppendTurn(s, Turn{
			Query:    fmt.Sprintf("question %d", i),
			Response: fmt.Sprintf("Answer %d. Extra detail here.", i),
		})
		if err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}
	if s.CompactSummary != "" {
		t.Fatalf("summary should not exist at exactly %d turns", compactThreshold)
	}

	if err := m.AppendTurn(s, Turn{Query: "one more", Response: "Final answer."}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if s.CompactSummary == "" {
		t.Fatal("expected compact summary after exceeding threshold")
	}
	if !strings.Contains(s.CompactSummary, "Recent user questions:") {
		t.Errorf("summary missing question progression: %q", s.CompactSummary)
	}

	// Compacted state persists.
	loaded, err := m.Get("carol")
	if err != nil {
		t.Fatalf("Get after compaction: %v", err)
	}
	if loaded.CompactSummary != s.CompactSummary {
		t.Error("compact summary not persisted")
	}
}

func TestCompactHistory(t *testing.T) {
	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history, Turn{
			Query:    fmt.Sprintf("q%d", i),
			Response: fmt.Sprintf("First point %d. Second point %d. Third point %d.", i, i, i),
		})
	}

	summary := CompactHistory(history, 3)

	// Only the trailing window contributes, and sentences are capped.
	if strings.Contains(summary, "q0") {
		t.Errorf("old turns should not appear in summary: %q", summary)
	}
	if !strings.Contains(summary, "q9") {
		t.Errorf("recent turns should appear in summary: %q", summary)
	}
	if !strings.Contains(summary, "First point 4.") {
		t.Errorf("expected leading sentences of recent responses: %q", summary)
	}
	if strings.Contains(summary, "First point 7") {
		t.Errorf("sentence cap not applied: %q", summary)
	}
}

func TestCompactHistory_Empty(t *testing.T) {
	if got := CompactHistory(nil, 3); got != "" {
		t.Errorf("expected empty summary, got %q", got)
	}
}

func TestValidSkillLevel(t *testing.T) {
	for _, level := range []string{SkillBeginner, SkillIntermediate, SkillAdvanced} {
		if !ValidSkillLevel(level) {
			t.Errorf("%q should be valid", level)
		}
	}
	if ValidSkillLevel("expert") {
		t.Error("unknown level should be invalid")
	}
}
