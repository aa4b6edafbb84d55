package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) < 2 {
		t.Fatalf("got %d applied migrations, want at least 2", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("versions not ascending: %v", versions)
		}
	}
}

func TestMemorySetGet(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetMemory("u1", "session", `{"skill_level":"beginner"}`); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}

	got, err := s.GetMemory("u1", "session")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got != `{"skill_level":"beginner"}` {
		t.Errorf("value = %q", got)
	}
}

func TestMemoryOverwrite(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetMemory("u1", "k", `"a"`); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}
	if err := s.SetMemory("u1", "k", `"b"`); err != nil {
		t.Fatalf("SetMemory overwrite: %v", err)
	}

	got, err := s.GetMemory("u1", "k")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got != `"b"` {
		t.Errorf("value = %q, want %q", got, `"b"`)
	}
}

func TestMemoryNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetMemory("nobody", "nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryKeysAreScopedPerUser(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetMemory("u1", "session", `1`); err != nil {
		t.Fatalf("SetMemory u1: %v", err)
	}
	if err := s.SetMemory("u2", "session", `2`); err != nil {
		t.Fatalf("SetMemory u2: %v", err)
	}

	v1, err := s.GetMemory("u1", "session")
	if err != nil {
		t.Fatalf("GetMemory u1: %v", err)
	}
	v2, err := s.GetMemory("u2", "session")
	if err != nil {
		t.Fatalf("GetMemory u2: %v", err)
	}
	if v1 == v2 {
		t.Errorf("values collided across users: %q", v1)
	}

	users, err := s.ListMemoryUsers()
	if err != nil {
		t.Fatalf("ListMemoryUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2", len(users))
	}
}

func TestSaveDocument_DefaultsCreatedAt(t *testing.T) {
	s := openTestStore(t)

	doc := Document{
		ID:     "doc1",
		Title:  "Natural Light",
		Source: "light.pdf",
	}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("doc1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at was not defaulted")
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("created_at = %v, want recent", got.CreatedAt)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := openTestStore(t)

	doc := Document{
		ID:        "doc1",
		Title:     "Understanding Exposure",
		Source:    "exposure.pdf",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("doc1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Status != "pending" {
		t.Errorf("status = %q, want pending", got.Status)
	}

	if err := s.UpdateDocumentStatus("doc1", "indexed", 12, 48); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}
	got, err = s.GetDocument("doc1")
	if err != nil {
		t.Fatalf("GetDocument after update: %v", err)
	}
	if got.Status != "indexed" || got.Pages != 12 || got.Chunks != 48 {
		t.Errorf("after update: %+v", got)
	}

	docs, err := s.ListDocuments(10, 0)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	if err := s.DeleteDocument("doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument("doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestJobQueueClaimComplete(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "ingest_pdf", PayloadJSON: `{"document_id":"d1"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"ingest_pdf"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("ClaimNextJob returned nil, want job")
	}
	if job.Status != "running" {
		t.Errorf("status = %q, want running", job.Status)
	}

	// A second claim must find nothing while j1 is running.
	second, err := s.ClaimNextJob([]string{"ingest_pdf"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if second != nil {
		t.Errorf("claimed running job twice: %+v", second)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestJobQueueFailRetriesThenFails(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "ingest_pdf", PayloadJSON: `{}`, MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	// First failure: retried with backoff, stays pending.
	if err := s.FailJob("j1", "boom"); err != nil {
		t.Fatalf("FailJob 1: %v", err)
	}
	var status string
	if err := s.db.QueryRow("SELECT status FROM jobs WHERE id = 'j1'").Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != "pending" {
		t.Errorf("status after first failure = %q, want pending", status)
	}

	// The retried job is scheduled in the future, so it is not claimable now.
	job, err := s.ClaimNextJob([]string{"ingest_pdf"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed backed-off job immediately: %+v", job)
	}

	// Second failure exhausts max_attempts.
	if err := s.FailJob("j1", "boom again"); err != nil {
		t.Fatalf("FailJob 2: %v", err)
	}
	if err := s.db.QueryRow("SELECT status FROM jobs WHERE id = 'j1'").Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != "failed" {
		t.Errorf("status after exhausting attempts = %q, want failed", status)
	}
}

func TestClaimNextJobNoTypes(t *testing.T) {
	s := openTestStore(t)

	job, err := s.ClaimNextJob(nil)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("got job %+v, want nil", job)
	}
}
