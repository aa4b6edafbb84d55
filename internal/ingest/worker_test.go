package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lenslab/photocoach/internal/storage"
)

type fakeIndexer struct {
	sourceID string
	texts    []string
	err      error
	calls    int
	removed  []string
	rows     map[string][]string
}

func (f *fakeIndexer) Index(_ context.Context, sourceID, _, _ string, _, texts []string) error {
	f.calls++
	f.sourceID = sourceID
	f.texts = texts
	if f.err == nil {
		if f.rows == nil {
			f.rows = make(map[string][]string)
		}
		f.rows[sourceID] = append(f.rows[sourceID], texts...)
	}
	return f.err
}

func (f *fakeIndexer) RemoveSource(sourceID string) error {
	f.removed = append(f.removed, sourceID)
	delete(f.rows, sourceID)
	return nil
}

func newTestWorker(t *testing.T, indexer Indexer) (*Worker, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewWorker(store, indexer, 0), store
}

func TestRunOnce_NoJobs(t *testing.T) {
	w, _ := newTestWorker(t, &fakeIndexer{})

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("expected no job to be processed")
	}
}

func TestRunOnce_ProcessesIngestJob(t *testing.T) {
	indexer := &fakeIndexer{}
	w, store := newTestWorker(t, indexer)
	w.extract = func(path string) (string, int, error) {
		return strings.Repeat("photography fundamentals. ", 100), 4, nil
	}

	doc, err := Enqueue(store, "Field Guide", "/photos/guide.pdf", `["exposure"]`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if indexer.calls != 1 {
		t.Fatalf("expected 1 index call, got %d", indexer.calls)
	}
	if indexer.sourceID != doc.ID {
		t.Errorf("indexed wrong source: %q", indexer.sourceID)
	}
	if len(indexer.texts) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(indexer.texts))
	}

	updated, err := store.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if updated.Status != StatusIndexed {
		t.Errorf("expected status %q, got %q", StatusIndexed, updated.Status)
	}
	if updated.Pages != 4 {
		t.Errorf("expected 4 pages, got %d", updated.Pages)
	}
	if updated.Chunks != len(indexer.texts) {
		t.Errorf("chunk count mismatch: %d != %d", updated.Chunks, len(indexer.texts))
	}
}

func TestRunOnce_ExtractFailureMarksDocumentFailed(t *testing.T) {
	w, store := newTestWorker(t, &fakeIndexer{})
	w.extract = func(path string) (string, int, error) {
		return "", 0, errors.New("corrupted pdf")
	}

	doc, err := Enqueue(store, "Broken", "/photos/broken.pdf", "")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected job to be claimed")
	}

	updated, err := store.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if updated.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, updated.Status)
	}
}

func TestRunOnce_IndexerFailure(t *testing.T) {
	indexer := &fakeIndexer{err: errors.New("embedder offline")}
	w, store := newTestWorker(t, indexer)
	w.extract = func(path string) (string, int, error) {
		return "some text", 1, nil
	}

	doc, err := Enqueue(store, "Guide", "/photos/guide.pdf", "")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	updated, err := store.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if updated.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, updated.Status)
	}
}

func TestRunOnce_EmptyDocument(t *testing.T) {
	indexer := &fakeIndexer{}
	w, store := newTestWorker(t, indexer)
	w.extract = func(path string) (string, int, error) {
		return "   ", 1, nil
	}

	if _, err := Enqueue(store, "Empty", "/photos/empty.pdf", ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if indexer.calls != 0 {
		t.Errorf("empty document should not be indexed, got %d calls", indexer.calls)
	}
}

func TestProcessJob_RetryReplacesChunks(t *testing.T) {
	indexer := &fakeIndexer{}
	w, store := newTestWorker(t, indexer)
	w.extract = func(path string) (string, int, error) {
		return strings.Repeat("lens fundamentals. ", 100), 3, nil
	}

	doc, err := Enqueue(store, "Lens Guide", "/photos/lens.pdf", "")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNextJob([]string{JobTypeIngestPDF})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob: job=%v err=%v", job, err)
	}

	// A job can be retried after its chunks were already indexed, when
	// a later step failed. The second attempt must replace the rows,
	// not add a second copy of each chunk under fresh IDs.
	if err := w.processJob(context.Background(), job); err != nil {
		t.Fatalf("processJob: %v", err)
	}
	first := len(indexer.rows[doc.ID])
	if first == 0 {
		t.Fatal("expected chunks indexed on first attempt")
	}

	if err := w.processJob(context.Background(), job); err != nil {
		t.Fatalf("processJob retry: %v", err)
	}
	if got := len(indexer.rows[doc.ID]); got != first {
		t.Errorf("retry changed chunk count: %d != %d", got, first)
	}
	if len(indexer.removed) != 2 {
		t.Errorf("expected stale chunks cleared each attempt, got %d removals", len(indexer.removed))
	}
}

func TestEnqueue_StampsCreatedAt(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	doc, err := Enqueue(store, "Guide", "/photos/guide.pdf", "")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("returned document has zero created_at")
	}

	stored, err := store.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("stored document has zero created_at")
	}
}

func TestEnqueue_DefaultsTitleToFilename(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	doc, err := Enqueue(store, "", "/some/dir/manual.pdf", "")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if doc.Title != "manual.pdf" {
		t.Errorf("expected filename title, got %q", doc.Title)
	}
	if doc.Status != StatusPending {
		t.Errorf("expected pending status, got %q", doc.Status)
	}
}

func TestChunkText(t *testing.T) {
	t.Run("short text single chunk", func(t *testing.T) {
		chunks := ChunkText("a short passage", 100, 20)
		if len(chunks) != 1 || chunks[0] != "a short passage" {
			t.Errorf("unexpected chunks: %v", chunks)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if chunks := ChunkText("   ", 100, 20); chunks != nil {
			t.Errorf("expected nil, got %v", chunks)
		}
	})

	t.Run("long text overlaps", func(t *testing.T) {
		text := strings.Repeat("word ", 200)
		chunks := ChunkText(text, 100, 20)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len([]rune(c)) > 100 {
				t.Errorf("chunk %d exceeds size: %d runes", i, len([]rune(c)))
			}
		}
		// Adjacent chunks share overlapping text.
		if !strings.Contains(text, chunks[1][:10]) {
			t.Errorf("chunk 1 not from source text")
		}
	})

	t.Run("breaks on word boundaries", func(t *testing.T) {
		text := strings.Repeat("boundary ", 50)
		for _, c := range ChunkText(text, 80, 10) {
			if strings.HasSuffix(c, "bound") {
				t.Errorf("chunk split mid-word: %q", c)
			}
		}
	})
}
