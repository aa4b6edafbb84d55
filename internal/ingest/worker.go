// Package ingest turns PDF files into searchable vector index entries.
// Ingestion runs asynchronously through the SQLite job queue so slow
// embedding calls never block the request path.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lenslab/photocoach/internal/storage"
)

// JobTypeIngestPDF is the queue job type this worker claims.
const JobTypeIngestPDF = "ingest_pdf"

// Document statuses written back as jobs progress.
const (
	StatusPending = "pending"
	StatusIndexed = "indexed"
	StatusFailed  = "failed"
)

// JobStore abstracts the job queue and document bookkeeping.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	UpdateDocumentStatus(id, status string, pages, chunks int) error
}

// Indexer embeds text chunks and inserts them into the vector index.
type Indexer interface {
	Index(ctx context.Context, sourceID, sourceType, tags string, ids, texts []string) error
	RemoveSource(sourceID string) error
}

// Payload is the JSON body of an ingest_pdf job.
type Payload struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Tags       string `json:"tags,omitempty"`
}

// Worker processes ingest_pdf jobs from the SQLite job queue.
type Worker struct {
	store        JobStore
	indexer      Indexer
	extract      func(path string) (string, int, error)
	poll         time.Duration
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, indexer Indexer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:        store,
		indexer:      indexer,
		extract:      ExtractPDF,
		poll:         pollInterval,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		logger:       slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single ingest_pdf job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeIngestPDF})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("ingest job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	text, pages, err := w.extract(payload.Path)
	if err != nil {
		w.markFailed(doc.ID)
		return err
	}

	chunks := ChunkText(text, w.chunkSize, w.chunkOverlap)
	if len(chunks) == 0 {
		w.markFailed(doc.ID)
		return fmt.Errorf("document %s produced no text", doc.ID)
	}

	ids := make([]string, len(chunks))
	for i := range ids {
		ids[i] = uuid.New().String()
	}

	// A retried job may have indexed some or all chunks on a previous
	// attempt. Chunk IDs are minted fresh each time, so clear the
	// source first or the retry would duplicate every row.
	if err := w.indexer.RemoveSource(doc.ID); err != nil {
		w.markFailed(doc.ID)
		return fmt.Errorf("clearing stale chunks for %s: %w", doc.ID, err)
	}

	if err := w.indexer.Index(ctx, doc.ID, "pdf", payload.Tags, ids, chunks); err != nil {
		w.markFailed(doc.ID)
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}

	if err := w.store.UpdateDocumentStatus(doc.ID, StatusIndexed, pages, len(chunks)); err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	w.logger.Info("document indexed", "document_id", doc.ID, "pages", pages, "chunks", len(chunks))
	return nil
}

// markFailed records a terminal document failure; job-level retry
// bookkeeping is handled by the queue.
func (w *Worker) markFailed(docID string) {
	if err := w.store.UpdateDocumentStatus(docID, StatusFailed, 0, 0); err != nil {
		w.logger.Error("failed to mark document as failed", "document_id", docID, "error", err)
	}
}
