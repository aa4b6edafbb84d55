package ingest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lenslab/photocoach/internal/storage"
)

// EnqueueStore is the storage surface needed to schedule an ingest.
type EnqueueStore interface {
	SaveDocument(doc storage.Document) error
	EnqueueJob(job storage.Job) error
}

// Enqueue registers a PDF for ingestion: it records a pending document
// and queues an ingest_pdf job for the worker to pick up.
func Enqueue(store EnqueueStore, title, path, tags string) (storage.Document, error) {
	if title == "" {
		title = filepath.Base(path)
	}

	doc := storage.Document{
		ID:        uuid.New().String(),
		Title:     title,
		Source:    path,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveDocument(doc); err != nil {
		return storage.Document{}, fmt.Errorf("saving document: %w", err)
	}

	payload, err := json.Marshal(Payload{DocumentID: doc.ID, Path: path, Tags: tags})
	if err != nil {
		return storage.Document{}, fmt.Errorf("encoding payload: %w", err)
	}

	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeIngestPDF,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(job); err != nil {
		return storage.Document{}, fmt.Errorf("enqueueing ingest job: %w", err)
	}

	return doc, nil
}
