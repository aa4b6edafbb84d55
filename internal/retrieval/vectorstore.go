package retrieval

import (
	"context"
	"time"
)

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force
// cosine similarity, which is fine for the corpus sizes a coaching
// knowledge base reaches. An ANN-backed implementation can replace it
// behind the same interface; use ExportAll on the old store and Insert
// on the new one to migrate.
type VectorStore interface {
	// Insert adds records to the given table.
	Insert(table string, records []Record) error

	// Search performs vector similarity search, returning the top-K most similar records.
	Search(table string, vector []float32, topK int) ([]ScoredRecord, error)

	// GetByIDs returns records matching the given IDs from the given table.
	GetByIDs(ctx context.Context, table string, ids []string) ([]Record, error)

	// Delete removes a record by ID from the given table.
	Delete(table string, id string) error

	// DeleteBySource removes all records from the given source document.
	DeleteBySource(table string, sourceID string) error

	// ExportAll returns all records from the given table.
	ExportAll(table string) ([]Record, error)

	// Count returns the number of records in the given table.
	Count(table string) (int, error)
}

// Record represents a row in the vector store.
type Record struct {
	ID         string
	SourceID   string
	SourceType string
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time
	Tags       string // JSON array stored as text
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
