package retrieval

import (
	"context"
	"fmt"
)

// Chunk is a retrieved fragment of an ingested document, scored against
// the query.
type Chunk struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Tags     string  `json:"tags,omitempty"`
	Score    float32 `json:"score"`
}

// Retriever embeds a query and searches the document vector index.
type Retriever struct {
	embedder Embedder
	store    VectorStore
}

// NewRetriever wires an embedder and a vector store into a query-time
// retriever.
func NewRetriever(embedder Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve returns the topK document chunks most similar to the query.
// An empty index yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := r.store.Search(expectedTable, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	chunks := make([]Chunk, 0, len(scored))
	for _, s := range scored {
		chunks = append(chunks, Chunk{
			ID:       s.ID,
			SourceID: s.SourceID,
			Text:     s.TextChunk,
			Tags:     s.Tags,
			Score:    s.Score,
		})
	}
	return chunks, nil
}

// Index embeds text chunks and inserts them into the vector index tagged
// with their source document.
func (r *Retriever) Index(ctx context.Context, sourceID, sourceType, tags string, ids, texts []string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("ids/texts length mismatch: %d != %d", len(ids), len(texts))
	}
	if len(texts) == 0 {
		return nil
	}

	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	records := make([]Record, len(texts))
	for i := range texts {
		records[i] = Record{
			ID:         ids[i],
			SourceID:   sourceID,
			SourceType: sourceType,
			TextChunk:  texts[i],
			Embedding:  vecs[i],
			Tags:       tags,
		}
	}
	return r.store.Insert(expectedTable, records)
}

// RemoveSource drops every indexed chunk belonging to a source document.
func (r *Retriever) RemoveSource(sourceID string) error {
	return r.store.DeleteBySource(expectedTable, sourceID)
}
