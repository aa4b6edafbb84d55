package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TextEmbedder is the minimal client surface the embedder needs.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// embedConcurrency bounds parallel embedding requests in a batch.
const embedConcurrency = 4

// APIEmbedder generates embeddings through a hosted embedding endpoint.
type APIEmbedder struct {
	client TextEmbedder
}

// NewAPIEmbedder creates an embedder backed by the given client.
func NewAPIEmbedder(client TextEmbedder) *APIEmbedder {
	return &APIEmbedder{client: client}
}

// Embed generates an embedding for a single text.
func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts concurrently,
// preserving input order.
func (e *APIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.client.EmbedText(gctx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
