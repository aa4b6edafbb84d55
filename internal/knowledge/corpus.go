package knowledge

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TextEmbedder produces a fixed-size dense vector for a text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Corpus is an in-memory similarity index over the curated knowledge
// set. Entry vectors are computed once, on first search, and reused for
// the life of the process; the entries themselves are never mutated.
type Corpus struct {
	embedder TextEmbedder
	entries  []Entry

	mu      sync.Mutex
	vectors [][]float32 // index-aligned with entries; nil until built
	norms   []float32
}

// NewCorpus creates a Corpus over the given entries.
func NewCorpus(embedder TextEmbedder, entries []Entry) *Corpus {
	return &Corpus{embedder: embedder, entries: entries}
}

// Entries returns the underlying knowledge set (read-only).
func (c *Corpus) Entries() []Entry {
	return c.entries
}

// Search embeds the query and returns the topK most similar entries by
// cosine similarity, descending. Ties keep knowledge-set order, so a
// fixed corpus and embedder always produce the same ranking.
func (c *Corpus) Search(ctx context.Context, query string, topK int) ([]ScoredEntry, error) {
	if topK <= 0 || query == "" {
		return nil, nil
	}

	if err := c.ensureVectors(ctx); err != nil {
		return nil, err
	}

	queryVec, err := c.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryNorm := norm(queryVec)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &entryScoreHeap{}
	heap.Init(h)
	for i := range c.entries {
		score := cosine(queryVec, c.vectors[i], queryNorm, c.norms[i])
		if h.Len() < topK {
			heap.Push(h, entryScore{index: i, score: score})
		} else if better(score, i, (*h)[0]) {
			(*h)[0] = entryScore{index: i, score: score}
			heap.Fix(h, 0)
		}
	}

	results := make([]ScoredEntry, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		es := heap.Pop(h).(entryScore)
		results[i] = ScoredEntry{Entry: c.entries[es.index], Score: es.score}
	}
	return results, nil
}

// ensureVectors lazily embeds every entry text, bounded to a few
// concurrent calls so the embedding endpoint is not overwhelmed.
func (c *Corpus) ensureVectors(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vectors != nil {
		return nil
	}

	vectors := make([][]float32, len(c.entries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, e := range c.entries {
		i, text := i, e.Text
		g.Go(func() error {
			vec, err := c.embedder.EmbedText(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding entry %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	norms := make([]float32, len(vectors))
	for i, v := range vectors {
		norms[i] = norm(v)
	}

	c.vectors = vectors
	c.norms = norms
	return nil
}

type entryScore struct {
	index int
	score float32
}

// better reports whether (score, index) should displace the heap
// minimum. Lower index wins ties to keep ranking deterministic.
func better(score float32, index int, min entryScore) bool {
	if score != min.score {
		return score > min.score
	}
	return index < min.index
}

// entryScoreHeap is a min-heap ordered by score, then by descending
// index so the tie-broken minimum is evicted first.
type entryScoreHeap []entryScore

func (h entryScoreHeap) Len() int { return len(h) }
func (h entryScoreHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].index > h[j].index
}
func (h entryScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryScoreHeap) Push(x interface{}) { *h = append(*h, x.(entryScore)) }
func (h *entryScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm) with both norms precomputed.
func cosine(a, b []float32, aNorm, bNorm float32) float32 {
	if len(a) != len(b) || aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(aNorm) * float64(bNorm)))
}
