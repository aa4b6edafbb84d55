// Package grounding attaches citations from the curated knowledge set
// (and, when available, the ingested document index) to generated
// coaching advice.
package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lenslab/photocoach/internal/knowledge"
	"github.com/lenslab/photocoach/internal/retrieval"
)

// CorpusSearcher searches the curated knowledge set.
type CorpusSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredEntry, error)
}

// ChunkRetriever searches the ingested document index. Optional; a nil
// retriever disables the document cascade.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error)
}

// Citation is one supporting resource attached to a response.
type Citation struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

const (
	// DefaultMaxCitations caps the supporting resources per response.
	DefaultMaxCitations = 2

	// docCascadeThreshold is the curated-score floor below which a
	// topic also consults the document index.
	docCascadeThreshold = 0.35

	// excerptLimit truncates long citation texts, in runes.
	excerptLimit = 200
)

// Grounder augments generated responses with citations that match the
// topics the response actually discusses.
type Grounder struct {
	corpus       CorpusSearcher
	docs         ChunkRetriever
	maxCitations int
	docCutoff    float32
	logger       *slog.Logger
}

// Option configures a Grounder.
type Option func(*Grounder)

// WithDocuments enables the document-index cascade.
func WithDocuments(docs ChunkRetriever) Option {
	return func(g *Grounder) { g.docs = docs }
}

// WithDocumentCutoff overrides the curated-score floor for the
// document cascade.
func WithDocumentCutoff(f float32) Option {
	return func(g *Grounder) {
		if f > 0 {
			g.docCutoff = f
		}
	}
}

// WithMaxCitations overrides the citation cap.
func WithMaxCitations(n int) Option {
	return func(g *Grounder) {
		if n > 0 {
			g.maxCitations = n
		}
	}
}

// New creates a Grounder over the curated corpus.
func New(corpus CorpusSearcher, logger *slog.Logger, opts ...Option) *Grounder {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Grounder{
		corpus:       corpus,
		maxCitations: DefaultMaxCitations,
		docCutoff:    docCascadeThreshold,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ground extracts topics from the generated response, retrieves the best
// citation per topic (deduplicated by source, capped at maxCitations),
// and appends a Supporting Resources block. If no topic yields a
// citation it falls back to searching with the user's original query.
// A response that finds no evidence at all is returned unchanged.
func (g *Grounder) Ground(ctx context.Context, response, userQuery string) (string, []Citation, error) {
	topics := knowledge.ExtractTopics(response)
	g.logger.Debug("extracted topics from response", "topics", topics)

	var evidence []Citation
	seenSources := make(map[string]bool)

	for _, topic := range topics {
		if len(evidence) >= g.maxCitations {
			break
		}
		cites, err := g.citationsFor(ctx, topic)
		if err != nil {
			return "", nil, fmt.Errorf("retrieving citations for topic %q: %w", topic, err)
		}
		for _, c := range cites {
			if len(evidence) >= g.maxCitations {
				break
			}
			if seenSources[c.Source] {
				continue
			}
			evidence = append(evidence, c)
			seenSources[c.Source] = true
		}
	}

	if len(evidence) == 0 && userQuery != "" {
		g.logger.Debug("no topic citations found, falling back to user query")
		results, err := g.corpus.Search(ctx, userQuery, g.maxCitations)
		if err != nil {
			return "", nil, fmt.Errorf("fallback citation search: %w", err)
		}
		for _, r := range results {
			if seenSources[r.Source] {
				continue
			}
			evidence = append(evidence, Citation{Text: r.Text, Source: r.Source, Score: r.Score})
			seenSources[r.Source] = true
		}
	}

	if len(evidence) == 0 {
		return response, nil, nil
	}

	return response + formatCitations(evidence), evidence, nil
}

// citationsFor returns candidate citations for a single topic: the best
// curated entry, plus the best document chunk when the curated score is
// weak and a document index is wired.
func (g *Grounder) citationsFor(ctx context.Context, topic string) ([]Citation, error) {
	results, err := g.corpus.Search(ctx, topic, 1)
	if err != nil {
		return nil, err
	}

	var cites []Citation
	var bestScore float32
	for _, r := range results {
		bestScore = r.Score
		cites = append(cites, Citation{Text: r.Text, Source: r.Source, Score: r.Score})
	}

	if g.docs != nil && bestScore < g.docCutoff {
		chunks, err := g.docs.Retrieve(ctx, topic, 1)
		if err != nil {
			// The document index is supplementary; a failure there
			// should not block curated grounding.
			g.logger.Warn("document index search failed", "topic", topic, "error", err)
			return cites, nil
		}
		for _, ch := range chunks {
			if ch.Score <= bestScore {
				continue
			}
			cites = append(cites, Citation{Text: ch.Text, Source: documentSource(ch), Score: ch.Score})
		}
	}

	return cites, nil
}

// documentSource labels a chunk citation by its source document.
func documentSource(ch retrieval.Chunk) string {
	return "Ingested document " + ch.SourceID
}

func formatCitations(evidence []Citation) string {
	var b strings.Builder
	b.WriteString("\n\n📚 **Supporting Resources:**\n")
	for _, c := range evidence {
		b.WriteString("\n• ")
		b.WriteString(truncateExcerpt(c.Text))
		b.WriteString("\n  *Source: ")
		b.WriteString(c.Source)
		b.WriteString("*\n")
	}
	return b.String()
}

// truncateExcerpt caps an excerpt at excerptLimit runes, appending an
// ellipsis when it was cut.
func truncateExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "..."
}
