package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Chunking defaults, in runes. Overlap keeps sentences that straddle a
// boundary retrievable from both chunks.
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// ExtractPDF reads the plain text of every page in a PDF file.
func ExtractPDF(path string) (text string, pages int, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	pages = r.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("extracting text from page %d: %w", i, err)
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	return b.String(), pages, nil
}

// ChunkText splits text into overlapping chunks of roughly size runes,
// preferring to break at whitespace so words stay intact. Overlap must
// be smaller than size.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Back up to the nearest whitespace so the chunk ends on a
		// word boundary, unless that would make it degenerate.
		cut := end
		for cut > start+step && !isSpace(runes[cut-1]) {
			cut--
		}
		if cut == start+step {
			cut = end
		}

		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
