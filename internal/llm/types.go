package llm

import "context"

// Generator is the text-generation side of the hosted model API.
// Image data is optional; pass nil for text-only prompts.
type Generator interface {
	Generate(ctx context.Context, prompt string, image *ImageData) (string, error)
}

// EmbedderClient is the embedding side of the hosted model API.
type EmbedderClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageData carries raw image bytes plus their MIME type for inline
// submission alongside a prompt.
type ImageData struct {
	MIMEType string
	Data     []byte
}

// generateRequest mirrors the generateContent wire format.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

type embedRequest struct {
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
