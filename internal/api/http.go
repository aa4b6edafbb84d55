package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lenslab/photocoach/internal/ingest"
	"github.com/lenslab/photocoach/internal/knowledge"
	"github.com/lenslab/photocoach/internal/orchestrator"
	"github.com/lenslab/photocoach/internal/session"
	"github.com/lenslab/photocoach/internal/storage"
)

// CoachRunner abstracts the coaching pipeline for the HTTP layer.
type CoachRunner interface {
	Coach(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Session(userID string) (*session.Session, error)
}

// KnowledgeSearcher searches the curated knowledge set.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredEntry, error)
}

// AppDeps holds dependencies for the HTTP API.
type AppDeps struct {
	Store        *storage.Store
	Orchestrator CoachRunner
	Corpus       KnowledgeSearcher
	Token        string // guards the admin ingest surface
}

// NewAppHandler builds the HTTP API router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/coach", handleCoach(deps))
		r.Get("/sessions/{user_id}", handleGetSession(deps))
		r.Get("/knowledge/search", handleKnowledgeSearch(deps))

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))
			r.Post("/ingest", handleIngest(deps))
			r.Get("/documents", handleListDocuments(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// CoachRequest is the JSON body of POST /v1/coach. Multipart requests
// carry the same fields as form values plus an "image" file part.
type CoachRequest struct {
	UserID      string `json:"user_id"`
	Query       string `json:"query"`
	SkillLevel  string `json:"skill_level,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageMIME   string `json:"image_mime,omitempty"`
}

func handleCoach(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		req, ok := decodeCoachRequest(w, r)
		if !ok {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		res, err := deps.Orchestrator.Coach(r.Context(), req)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "coaching failed: %v", err)
			return
		}

		writeJSON(w, res)
	}
}

// decodeCoachRequest reads either a JSON body or a multipart form with
// an image file part into an orchestrator request.
func decodeCoachRequest(w http.ResponseWriter, r *http.Request) (orchestrator.Request, bool) {
	var out orchestrator.Request

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxRequestBodySize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return out, false
		}
		out.UserID = r.FormValue("user_id")
		out.Query = r.FormValue("query")
		out.SkillLevel = r.FormValue("skill_level")

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading image: %v", err)
				return out, false
			}
			out.Image = data
			out.ImageMIME = header.Header.Get("Content-Type")
		}
		return out, true
	}

	var req CoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return out, false
	}
	out.UserID = req.UserID
	out.Query = req.Query
	out.SkillLevel = req.SkillLevel
	out.ImageMIME = req.ImageMIME
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 image")
			return out, false
		}
		out.Image = data
	}
	return out, true
}

func handleGetSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")

		sess, err := deps.Orchestrator.Session(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load session: %v", err)
			return
		}

		writeJSON(w, sess)
	}
}

func handleKnowledgeSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", 5, 20)

		results, err := deps.Corpus.Search(r.Context(), query, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}
		if results == nil {
			results = []knowledge.ScoredEntry{}
		}

		writeJSON(w, results)
	}
}

// IngestRequest is the JSON body of POST /v1/ingest.
type IngestRequest struct {
	Title string   `json:"title"`
	Path  string   `json:"path"`
	Tags  []string `json:"tags,omitempty"`
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required")
			return
		}

		tagsJSON := "[]"
		if len(req.Tags) > 0 {
			b, err := json.Marshal(req.Tags)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to marshal tags: %v", err)
				return
			}
			tagsJSON = string(b)
		}

		doc, err := ingest.Enqueue(deps.Store, req.Title, req.Path, tagsJSON)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue ingest: %v", err)
			return
		}

		writeJSON(w, map[string]string{
			"id":     doc.ID,
			"status": "queued",
		})
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		docs, err := deps.Store.ListDocuments(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}

		writeJSON(w, docs)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
