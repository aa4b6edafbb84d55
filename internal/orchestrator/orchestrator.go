// Package orchestrator coordinates one coaching exchange: session
// restore, photo analysis, coaching, citation grounding, and history
// bookkeeping. Every external call degrades gracefully so a partial
// pipeline still returns useful advice.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/lenslab/photocoach/internal/coach"
	"github.com/lenslab/photocoach/internal/exif"
	"github.com/lenslab/photocoach/internal/grounding"
	"github.com/lenslab/photocoach/internal/llm"
	"github.com/lenslab/photocoach/internal/session"
	"github.com/lenslab/photocoach/internal/vision"
)

// Advisor generates a coaching response.
type Advisor interface {
	Advise(ctx context.Context, query string, analysis *vision.Analysis, sess *session.Session) (coach.Response, error)
}

// ResponseGrounder attaches citations to a generated response.
type ResponseGrounder interface {
	Ground(ctx context.Context, response, userQuery string) (string, []grounding.Citation, error)
}

// PhotoAnalyzer analyzes a photo's settings and composition.
type PhotoAnalyzer interface {
	Analyze(ctx context.Context, image *llm.ImageData, meta exif.Metadata) vision.Analysis
}

// Request is one coaching turn.
type Request struct {
	UserID     string
	Query      string
	Image      []byte // optional JPEG bytes
	ImageMIME  string
	SkillLevel string // optional; updates the session when set
}

// Result is everything produced for one coaching turn.
type Result struct {
	Vision    *vision.Analysis     `json:"vision,omitempty"`
	Coach     coach.Response       `json:"coach"`
	Text      string               `json:"text"`
	Citations []grounding.Citation `json:"citations,omitempty"`
	Session   *session.Session     `json:"session"`
}

// Orchestrator runs the coaching pipeline.
type Orchestrator struct {
	sessions *session.Manager
	analyzer PhotoAnalyzer
	coach    Advisor
	grounder ResponseGrounder
	logger   *slog.Logger
}

// New wires the pipeline stages together.
func New(sessions *session.Manager, analyzer PhotoAnalyzer, advisor Advisor, grounder ResponseGrounder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions: sessions,
		analyzer: analyzer,
		coach:    advisor,
		grounder: grounder,
		logger:   logger,
	}
}

// Coach runs one full coaching exchange: restore session, analyze the
// photo when one is attached, generate advice, ground it with
// citations, then record the turn and persist the session.
func (o *Orchestrator) Coach(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	sess, err := o.sessions.Get(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if req.SkillLevel != "" {
		if !session.ValidSkillLevel(req.SkillLevel) {
			return nil, fmt.Errorf("unknown skill level %q", req.SkillLevel)
		}
		sess.SkillLevel = req.SkillLevel
	}

	analysis := o.analyzePhoto(ctx, req)

	coachResp, err := o.coach.Advise(ctx, req.Query, analysis, sess)
	if err != nil {
		return nil, fmt.Errorf("generating coaching response: %w", err)
	}

	text := coachResp.Text
	var citations []grounding.Citation
	if o.grounder != nil {
		grounded, cites, err := o.grounder.Ground(ctx, coachResp.Text, req.Query)
		if err != nil {
			o.logger.Warn("grounding failed, returning ungrounded response", "error", err)
		} else {
			text = grounded
			citations = cites
		}
	}

	var issues []string
	if analysis != nil {
		issues = analysis.IssueTypes()
	}
	if err := o.sessions.AppendTurn(sess, session.Turn{
		Query:    req.Query,
		Response: coachResp.Text,
		Issues:   issues,
	}); err != nil {
		// The advice is already generated; losing one history turn is
		// better than losing the whole exchange.
		o.logger.Warn("persisting session turn failed", "user_id", req.UserID, "error", err)
	}

	return &Result{
		Vision:    analysis,
		Coach:     coachResp,
		Text:      text,
		Citations: citations,
		Session:   sess,
	}, nil
}

// AnalyzePhoto analyzes a standalone photo without a coaching turn.
func (o *Orchestrator) AnalyzePhoto(ctx context.Context, image []byte, mimeType string) vision.Analysis {
	req := Request{Image: image, ImageMIME: mimeType}
	analysis := o.analyzePhoto(ctx, req)
	if analysis == nil {
		return o.analyzer.Analyze(ctx, nil, exif.Metadata{})
	}
	return *analysis
}

// Session exposes the stored session for a user.
func (o *Orchestrator) Session(userID string) (*session.Session, error) {
	return o.sessions.Get(userID)
}

// SetSkillLevel updates and persists a user's skill level.
func (o *Orchestrator) SetSkillLevel(userID, level string) error {
	if !session.ValidSkillLevel(level) {
		return fmt.Errorf("unknown skill level %q", level)
	}
	sess, err := o.sessions.Get(userID)
	if err != nil {
		return err
	}
	sess.SkillLevel = level
	return o.sessions.Save(sess)
}

// analyzePhoto extracts EXIF and runs the analyzer. Returns nil when no
// image is attached. EXIF failures degrade to metadata-free analysis.
func (o *Orchestrator) analyzePhoto(ctx context.Context, req Request) *vision.Analysis {
	if len(req.Image) == 0 {
		return nil
	}

	meta, err := exif.Extract(bytes.NewReader(req.Image))
	if err != nil {
		o.logger.Debug("no usable camera metadata in image", "error", err)
		meta = exif.Metadata{}
	}

	mime := req.ImageMIME
	if mime == "" {
		mime = "image/jpeg"
	}
	analysis := o.analyzer.Analyze(ctx, &llm.ImageData{MIMEType: mime, Data: req.Image}, meta)
	return &analysis
}
