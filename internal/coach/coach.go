// Package coach turns a user question, photo analysis, and conversation
// history into coaching advice. A hosted model generates the advice;
// when the model is unreachable the coach degrades to keyword-routed
// canned guidance so the product keeps working offline.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lenslab/photocoach/internal/knowledge"
	"github.com/lenslab/photocoach/internal/llm"
	"github.com/lenslab/photocoach/internal/session"
	"github.com/lenslab/photocoach/internal/vision"
)

// historyWindow is how many trailing turns the prompt includes.
const historyWindow = 10

// maxPrinciples caps how many retrieved principles enter the prompt.
const maxPrinciples = 3

// Response is the coach's full answer for one exchange.
type Response struct {
	Text       string                  `json:"text"`
	Principles []knowledge.ScoredEntry `json:"principles,omitempty"`
	Issues     []string                `json:"issues,omitempty"`
	Exercise   string                  `json:"exercise"`
}

// PrincipleSearcher retrieves knowledge entries relevant to a query.
type PrincipleSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredEntry, error)
}

// Coach generates coaching responses.
type Coach struct {
	generator llm.Generator
	corpus    PrincipleSearcher
	logger    *slog.Logger
}

// New creates a Coach. The generator may be nil to force canned
// responses (useful for offline operation).
func New(generator llm.Generator, corpus PrincipleSearcher, logger *slog.Logger) *Coach {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coach{generator: generator, corpus: corpus, logger: logger}
}

// Advise produces a coaching response for the question, drawing on the
// photo analysis (may be nil) and the session's history and skill
// level.
func (c *Coach) Advise(ctx context.Context, query string, analysis *vision.Analysis, sess *session.Session) (Response, error) {
	var issues []string
	if analysis != nil {
		issues = analysis.IssueTypes()
	}

	principles, err := c.retrievePrinciples(ctx, query, issues)
	if err != nil {
		// Principles enrich the prompt but are not required for it.
		c.logger.Warn("principle retrieval failed", "error", err)
		principles = nil
	}

	text := c.generate(ctx, query, analysis, sess, principles, issues)

	return Response{
		Text:       text,
		Principles: principles,
		Issues:     issues,
		Exercise:   ExerciseFor(issues),
	}, nil
}

func (c *Coach) retrievePrinciples(ctx context.Context, query string, issues []string) ([]knowledge.ScoredEntry, error) {
	if c.corpus == nil {
		return nil, nil
	}
	retrievalQuery := query
	if len(issues) > 0 {
		retrievalQuery += " " + strings.Join(issues, " ")
	}
	return c.corpus.Search(ctx, retrievalQuery, maxPrinciples)
}

func (c *Coach) generate(ctx context.Context, query string, analysis *vision.Analysis, sess *session.Session, principles []knowledge.ScoredEntry, issues []string) string {
	if c.generator == nil {
		return fallbackResponse(query, issues)
	}

	prompt := BuildPrompt(query, analysis, sess, principles)
	text, err := c.generator.Generate(ctx, prompt, nil)
	if err != nil {
		c.logger.Warn("model call failed, using canned coaching", "error", err)
		return fallbackResponse(query, issues)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackResponse(query, issues)
	}
	return text
}

// BuildPrompt assembles the coaching prompt: skill level, photo
// analysis, retrieved principles, and recent conversation context
// around the user's question.
func BuildPrompt(query string, analysis *vision.Analysis, sess *session.Session, principles []knowledge.ScoredEntry) string {
	var b strings.Builder

	b.WriteString("You are an expert photography coach providing personalized guidance.\n\n")

	skill := session.DefaultSkillLevel
	if sess != nil && sess.SkillLevel != "" {
		skill = sess.SkillLevel
	}
	fmt.Fprintf(&b, "Student skill level: %s\n\n", skill)

	fmt.Fprintf(&b, "User's Current Question: %s\n\n", query)

	b.WriteString("Detected Issues in Photo:\n")
	if analysis != nil && len(analysis.Issues) > 0 {
		for _, iss := range analysis.Issues {
			fmt.Fprintf(&b, "- %s: %s\n", iss.Type, iss.Description)
		}
	} else {
		b.WriteString("- No issues detected\n")
	}
	b.WriteString("\n")

	if analysis != nil {
		fmt.Fprintf(&b, "Photo Summary: %s\n", analysis.Summary)
		if !analysis.EXIF.Empty() {
			fmt.Fprintf(&b, "Camera Settings: %s\n", analysis.EXIF.Summary())
		}
		b.WriteString("\n")
	}

	b.WriteString("Photography Principles to Consider:\n")
	if len(principles) > 0 {
		for _, p := range principles {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Text, p.Source)
		}
	} else {
		b.WriteString("No specific principles found.\n")
	}
	b.WriteString("\n")

	b.WriteString("Conversation Context (Previous Questions):\n")
	b.WriteString(historyContext(sess))
	b.WriteString("\n\n")

	b.WriteString(`Provide helpful, specific photography coaching that:
1. Directly addresses the user's current question
2. References any detected issues in the photo
3. Gives actionable advice they can apply immediately
4. Builds on previous conversation context if applicable
5. Stays focused and concise (3-4 sentences)

Respond as a friendly photography coach, not as a template.`)

	return b.String()
}

// historyContext renders the trailing conversation turns plus any
// compacted summary of older ones.
func historyContext(sess *session.Session) string {
	if sess == nil || len(sess.History) == 0 {
		return "This is the start of the conversation."
	}

	var lines []string
	if sess.CompactSummary != "" {
		lines = append(lines, "Earlier conversation summary: "+sess.CompactSummary)
	}

	turns := sess.History
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}
	for i, t := range turns {
		if t.Query != "" {
			lines = append(lines, fmt.Sprintf("- Previous question %d: %s", i+1, t.Query))
		}
	}

	if len(lines) == 0 {
		return "This is the start of the conversation."
	}
	return strings.Join(lines, "\n")
}

// fallbackResponse routes the question to canned guidance by keyword.
func fallbackResponse(query string, issues []string) string {
	lower := strings.ToLower(query)
	hasIssue := func(name string) bool {
		for _, iss := range issues {
			if iss == name {
				return true
			}
		}
		return false
	}

	response := fmt.Sprintf("Based on your question about %s:\n\n", query)

	switch {
	case strings.Contains(lower, "composition"):
		response += "For composition: "
		if hasIssue(vision.IssueSubjectCentered) {
			response += "Try moving your main subject to the rule of thirds. "
		}
		response += "Check your horizon line and use leading lines to guide the viewer."
	case strings.Contains(lower, "lighting"):
		response += "Lighting is key to great photos. Look for directional light, avoid harsh shadows, and consider the time of day."
	case strings.Contains(lower, "iso") || strings.Contains(lower, "settings"):
		response += "Adjust ISO based on available light - lower ISO for bright conditions, higher for low light. Balance with aperture and shutter speed."
	case strings.Contains(lower, "about") || strings.Contains(lower, "subject"):
		response += "Your photo shows interesting elements. Focus on what draws your eye most, and frame to emphasize that."
	default:
		response += "Great question about photography. Keep practicing and experimenting with different perspectives and settings."
	}

	return response
}

// ExerciseFor picks a practice exercise keyed on the detected issues.
func ExerciseFor(issues []string) string {
	for _, iss := range issues {
		if iss == vision.IssueSubjectCentered {
			return "Exercise: Take 10 photos of the same scene. For each frame, place the subject on a different position using the rule of thirds. Review which feels most compelling."
		}
	}
	for _, iss := range issues {
		if iss == vision.IssueShallowDepthOfField {
			return "Exercise: Practice focus placement with a wide aperture. Take shots with focus on different elements to master depth control."
		}
	}
	return "Exercise: Spend 30 minutes taking photos of one subject from different angles, distances, and compositions. Note what works best."
}
