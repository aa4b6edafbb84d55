// Package eval runs synthetic coaching prompts through the full
// pipeline and scores the responses: heuristics locally, plus an
// optional model judge. Reports are written as CSV and JSON.
package eval

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lenslab/photocoach/internal/llm"
	"github.com/lenslab/photocoach/internal/orchestrator"
)

// CoachRunner runs one coaching exchange.
type CoachRunner interface {
	Coach(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// DefaultPrompts are the synthetic questions used when no prompt file
// is supplied.
func DefaultPrompts() []string {
	return []string{
		"How can I improve the composition of this photo?",
		"What aperture should I use for portraits?",
		"My photos come out too dark indoors. What should I change?",
		"How do I get that blurry background effect?",
		"When is the best time of day for landscape photography?",
		"Why do my night photos look grainy?",
	}
}

// techTerms is the photography vocabulary the heuristic scorer looks
// for in responses.
var techTerms = []string{
	"composition", "exposure", "iso", "aperture", "focal length",
	"shutter speed", "depth of field", "bokeh", "rule of thirds",
	"leading lines", "contrast", "dynamic range", "white balance",
	"histogram", "metering", "autofocus",
}

// HeuristicScores are the locally computed response metrics.
type HeuristicScores struct {
	LengthScore    float64 `json:"length_score"`
	TechScore      float64 `json:"tech_score"`
	ResponseLength int     `json:"response_length"`
	TechTermsFound int     `json:"tech_terms_found"`
}

// JudgeScores are the model judge's rubric scores, each on a 1-10
// scale.
type JudgeScores struct {
	Relevance     float64 `json:"relevance"`
	Completeness  float64 `json:"completeness"`
	Accuracy      float64 `json:"accuracy"`
	Actionability float64 `json:"actionability"`
	Explanation   string  `json:"explanation,omitempty"`
}

// Result is the scored outcome of one evaluation prompt.
type Result struct {
	Prompt    string           `json:"prompt"`
	Response  string           `json:"response"`
	LatencyMS int64            `json:"latency_ms"`
	Overall   float64          `json:"overall_score"`
	Judge     *JudgeScores     `json:"judge_scores,omitempty"`
	Heuristic *HeuristicScores `json:"heuristic_scores,omitempty"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
}

// Summary aggregates a full evaluation run.
type Summary struct {
	Prompts      int     `json:"prompts"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	AvgScore     float64 `json:"avg_score"`
	AvgLatencyMS int64   `json:"avg_latency_ms"`
}

// Runner evaluates the coaching pipeline.
type Runner struct {
	coach  CoachRunner
	judge  llm.Generator // optional; nil disables judge scoring
	logger *slog.Logger
}

// NewRunner creates an evaluation runner. The judge may be nil, in
// which case only heuristic scoring applies.
func NewRunner(coach CoachRunner, judge llm.Generator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{coach: coach, judge: judge, logger: logger}
}

// Run executes every prompt against the pipeline, each under its own
// user so conversations do not contaminate each other, and scores the
// responses.
func (r *Runner) Run(ctx context.Context, prompts []string, image []byte) ([]Result, Summary) {
	results := make([]Result, 0, len(prompts))

	for i, prompt := range prompts {
		r.logger.Info("evaluating prompt", "index", i+1, "total", len(prompts))
		results = append(results, r.evaluateOne(ctx, i, prompt, image))
	}

	return results, summarize(results)
}

func (r *Runner) evaluateOne(ctx context.Context, i int, prompt string, image []byte) Result {
	start := time.Now()

	res, err := r.coach.Coach(ctx, orchestrator.Request{
		UserID: fmt.Sprintf("eval_user_%d", i+1),
		Query:  prompt,
		Image:  image,
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Prompt:    prompt,
			LatencyMS: latency,
			Status:    "error",
			Error:     err.Error(),
		}
	}

	result := Result{
		Prompt:    prompt,
		Response:  res.Text,
		LatencyMS: latency,
		Status:    "success",
	}

	heuristic := ScoreHeuristic(res.Text)
	result.Heuristic = &heuristic

	if r.judge != nil {
		if judge, err := r.scoreWithJudge(ctx, res.Text); err != nil {
			r.logger.Warn("judge scoring failed", "error", err)
		} else {
			result.Judge = judge
		}
	}

	if result.Judge != nil {
		result.Overall = (result.Judge.Relevance + result.Judge.Completeness +
			result.Judge.Accuracy + result.Judge.Actionability) / 4
	} else {
		result.Overall = (heuristic.LengthScore + heuristic.TechScore) / 2
	}

	return result
}

// ScoreHeuristic applies local scoring: response length in a useful
// band and presence of photography vocabulary.
func ScoreHeuristic(response string) HeuristicScores {
	if response == "" {
		return HeuristicScores{}
	}

	length := len(response)
	var lengthScore float64
	switch {
	case length >= 100 && length <= 500:
		lengthScore = 8
	case length > 500:
		lengthScore = 6
	case length < 50:
		lengthScore = 3
	default:
		lengthScore = 5
	}

	lower := strings.ToLower(response)
	var techCount int
	for _, term := range techTerms {
		if strings.Contains(lower, term) {
			techCount++
		}
	}
	techScore := float64(techCount * 2)
	if techScore > 10 {
		techScore = 10
	}

	return HeuristicScores{
		LengthScore:    lengthScore,
		TechScore:      techScore,
		ResponseLength: length,
		TechTermsFound: techCount,
	}
}

const judgeRubric = `You are an expert photography instructor evaluating an AI coach's response.

Score the following response on a scale of 1-10 for each criterion:

**Relevance (1-10):** How well does the response address the user's question?
**Completeness (1-10):** Does it provide sufficient detail and context?
**Accuracy (1-10):** Is the technical advice correct and grounded?
**Actionability (1-10):** Can the user act on this advice immediately?

Response to score:
"%s"

Provide a JSON object with keys: relevance, completeness, accuracy, actionability, and a brief explanation.`

func (r *Runner) scoreWithJudge(ctx context.Context, response string) (*JudgeScores, error) {
	text, err := r.judge.Generate(ctx, fmt.Sprintf(judgeRubric, response), nil)
	if err != nil {
		return nil, fmt.Errorf("judge call: %w", err)
	}

	var scores JudgeScores
	if err := json.Unmarshal([]byte(extractJSON(text)), &scores); err != nil {
		return nil, fmt.Errorf("parsing judge scores: %w", err)
	}
	return &scores, nil
}

// extractJSON pulls a JSON object out of judge output that may be
// wrapped in markdown code fences or prose.
func extractJSON(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			return text[i : j+1]
		}
	}
	return text
}

func summarize(results []Result) Summary {
	s := Summary{Prompts: len(results)}
	if len(results) == 0 {
		return s
	}

	var totalScore float64
	var totalLatency int64
	for _, r := range results {
		if r.Status == "success" {
			s.Succeeded++
		} else {
			s.Failed++
		}
		totalScore += r.Overall
		totalLatency += r.LatencyMS
	}
	s.AvgScore = totalScore / float64(len(results))
	s.AvgLatencyMS = totalLatency / int64(len(results))
	return s
}

// WriteJSON writes the detailed results as indented JSON.
func WriteJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// WriteCSV writes a per-prompt score summary.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"Prompt", "Overall Score", "Latency (ms)",
		"Relevance", "Completeness", "Accuracy", "Actionability",
		"Length Score", "Tech Score", "Status",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Prompt,
			fmt.Sprintf("%.2f", r.Overall),
			fmt.Sprintf("%d", r.LatencyMS),
			judgeField(r.Judge, func(j *JudgeScores) float64 { return j.Relevance }),
			judgeField(r.Judge, func(j *JudgeScores) float64 { return j.Completeness }),
			judgeField(r.Judge, func(j *JudgeScores) float64 { return j.Accuracy }),
			judgeField(r.Judge, func(j *JudgeScores) float64 { return j.Actionability }),
			heuristicField(r.Heuristic, func(h *HeuristicScores) float64 { return h.LengthScore }),
			heuristicField(r.Heuristic, func(h *HeuristicScores) float64 { return h.TechScore }),
			r.Status,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func judgeField(j *JudgeScores, get func(*JudgeScores) float64) string {
	if j == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", get(j))
}

func heuristicField(h *HeuristicScores, get func(*HeuristicScores) float64) string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", get(h))
}
