package eval

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslab/photocoach/internal/llm"
	"github.com/lenslab/photocoach/internal/orchestrator"
)

type fakeCoach struct {
	text  string
	err   error
	users []string
}

func (f *fakeCoach) Coach(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	f.users = append(f.users, req.UserID)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{Text: f.text}, nil
}

type fakeJudge struct {
	response string
	err      error
}

func (f *fakeJudge) Generate(_ context.Context, _ string, _ *llm.ImageData) (string, error) {
	return f.response, f.err
}

func TestRun_HeuristicOnly(t *testing.T) {
	coach := &fakeCoach{text: "Use the rule of thirds and watch your exposure. A wider aperture will soften the background and give you pleasing depth of field for portraits."}
	r := NewRunner(coach, nil, nil)

	results, summary := r.Run(context.Background(), []string{"q1", "q2"}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Greater(t, summary.AvgScore, 0.0)
	require.NotNil(t, results[0].Heuristic)
	assert.Nil(t, results[0].Judge)
	assert.Greater(t, results[0].Heuristic.TechTermsFound, 2)
}

func TestRun_IsolatesUsersPerPrompt(t *testing.T) {
	coach := &fakeCoach{text: "advice"}
	r := NewRunner(coach, nil, nil)

	r.Run(context.Background(), []string{"a", "b", "c"}, nil)

	assert.Equal(t, []string{"eval_user_1", "eval_user_2", "eval_user_3"}, coach.users)
}

func TestRun_WithJudge(t *testing.T) {
	coach := &fakeCoach{text: "Solid advice about aperture and composition with enough detail to be useful for a beginner photographer learning the basics."}
	judge := &fakeJudge{response: "```json\n{\"relevance\": 8, \"completeness\": 7, \"accuracy\": 9, \"actionability\": 8, \"explanation\": \"clear and specific\"}\n```"}
	r := NewRunner(coach, judge, nil)

	results, _ := r.Run(context.Background(), []string{"q"}, nil)

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Judge)
	assert.Equal(t, 8.0, results[0].Judge.Relevance)
	assert.InDelta(t, 8.0, results[0].Overall, 0.01)
}

func TestRun_JudgeFailureFallsBackToHeuristics(t *testing.T) {
	coach := &fakeCoach{text: strings.Repeat("composition and exposure advice. ", 10)}
	judge := &fakeJudge{err: errors.New("judge offline")}
	r := NewRunner(coach, judge, nil)

	results, _ := r.Run(context.Background(), []string{"q"}, nil)

	require.Len(t, results, 1)
	assert.Nil(t, results[0].Judge)
	assert.Greater(t, results[0].Overall, 0.0)
}

func TestRun_CoachErrorRecorded(t *testing.T) {
	coach := &fakeCoach{err: errors.New("pipeline broken")}
	r := NewRunner(coach, nil, nil)

	results, summary := r.Run(context.Background(), []string{"q"}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, results[0].Error, "pipeline broken")
}

func TestScoreHeuristic(t *testing.T) {
	t.Run("empty response", func(t *testing.T) {
		s := ScoreHeuristic("")
		assert.Zero(t, s.LengthScore)
		assert.Zero(t, s.TechScore)
	})

	t.Run("good length with tech terms", func(t *testing.T) {
		response := "Try a wider aperture for shallow depth of field, keep your ISO low, and use the rule of thirds when framing. " +
			"Watch the histogram to protect your highlights."
		s := ScoreHeuristic(response)
		assert.Equal(t, 8.0, s.LengthScore)
		assert.GreaterOrEqual(t, s.TechTermsFound, 4)
		assert.Equal(t, 10.0, s.TechScore)
	})

	t.Run("too short", func(t *testing.T) {
		s := ScoreHeuristic("Use f/8.")
		assert.Equal(t, 3.0, s.LengthScore)
	})

	t.Run("too verbose", func(t *testing.T) {
		s := ScoreHeuristic(strings.Repeat("advice ", 100))
		assert.Equal(t, 6.0, s.LengthScore)
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "Here you go:\n```json\n{\"relevance\": 8}\n```", `{"relevance": 8}`},
		{"plain fence", "```\n{\"relevance\": 7}\n```", `{"relevance": 7}`},
		{"embedded object", `The scores are {"relevance": 6} overall.`, `{"relevance": 6}`},
		{"bare json", `{"relevance": 5}`, `{"relevance": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	results := []Result{
		{
			Prompt:    "how to frame?",
			Overall:   7.5,
			LatencyMS: 120,
			Judge:     &JudgeScores{Relevance: 8, Completeness: 7, Accuracy: 8, Actionability: 7},
			Heuristic: &HeuristicScores{LengthScore: 8, TechScore: 6},
			Status:    "success",
		},
		{Prompt: "broken", Status: "error"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Overall Score")
	assert.Contains(t, lines[1], "7.50")
	assert.Contains(t, lines[2], "-")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []Result{{Prompt: "p", Status: "success"}}))
	assert.Contains(t, buf.String(), `"prompt": "p"`)
}
