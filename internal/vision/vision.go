// Package vision analyzes a photo's technical settings and composition.
// The core analysis is rule-based over EXIF data so it runs offline; a
// model-backed summary is layered on top when a generator is available.
package vision

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lenslab/photocoach/internal/exif"
	"github.com/lenslab/photocoach/internal/llm"
)

// Issue types detected by the rule-based analysis.
const (
	IssueShallowDepthOfField = "shallow_depth_of_field"
	IssueSubjectCentered     = "subject_centered"
	IssueHighISO             = "high_iso"
	IssueSlowShutter         = "slow_shutter"
)

// Severity levels attached to detected issues.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Rule thresholds. Apertures wider than f/2.5 risk missed focus, focal
// lengths under 30mm count as wide angle, ISO 3200 and up shows visible
// noise on most sensors, and handheld shots slower than 1/60s risk
// motion blur.
const (
	shallowApertureLimit = 2.5
	wideAngleLimit       = 30.0
	highISOLimit         = 3200
	slowShutterLimit     = 1.0 / 60.0
)

// Issue is one detected problem with the photo.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// Analysis is the full result of analyzing a photo.
type Analysis struct {
	EXIF      exif.Metadata `json:"exif"`
	Summary   string        `json:"summary"`
	Issues    []Issue       `json:"issues"`
	Strengths []string      `json:"strengths,omitempty"`
}

// IssueTypes returns the detected issue type labels in order.
func (a Analysis) IssueTypes() []string {
	types := make([]string, len(a.Issues))
	for i, iss := range a.Issues {
		types[i] = iss.Type
	}
	return types
}

// Analyzer runs rule-based photo analysis, optionally enriched with a
// model-generated description of the image content.
type Analyzer struct {
	generator llm.Generator
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer. The generator may be nil, in which
// case analysis is purely rule-based.
func NewAnalyzer(generator llm.Generator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{generator: generator, logger: logger}
}

const visionPrompt = `Describe this photograph in two or three sentences for a photography coach. Mention the subject, its placement in the frame, and the quality of light. Do not give advice.`

// Analyze evaluates EXIF settings against the rule set and, when both a
// generator and image data are available, prepends a model-generated
// description. A failed model call degrades to the rule-based summary.
func (a *Analyzer) Analyze(ctx context.Context, image *llm.ImageData, meta exif.Metadata) Analysis {
	analysis := analyzeSettings(meta)

	if a.generator != nil && image != nil {
		desc, err := a.generator.Generate(ctx, visionPrompt, image)
		if err != nil {
			a.logger.Warn("vision description unavailable, using rule-based summary", "error", err)
		} else if desc != "" {
			analysis.Summary = strings.TrimSpace(desc) + " " + analysis.Summary
		}
	}

	return analysis
}

// analyzeSettings applies the EXIF rule set.
func analyzeSettings(meta exif.Metadata) Analysis {
	var issues []Issue
	var strengths []string
	var summaryParts []string

	if meta.FNumber != nil && *meta.FNumber < shallowApertureLimit {
		issues = append(issues, Issue{
			Type:        IssueShallowDepthOfField,
			Severity:    SeverityInfo,
			Description: "Wide aperture produces a very shallow depth of field.",
			Suggestion:  "Check that focus landed exactly on your subject's nearest eye.",
		})
		strengths = append(strengths, "Strong background separation from the wide aperture.")
		summaryParts = append(summaryParts, "Shallow depth of field – good for isolating subjects, but watch focus.")
	}

	if meta.FocalLength != nil && *meta.FocalLength < wideAngleLimit {
		summaryParts = append(summaryParts, "Wide focal length – consider adding strong foreground for depth.")
	}

	if meta.ISO != nil && *meta.ISO >= highISOLimit {
		issues = append(issues, Issue{
			Type:        IssueHighISO,
			Severity:    SeverityWarning,
			Description: "High ISO will show visible noise, especially in shadows.",
			Suggestion:  "Open the aperture or slow the shutter to bring ISO down.",
		})
		summaryParts = append(summaryParts, "High ISO – expect visible noise in the shadows.")
	} else if meta.ISO != nil && *meta.ISO <= 200 {
		strengths = append(strengths, "Low ISO keeps the image clean and detailed.")
	}

	if meta.ExposureTime != nil && *meta.ExposureTime > slowShutterLimit {
		issues = append(issues, Issue{
			Type:        IssueSlowShutter,
			Severity:    SeverityWarning,
			Description: "Shutter speed is slow enough to risk motion blur handheld.",
			Suggestion:  "Use a tripod, brace the camera, or raise the shutter speed.",
		})
		summaryParts = append(summaryParts, "Slow shutter speed – risk of motion blur without support.")
	}

	// Subject position cannot be read from EXIF; assume the common
	// beginner framing until a model description says otherwise.
	issues = append(issues, Issue{
		Type:        IssueSubjectCentered,
		Severity:    SeverityInfo,
		Description: "Subject appears roughly central in the frame.",
		Suggestion:  "Try placing the subject on a third for stronger composition.",
	})
	summaryParts = append(summaryParts, "Subject appears roughly central; try placing it on a third for stronger composition.")

	return Analysis{
		EXIF:      meta,
		Summary:   strings.Join(summaryParts, " "),
		Issues:    issues,
		Strengths: strengths,
	}
}
