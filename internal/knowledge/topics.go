package knowledge

import "strings"

// topicRule pairs a topic label with the keyword substrings that
// signal it. A topic is detected when any keyword appears as a
// case-insensitive substring of the input. Presence-only: no ranking,
// no overlap resolution, no negation handling.
type topicRule struct {
	topic    string
	keywords []string
}

// topicRules is ordered: the citation cap downstream keeps the first
// topics detected, so earlier entries win ties.
var topicRules = []topicRule{
	{"rule of thirds", []string{"rule of thirds", "thirds", "grid", "power point", "intersection"}},
	{"golden hour", []string{"golden hour", "magic hour", "sunrise", "sunset", "warm light"}},
	{"depth of field", []string{"depth of field", "dof", "bokeh", "blur", "background separation", "shallow", "deep"}},
	{"exposure", []string{"exposure", "overexposed", "underexposed", "bright", "dark", "histogram"}},
	{"iso", []string{"iso", "noise", "grain", "sensitivity", "high iso", "low iso"}},
	{"aperture", []string{"aperture", "f-stop", "f/", "f stop", "wide open", "stopped down"}},
	{"shutter speed", []string{"shutter speed", "motion blur", "freeze", "fast shutter", "slow shutter"}},
	{"leading lines", []string{"leading lines", "lines", "guide", "eye flow", "diagonal"}},
	{"lighting", []string{"lighting", "light", "shadows", "highlights", "contrast"}},
	{"composition", []string{"composition", "framing", "frame", "arrange", "placement"}},
	{"focus", []string{"focus", "sharp", "sharpness", "blur", "out of focus", "soft"}},
	{"white balance", []string{"white balance", "color temperature", "kelvin", "warm", "cool", "color cast"}},
	{"horizon", []string{"horizon", "tilt", "level", "straight", "crooked"}},
	{"centered subject", []string{"centered", "center", "middle", "symmetry", "symmetrical"}},
	{"background", []string{"background", "distraction", "clutter", "busy", "clean background"}},
}

// defaultTopics is returned when no keyword matches.
var defaultTopics = []string{"composition", "exposure"}

// ExtractTopics classifies free text into the fixed topic label set by
// keyword presence. Output follows the rule order above. When no topic
// matches, the default topics are returned.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				found = append(found, rule.topic)
				break
			}
		}
	}

	if len(found) == 0 {
		out := make([]string, len(defaultTopics))
		copy(out, defaultTopics)
		return out
	}

	return found
}
