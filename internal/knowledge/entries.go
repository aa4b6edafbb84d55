// Package knowledge holds the curated photography knowledge set and the
// keyword-based topic extractor. Entries are compiled into the binary
// and are read-only after load.
package knowledge

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed knowledge.json
var knowledgeFS embed.FS

// Entry is one curated photography principle with its citation.
type Entry struct {
	Text        string   `json:"text"`
	Source      string   `json:"source"`
	Category    string   `json:"category"`
	SkillLevels []string `json:"skill_levels"`
	Topics      []string `json:"topics"`
}

// ScoredEntry is an Entry plus the relevance score assigned by retrieval.
type ScoredEntry struct {
	Entry
	Score float32 `json:"relevance_score"`
}

// Load parses the embedded knowledge set. The returned slice must be
// treated as immutable; retrieval hands out copies.
func Load() ([]Entry, error) {
	data, err := knowledgeFS.ReadFile("knowledge.json")
	if err != nil {
		return nil, fmt.Errorf("reading embedded knowledge set: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing knowledge set: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("knowledge set is empty")
	}
	return entries, nil
}

// FilterByCategory returns the entries tagged with the given category.
func FilterByCategory(entries []Entry, category string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// FilterBySkillLevel returns the entries targeting the given skill level.
func FilterBySkillLevel(entries []Entry, level string) []Entry {
	var out []Entry
	for _, e := range entries {
		for _, l := range e.SkillLevels {
			if l == level {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Stats summarizes the knowledge set for diagnostics.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	Categories   map[string]int `json:"categories"`
	UniqueTopics int            `json:"unique_topics"`
}

// Summarize computes Stats for a knowledge set.
func Summarize(entries []Entry) Stats {
	st := Stats{
		TotalEntries: len(entries),
		Categories:   make(map[string]int),
	}
	topics := make(map[string]struct{})
	for _, e := range entries {
		st.Categories[e.Category]++
		for _, t := range e.Topics {
			topics[t] = struct{}{}
		}
	}
	st.UniqueTopics = len(topics)
	return st
}

// AllTopics returns the sorted set of topic keywords across all entries.
func AllTopics(entries []Entry) []string {
	set := make(map[string]struct{})
	for _, e := range entries {
		for _, t := range e.Topics {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
