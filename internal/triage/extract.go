package triage

import (
	"encoding/json"
	"strings"
)

// extractStrategy recovers the JSON array payload from one class of
// real-world classifier output. Strategies are tried in order; the first
// one whose candidate parses wins.
type extractStrategy struct {
	name      string
	candidate func(raw string) (string, bool)
}

// Models routinely wrap JSON in code fences or surround it with prose
// despite instructions; each strategy targets one of those shapes.
var extractStrategies = []extractStrategy{
	{name: "direct", candidate: func(raw string) (string, bool) {
		return raw, true
	}},
	{name: "fence_strip", candidate: func(raw string) (string, bool) {
		if !strings.Contains(raw, "```") {
			return "", false
		}
		clean := strings.ReplaceAll(raw, "```json", "")
		clean = strings.ReplaceAll(clean, "```", "")
		return strings.TrimSpace(clean), true
	}},
	{name: "bracket_span", candidate: func(raw string) (string, bool) {
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start < 0 || end <= start {
			return "", false
		}
		return raw[start : end+1], true
	}},
}

// ExtractFindings recovers a finding list from the classifier's raw text.
// It returns the findings, the name of the strategy that succeeded, and
// ok=false when no strategy yields a non-empty list.
func ExtractFindings(raw string) ([]Finding, string, bool) {
	for _, s := range extractStrategies {
		candidate, ok := s.candidate(raw)
		if !ok {
			continue
		}
		var findings []Finding
		if err := json.Unmarshal([]byte(candidate), &findings); err != nil {
			continue
		}
		if len(findings) == 0 {
			continue
		}
		return findings, s.name, true
	}
	return nil, "", false
}
