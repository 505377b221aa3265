package narrative

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)
	numberedRegex   = regexp.MustCompile(`\d\.\s+`)
)

type suggestionSections struct {
	StrengthsAnalysis       string `json:"strengthsAnalysis"`
	WeaknessesAnalysis      string `json:"weaknessesAnalysis"`
	ImprovementSuggestions  string `json:"improvementSuggestions"`
	TimeAnalysisSuggestions string `json:"timeAnalysisSuggestions"`
}

// parseSuggestions extracts the four suggestion fields from the model's raw
// output. The happy path is a JSON object, possibly wrapped in prose; the
// fallback splits the text on numbered section markers in the order the
// prompt requests them. Unusable input yields empty fields, never an error.
func parseSuggestions(raw string) suggestionSections {
	if match := jsonObjectRegex.FindString(raw); match != "" {
		var s suggestionSections
		if err := json.Unmarshal([]byte(match), &s); err == nil {
			return s
		}
	}

	parts := numberedRegex.Split(raw, -1)
	var s suggestionSections
	if len(parts) > 1 {
		s.StrengthsAnalysis = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		s.WeaknessesAnalysis = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		s.ImprovementSuggestions = strings.TrimSpace(parts[3])
	}
	if len(parts) > 4 {
		s.TimeAnalysisSuggestions = strings.TrimSpace(parts[4])
	}
	return s
}
