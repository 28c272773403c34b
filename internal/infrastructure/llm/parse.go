package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Fields is the structured payload expected inside a model response.
type Fields struct {
	Summary  string   `json:"summary"`
	Source   string   `json:"source"`
	Region   string   `json:"region"`
	Keywords []string `json:"keywords"`
}

const maxKeywords = 5

var embeddedObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseFields extracts structured fields from free-form model output.
// Tiers, in order: strict JSON parse of the whole text, JSON parse of an
// embedded {...} object, heuristic keyword splitting on Chinese/ASCII
// commas, and finally the zero value (caller keeps original fields).
func ParseFields(text string) Fields {
	text = strings.TrimSpace(text)
	if text == "" {
		return Fields{}
	}

	var fields Fields
	if err := json.Unmarshal([]byte(text), &fields); err == nil {
		return capKeywords(fields)
	}

	if match := embeddedObject.FindString(text); match != "" {
		if err := json.Unmarshal([]byte(match), &fields); err == nil {
			return capKeywords(fields)
		}
	}

	if keywords := splitKeywords(text); len(keywords) > 0 {
		return Fields{Keywords: keywords}
	}

	return Fields{}
}

func splitKeywords(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '，' || r == ','
	})
	if len(parts) < 2 {
		return nil
	}

	keywords := make([]string, 0, maxKeywords)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keywords = append(keywords, part)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

func capKeywords(fields Fields) Fields {
	if len(fields.Keywords) > maxKeywords {
		fields.Keywords = fields.Keywords[:maxKeywords]
	}
	return fields
}
