// Package convert drives AI-assisted tasting note conversion: it turns a raw
// capture into a schema-valid note candidate through a bounded loop of
// provider calls, strict parsing, and validation, recording every attempt.
package convert

import (
	"encoding/json"
	"strings"
)

// ParseError describes provider output that could not be parsed as a JSON
// object. The diagnostic is forwarded verbatim into the repair prompt.
type ParseError struct {
	Diagnostic string
	Text       string
}

func (e *ParseError) Error() string {
	return "convert: parse response: " + e.Diagnostic
}

// Optional text fields where providers tend to emit null instead of the
// empty string the schema expects. Keyed by section.
var stringFieldsBySection = map[string][]string{
	"wine":       {"producer", "cuvee", "country", "region", "subregion", "appellation", "vineyard"},
	"context":    {"location", "glassware", "companions", "occasion", "food_pairing"},
	"provenance": {"storage_notes"},
	"confidence": {"uncertainty_notes"},
	"faults":     {"notes"},
	"readiness":  {"notes"},
}

var topLevelStringFields = []string{
	"appearance_notes", "nose_notes", "palate_notes", "structure_notes",
	"finish_notes", "typicity_notes", "overall_notes", "conclusion",
}

// Parse isolates the JSON object in a raw provider response and unmarshals
// it. Markdown code fences and surrounding prose are tolerated; anything
// outside the outermost braces is discarded. Null values in optional text
// fields are normalized to empty strings before validation sees them.
func Parse(raw string) (map[string]any, *ParseError) {
	text := isolateJSON(raw)
	if text == "" {
		return nil, &ParseError{Diagnostic: "no JSON object found in response", Text: raw}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, &ParseError{Diagnostic: err.Error(), Text: text}
	}

	sanitizeNulls(parsed)
	return parsed, nil
}

// isolateJSON extracts a JSON object from text that may contain markdown
// code fences or other wrapping.
func isolateJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}

	return strings.TrimSpace(text[start : end+1])
}

func sanitizeNulls(parsed map[string]any) {
	for section, fields := range stringFieldsBySection {
		nested, ok := parsed[section].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range fields {
			if v, present := nested[field]; present && v == nil {
				nested[field] = ""
			}
		}
	}

	for _, field := range topLevelStringFields {
		if v, present := parsed[field]; present && v == nil {
			parsed[field] = ""
		}
	}
}
