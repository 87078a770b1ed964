package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/scoring"
)

// Validate checks a parsed payload against the contract and returns either a
// fully-typed candidate or the complete list of violations found in one pass.
// It never coerces invalid values; range, enum, and type checks only —
// plausibility (a vintage in the far future, say) is left to human review.
func Validate(parsed map[string]any) (*model.NoteCandidate, []model.Violation) {
	var violations []model.Violation

	for _, section := range RequiredSections {
		v, ok := parsed[section]
		if !ok || v == nil {
			violations = append(violations, model.Violation{
				Field:   section,
				Kind:    "missing",
				Message: fmt.Sprintf("required section %q is missing", section),
			})
			continue
		}
		if _, isObj := v.(map[string]any); !isObj {
			violations = append(violations, model.Violation{
				Field:   section,
				Kind:    "type",
				Message: fmt.Sprintf("section %q must be an object", section),
			})
		}
	}

	violations = append(violations, checkSubscores(parsed)...)
	violations = append(violations, checkEnums(parsed)...)
	violations = append(violations, checkOptionalScores(parsed)...)
	violations = append(violations, checkConsistency(parsed)...)

	if len(violations) > 0 {
		return nil, violations
	}

	candidate, err := decode(parsed)
	if err != nil {
		return nil, []model.Violation{{
			Field:   "",
			Kind:    "type",
			Message: err.Error(),
		}}
	}
	return candidate, nil
}

func checkSubscores(parsed map[string]any) []model.Violation {
	var violations []model.Violation

	sub, ok := lookupObject(parsed, "scores.subscores")
	if !ok {
		// Covered by the required-section check unless scores exists but
		// subscores is absent.
		if _, scoresPresent := lookupObject(parsed, "scores"); scoresPresent {
			violations = append(violations, model.Violation{
				Field:   "scores.subscores",
				Kind:    "missing",
				Message: "scores.subscores is missing",
			})
		}
		return violations
	}

	for key, r := range scoring.Ranges {
		raw, present := sub[key]
		if !present || raw == nil {
			violations = append(violations, model.Violation{
				Field:   "scores.subscores." + key,
				Kind:    "missing",
				Message: fmt.Sprintf("subscore %q is missing", key),
			})
			continue
		}
		n, isInt := asInt(raw)
		if !isInt {
			violations = append(violations, model.Violation{
				Field:   "scores.subscores." + key,
				Kind:    "type",
				Message: fmt.Sprintf("subscore %q must be an integer, got %v", key, raw),
			})
			continue
		}
		if n < r.Min || n > r.Max {
			violations = append(violations, model.Violation{
				Field:   "scores.subscores." + key,
				Kind:    "range",
				Message: fmt.Sprintf("subscore %q must be between %d and %d, got %d", key, r.Min, r.Max, n),
			})
		}
	}
	return violations
}

func checkEnums(parsed map[string]any) []model.Violation {
	var violations []model.Violation
	for path, allowed := range Enums {
		raw, ok := lookup(parsed, path)
		if !ok || raw == nil {
			continue // enum fields are optional unless a required section demands them
		}
		s, isStr := raw.(string)
		if !isStr {
			violations = append(violations, model.Violation{
				Field:   path,
				Kind:    "type",
				Message: fmt.Sprintf("%s must be a string, got %v", path, raw),
			})
			continue
		}
		if s == "" {
			continue
		}
		member := false
		for _, a := range allowed {
			if s == a {
				member = true
				break
			}
		}
		if !member {
			violations = append(violations, model.Violation{
				Field:   path,
				Kind:    "enum",
				Message: fmt.Sprintf("%s value %q is not one of [%s]", path, s, strings.Join(allowed, ", ")),
			})
		}
	}
	return violations
}

func checkOptionalScores(parsed map[string]any) []model.Violation {
	var violations []model.Violation
	for _, path := range []string{"scores.personal_enjoyment", "scores.value_for_money"} {
		raw, ok := lookup(parsed, path)
		if !ok || raw == nil {
			continue
		}
		n, isInt := asInt(raw)
		if !isInt {
			violations = append(violations, model.Violation{
				Field:   path,
				Kind:    "type",
				Message: fmt.Sprintf("%s must be an integer, got %v", path, raw),
			})
			continue
		}
		if n < 0 || n > 10 {
			violations = append(violations, model.Violation{
				Field:   path,
				Kind:    "range",
				Message: fmt.Sprintf("%s must be between 0 and 10, got %d", path, n),
			})
		}
	}
	return violations
}

func checkConsistency(parsed map[string]any) []model.Violation {
	var violations []model.Violation

	if faults, ok := lookupObject(parsed, "faults"); ok {
		if present, _ := faults["present"].(bool); present {
			suspected, _ := faults["suspected"].([]any)
			if len(suspected) == 0 {
				violations = append(violations, model.Violation{
					Field:   "faults.suspected",
					Kind:    "consistency",
					Message: "faults.present is true but no suspected fault is listed",
				})
			}
		}
	}

	startRaw, startOK := lookup(parsed, "readiness.window_start_year")
	endRaw, endOK := lookup(parsed, "readiness.window_end_year")
	if startOK && endOK && startRaw != nil && endRaw != nil {
		start, sInt := asInt(startRaw)
		end, eInt := asInt(endRaw)
		if sInt && eInt && start > end {
			violations = append(violations, model.Violation{
				Field:   "readiness.window_start_year",
				Kind:    "consistency",
				Message: fmt.Sprintf("drinking window start %d is after end %d", start, end),
			})
		}
	}

	return violations
}

// decode converts a validated payload into the typed candidate via a JSON
// round-trip. DisallowUnknownFields is deliberately not used: providers may
// emit extra keys, which are ignored rather than treated as violations.
func decode(parsed map[string]any) (*model.NoteCandidate, error) {
	raw, err := json.Marshal(parsed)
	if err != nil {
		return nil, eris.Wrap(err, "schema: re-marshal payload")
	}
	var c model.NoteCandidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, eris.Wrap(err, "schema: decode candidate")
	}
	c.Source = model.NoteSourceConverted
	c.Status = model.NoteStatusDraft
	return &c, nil
}

// lookup resolves a dotted path in a nested map.
func lookup(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := any(m)
	for i, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := obj[p]
		if !present {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		cur = v
	}
	return nil, false
}

func lookupObject(m map[string]any, path string) (map[string]any, bool) {
	v, ok := lookup(m, path)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// asInt accepts JSON numbers that are integral. 7.0 is 7; 7.5 is not an int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
