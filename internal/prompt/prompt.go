// Package prompt renders the extraction and repair prompts sent to the
// text-generation provider. Rendering is deterministic: identical inputs and
// an identical contract version always produce byte-identical output, which
// keeps recorded runs auditable.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/schema"
)

// Version identifies the prompt contract. Recorded on every conversion run;
// bump it whenever the templates or the embedded schema description change.
const Version = "1.1"

// Prompt is a rendered system/user pair ready for submission.
type Prompt struct {
	System string
	User   string
}

const systemText = `You are an expert sommelier assistant. You convert free-form wine tasting notes into structured JSON.

CRITICAL RULES:
1. NEVER invent information that is not present or clearly implied in the input
2. Use null for any field you cannot determine from the text
3. Use empty strings for text fields with no information, empty arrays for list fields
4. Record anything you had to infer in confidence.uncertainty_notes and lower confidence.level accordingly
5. Preserve the taster's voice and terminology in the notes fields

If the taster scored the wine, use their numbers. Otherwise estimate subscores from their descriptive language and say so in uncertainty_notes.

Output ONLY valid JSON. No markdown fences, no prose.`

const userTemplate = `Convert the following wine tasting notes into structured JSON.

RAW TASTING NOTES:
%s

%sSCHEMA CONTRACT (version %s):
%s
Return a single JSON object with these top-level keys:
wine, context, provenance, confidence, faults, readiness, scores,
structure_levels, descriptors, appearance_notes, nose_notes, palate_notes,
structure_notes, finish_notes, typicity_notes, overall_notes, conclusion.

scores.subscores must contain all seven integer subscores within their declared
ranges. Do not compute a total; it is derived from the subscores.

Output ONLY the JSON object.`

const repairTemplate = `Your previous output did not satisfy the schema contract.

PREVIOUS OUTPUT:
%s

PROBLEMS:
%s

Return the corrected JSON object and nothing else: no explanation, no markdown
fences, no prose. Every problem listed above must be fixed. Do not change any
value that was not flagged.`

// Build renders the initial extraction prompt for a capture. Hints are
// rendered in sorted key order so the output is byte-stable.
func Build(capture *model.RawCapture, hints model.Hints) (Prompt, error) {
	contract, err := schema.Describe()
	if err != nil {
		return Prompt{}, eris.Wrap(err, "prompt: describe contract")
	}

	return Prompt{
		System: systemText,
		User: fmt.Sprintf(userTemplate,
			capture.RawText,
			hintsSection(hints),
			Version,
			contract,
		),
	}, nil
}

// BuildRepair renders a follow-up prompt carrying the previous response and
// its exact failures, either a parse diagnostic or the itemized violations.
func BuildRepair(prev Prompt, priorResponse string, parseDiag string, violations []model.Violation) Prompt {
	var problems []string
	if parseDiag != "" {
		problems = append(problems, "- invalid JSON: "+parseDiag)
	}
	for _, v := range violations {
		problems = append(problems, fmt.Sprintf("- %s (%s): %s", v.Field, v.Kind, v.Message))
	}

	return Prompt{
		System: prev.System,
		User: fmt.Sprintf(repairTemplate,
			priorResponse,
			strings.Join(problems, "\n"),
		),
	}
}

func hintsSection(hints model.Hints) string {
	if len(hints) == 0 {
		return ""
	}
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("VERIFIED HINTS (trust these over the raw text):\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, hints[k])
	}
	b.WriteString("\n")
	return b.String()
}
