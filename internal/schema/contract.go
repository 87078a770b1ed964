// Package schema defines the canonical structured-note contract: the closed
// enum sets, subscore ranges, and required fields a conversion must satisfy.
// It exposes a machine-checkable description for prompt embedding and a pure
// validator used by the conversion loop. Immutable at runtime.
package schema

import (
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/scoring"
)

// Enums maps dotted field paths to their closed value sets. Values outside
// these sets are validation violations, never coerced.
var Enums = map[string][]string{
	"wine.color":                {"red", "white", "rose", "orange", "sparkling", "fortified", "other"},
	"wine.style":                {"still", "sparkling", "fortified", "other"},
	"wine.sweetness":            {"bone_dry", "dry", "off_dry", "medium", "sweet", "very_sweet"},
	"context.decant":            {"none", "splash", "short", "long"},
	"provenance.bottle_condition": {"pristine", "suspected_heat", "compromised", "unknown"},
	"confidence.level":          {"low", "medium", "high"},
	"readiness.drink_or_hold":   {"drink", "hold", "unsure"},
	"structure_levels.acidity":  {"low", "med_minus", "medium", "med_plus", "high", "n/a"},
	"structure_levels.tannin":   {"low", "med_minus", "medium", "med_plus", "high", "n/a"},
	"structure_levels.body":     {"light", "med_minus", "medium", "med_plus", "full"},
	"structure_levels.alcohol":  {"low", "medium", "high"},
	"structure_levels.sweetness": {"dry", "off_dry", "medium", "sweet"},
	"structure_levels.intensity": {"low", "medium", "pronounced"},
	"structure_levels.oak":      {"none", "subtle", "integrated", "dominant"},
}

// RequiredSections are the top-level objects every payload must carry.
var RequiredSections = []string{"wine", "scores", "confidence", "readiness"}

// description is the machine-checkable contract rendered into prompts.
type description struct {
	Required  []string                 `yaml:"required_sections"`
	Subscores []subscoreDesc           `yaml:"subscores"`
	Bands     []bandDesc               `yaml:"quality_bands"`
	Enums     []enumDesc               `yaml:"enums"`
	Policy    []string                 `yaml:"extraction_policy"`
}

type subscoreDesc struct {
	Field string `yaml:"field"`
	Min   int    `yaml:"min"`
	Max   int    `yaml:"max"`
}

type bandDesc struct {
	Band     string `yaml:"band"`
	MinTotal int    `yaml:"min_total"`
}

type enumDesc struct {
	Field  string   `yaml:"field"`
	Values []string `yaml:"values"`
}

// subscoreOrder fixes the rendering order of subscore descriptions so the
// description is byte-identical across calls.
var subscoreOrder = []string{
	"appearance", "nose", "palate", "structure_balance",
	"finish", "typicity_complexity", "overall_judgment",
}

// enumOrder fixes the rendering order of enum descriptions.
var enumOrder = []string{
	"wine.color", "wine.style", "wine.sweetness",
	"context.decant", "provenance.bottle_condition",
	"confidence.level", "readiness.drink_or_hold",
	"structure_levels.acidity", "structure_levels.tannin",
	"structure_levels.body", "structure_levels.alcohol",
	"structure_levels.sweetness", "structure_levels.intensity",
	"structure_levels.oak",
}

// Describe renders the contract as YAML for embedding into prompts. Output is
// deterministic: field order is fixed, so identical contract versions always
// produce byte-identical text.
func Describe() (string, error) {
	d := description{
		Required: RequiredSections,
		Policy: []string{
			"never invent a producer, vintage, region, or any fact not evidenced in the input text",
			"use null for unknown values and flag them in confidence.uncertainty_notes",
			"use empty strings for text fields with no information",
			"preserve the taster's own wording in the notes fields",
		},
	}
	for _, key := range subscoreOrder {
		r := scoring.Ranges[key]
		d.Subscores = append(d.Subscores, subscoreDesc{Field: key, Min: r.Min, Max: r.Max})
	}
	d.Bands = []bandDesc{
		{Band: string(model.BandOutstanding), MinTotal: 95},
		{Band: string(model.BandVeryGood), MinTotal: 90},
		{Band: string(model.BandGood), MinTotal: 80},
		{Band: string(model.BandAcceptable), MinTotal: 70},
		{Band: string(model.BandPoor), MinTotal: 0},
	}
	for _, key := range enumOrder {
		d.Enums = append(d.Enums, enumDesc{Field: key, Values: Enums[key]})
	}

	out, err := yaml.Marshal(d)
	if err != nil {
		return "", eris.Wrap(err, "schema: marshal description")
	}
	return string(out), nil
}
