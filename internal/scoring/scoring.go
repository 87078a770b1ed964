// Package scoring computes total scores and quality bands from the seven
// bounded subscores of the 100-point system.
package scoring

import (
	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/model"
)

// ErrSubscoreRange is returned when a subscore is outside its declared bound.
var ErrSubscoreRange = eris.New("subscore out of range")

// MaxTotal is the maximum achievable total: 2+12+20+20+10+16+20.
const MaxTotal = 100

// Range is the inclusive bound for one subscore.
type Range struct {
	Min int
	Max int
}

// Ranges maps each subscore field key to its declared bound. The keys match
// the JSON field names the provider is asked to emit.
var Ranges = map[string]Range{
	"appearance":          {0, 2},
	"nose":                {0, 12},
	"palate":              {0, 20},
	"structure_balance":   {0, 20},
	"finish":              {0, 10},
	"typicity_complexity": {0, 16},
	"overall_judgment":    {0, 20},
}

// components returns the subscores in declaration order, paired with their
// field keys. Order matters only for stable error reporting.
func components(s model.SubScores) []struct {
	Key   string
	Value int
} {
	return []struct {
		Key   string
		Value int
	}{
		{"appearance", s.Appearance},
		{"nose", s.Nose},
		{"palate", s.Palate},
		{"structure_balance", s.StructureBalance},
		{"finish", s.Finish},
		{"typicity_complexity", s.TypicityComplexity},
		{"overall_judgment", s.OverallJudgment},
	}
}

// CheckRange validates a single subscore against its declared bound.
func CheckRange(key string, value int) error {
	r, ok := Ranges[key]
	if !ok {
		return eris.Errorf("unknown subscore: %s", key)
	}
	if value < r.Min || value > r.Max {
		return eris.Wrapf(ErrSubscoreRange, "%s must be between %d and %d, got %d", key, r.Min, r.Max, value)
	}
	return nil
}

// ComputeTotal sums the seven subscores. Every component is bounds-checked
// before summing; the first out-of-range component fails the computation.
func ComputeTotal(s model.SubScores) (int, error) {
	total := 0
	for _, c := range components(s) {
		if err := CheckRange(c.Key, c.Value); err != nil {
			return 0, err
		}
		total += c.Value
	}
	return total, nil
}

// Classify maps a total score to its quality band. Thresholds are inclusive
// lower bounds: exactly 95 is outstanding, exactly 90 is very_good.
func Classify(total int) model.QualityBand {
	switch {
	case total >= 95:
		return model.BandOutstanding
	case total >= 90:
		return model.BandVeryGood
	case total >= 80:
		return model.BandGood
	case total >= 70:
		return model.BandAcceptable
	default:
		return model.BandPoor
	}
}

// Normalize recomputes Total and QualityBand on a ScoreSet from its
// subscores, so a stored total can never disagree with its components.
func Normalize(s *model.ScoreSet) error {
	total, err := ComputeTotal(s.Subscores)
	if err != nil {
		return err
	}
	s.Total = total
	s.QualityBand = Classify(total)
	return nil
}
