package model

import "time"

// WineIdentity holds the identification fields of the tasted wine. Fields the
// source text does not evidence stay empty/nil; the extraction policy forbids
// guessing them.
type WineIdentity struct {
	Producer       string    `json:"producer"`
	Cuvee          string    `json:"cuvee"`
	Vintage        *int      `json:"vintage,omitempty"`
	Country        string    `json:"country"`
	Region         string    `json:"region"`
	Subregion      string    `json:"subregion"`
	Appellation    string    `json:"appellation"`
	Vineyard       string    `json:"vineyard"`
	Grapes         []string  `json:"grapes,omitempty"`
	Color          WineColor `json:"color,omitempty"`
	Style          WineStyle `json:"style,omitempty"`
	Sweetness      Sweetness `json:"sweetness,omitempty"`
	AlcoholPercent *float64  `json:"alcohol_percent,omitempty"`
}

// TastingContext describes the circumstances of the tasting.
type TastingContext struct {
	TastingDate   string      `json:"tasting_date,omitempty"` // YYYY-MM-DD
	Location      string      `json:"location"`
	Glassware     string      `json:"glassware"`
	Decant        DecantLevel `json:"decant,omitempty"`
	DecantMinutes *int        `json:"decant_minutes,omitempty"`
	Companions    string      `json:"companions"`
	Occasion      string      `json:"occasion"`
	FoodPairing   string      `json:"food_pairing"`
}

// Provenance records bottle condition and storage history.
type Provenance struct {
	BottleCondition BottleCondition `json:"bottle_condition,omitempty"`
	StorageNotes    string          `json:"storage_notes"`
}

// Confidence is the extraction confidence metadata on a candidate.
type Confidence struct {
	Level            ConfidenceLevel `json:"level"`
	UncertaintyNotes string          `json:"uncertainty_notes"`
}

// Faults records suspected wine faults.
type Faults struct {
	Present   bool     `json:"present"`
	Suspected []string `json:"suspected,omitempty"` // TCA, oxidation, VA, Brett
	Notes     string   `json:"notes"`
}

// Readiness holds the drink/hold recommendation and aging window.
type Readiness struct {
	DrinkOrHold     DrinkOrHold `json:"drink_or_hold"`
	WindowStartYear *int        `json:"window_start_year,omitempty"`
	WindowEndYear   *int        `json:"window_end_year,omitempty"`
	Notes           string      `json:"notes"`
}

// SubScores are the seven bounded components of the 100-point system.
// Ranges: appearance 0-2, nose 0-12, palate 0-20, structure_balance 0-20,
// finish 0-10, typicity_complexity 0-16, overall_judgment 0-20.
type SubScores struct {
	Appearance         int `json:"appearance"`
	Nose               int `json:"nose"`
	Palate             int `json:"palate"`
	StructureBalance   int `json:"structure_balance"`
	Finish             int `json:"finish"`
	TypicityComplexity int `json:"typicity_complexity"`
	OverallJudgment    int `json:"overall_judgment"`
}

// ScoreSet embeds the subscores plus the computed total and quality band.
// Total is always recomputed from the subscores before a candidate is
// returned; a provider-supplied total is never trusted.
type ScoreSet struct {
	Subscores         SubScores   `json:"subscores"`
	Total             int         `json:"total"`
	QualityBand       QualityBand `json:"quality_band,omitempty"`
	PersonalEnjoyment *int        `json:"personal_enjoyment,omitempty"` // 0-10, outside the total
	ValueForMoney     *int        `json:"value_for_money,omitempty"`    // 0-10, outside the total
}

// StructureLevels is the categorical structure assessment.
type StructureLevels struct {
	Acidity   StructureLevel `json:"acidity,omitempty"`
	Tannin    StructureLevel `json:"tannin,omitempty"`
	Body      BodyLevel      `json:"body,omitempty"`
	Alcohol   AlcoholLevel   `json:"alcohol,omitempty"`
	Sweetness SweetnessLevel `json:"sweetness,omitempty"`
	Intensity IntensityLevel `json:"intensity,omitempty"`
	Oak       OakLevel       `json:"oak,omitempty"`
}

// Descriptors groups aroma and flavor descriptors by origin.
type Descriptors struct {
	PrimaryFruit []string `json:"primary_fruit,omitempty"`
	Secondary    []string `json:"secondary,omitempty"`
	Tertiary     []string `json:"tertiary,omitempty"`
	NonFruit     []string `json:"non_fruit,omitempty"`
	Texture      []string `json:"texture,omitempty"`
}

// NoteCandidate is the schema-conformant output of a conversion, pending
// human review. The pipeline only ever produces new candidates; edits happen
// through the review flow, never in place here.
type NoteCandidate struct {
	ID        string     `json:"id"`
	CaptureID string     `json:"capture_id,omitempty"`
	Source    NoteSource `json:"source"`
	Status    NoteStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Wine            WineIdentity    `json:"wine"`
	Context         TastingContext  `json:"context"`
	Provenance      Provenance      `json:"provenance"`
	Confidence      Confidence      `json:"confidence"`
	Faults          Faults          `json:"faults"`
	Readiness       Readiness       `json:"readiness"`
	Scores          ScoreSet        `json:"scores"`
	StructureLevels StructureLevels `json:"structure_levels"`
	Descriptors     Descriptors     `json:"descriptors"`

	AppearanceNotes string `json:"appearance_notes"`
	NoseNotes       string `json:"nose_notes"`
	PalateNotes     string `json:"palate_notes"`
	StructureNotes  string `json:"structure_notes"`
	FinishNotes     string `json:"finish_notes"`
	TypicityNotes   string `json:"typicity_notes"`
	OverallNotes    string `json:"overall_notes"`
	Conclusion      string `json:"conclusion"`
}

// Placeholder returns an empty low-confidence candidate for a capture, used
// when no provider is configured so the caller always has something to edit.
func Placeholder(captureID string) *NoteCandidate {
	return &NoteCandidate{
		CaptureID: captureID,
		Source:    NoteSourceConverted,
		Status:    NoteStatusDraft,
		Confidence: Confidence{
			Level:            ConfidenceLow,
			UncertaintyNotes: "no provider configured; all fields unknown",
		},
		Readiness: Readiness{DrinkOrHold: ReadinessUnsure},
	}
}
