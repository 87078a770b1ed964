package model

// WineColor classifies the wine by color/category.
type WineColor string

const (
	ColorRed       WineColor = "red"
	ColorWhite     WineColor = "white"
	ColorRose      WineColor = "rose"
	ColorOrange    WineColor = "orange"
	ColorSparkling WineColor = "sparkling"
	ColorFortified WineColor = "fortified"
	ColorOther     WineColor = "other"
)

// WineStyle classifies the production style.
type WineStyle string

const (
	StyleStill     WineStyle = "still"
	StyleSparkling WineStyle = "sparkling"
	StyleFortified WineStyle = "fortified"
	StyleOther     WineStyle = "other"
)

// Sweetness is the stated sweetness of the wine itself.
type Sweetness string

const (
	SweetnessBoneDry   Sweetness = "bone_dry"
	SweetnessDry       Sweetness = "dry"
	SweetnessOffDry    Sweetness = "off_dry"
	SweetnessMedium    Sweetness = "medium"
	SweetnessSweet     Sweetness = "sweet"
	SweetnessVerySweet Sweetness = "very_sweet"
)

// StructureLevel grades acidity and tannin on the five-step scale.
type StructureLevel string

const (
	StructureLow      StructureLevel = "low"
	StructureMedMinus StructureLevel = "med_minus"
	StructureMedium   StructureLevel = "medium"
	StructureMedPlus  StructureLevel = "med_plus"
	StructureHigh     StructureLevel = "high"
	StructureNA       StructureLevel = "n/a"
)

// BodyLevel grades perceived body.
type BodyLevel string

const (
	BodyLight    BodyLevel = "light"
	BodyMedMinus BodyLevel = "med_minus"
	BodyMedium   BodyLevel = "medium"
	BodyMedPlus  BodyLevel = "med_plus"
	BodyFull     BodyLevel = "full"
)

// AlcoholLevel grades perceived alcohol.
type AlcoholLevel string

const (
	AlcoholLow    AlcoholLevel = "low"
	AlcoholMedium AlcoholLevel = "medium"
	AlcoholHigh   AlcoholLevel = "high"
)

// SweetnessLevel grades sweetness as perceived on the palate.
type SweetnessLevel string

const (
	PalateDry    SweetnessLevel = "dry"
	PalateOffDry SweetnessLevel = "off_dry"
	PalateMedium SweetnessLevel = "medium"
	PalateSweet  SweetnessLevel = "sweet"
)

// IntensityLevel grades nose/palate intensity.
type IntensityLevel string

const (
	IntensityLow        IntensityLevel = "low"
	IntensityMedium     IntensityLevel = "medium"
	IntensityPronounced IntensityLevel = "pronounced"
)

// OakLevel grades oak integration.
type OakLevel string

const (
	OakNone       OakLevel = "none"
	OakSubtle     OakLevel = "subtle"
	OakIntegrated OakLevel = "integrated"
	OakDominant   OakLevel = "dominant"
)

// DecantLevel describes how the wine was decanted before tasting.
type DecantLevel string

const (
	DecantNone   DecantLevel = "none"
	DecantSplash DecantLevel = "splash"
	DecantShort  DecantLevel = "short"
	DecantLong   DecantLevel = "long"
)

// BottleCondition describes bottle provenance at opening.
type BottleCondition string

const (
	BottlePristine      BottleCondition = "pristine"
	BottleSuspectedHeat BottleCondition = "suspected_heat"
	BottleCompromised   BottleCondition = "compromised"
	BottleUnknown       BottleCondition = "unknown"
)

// ConfidenceLevel is the extraction confidence attached to a candidate.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// DrinkOrHold is the readiness recommendation.
type DrinkOrHold string

const (
	ReadinessDrink  DrinkOrHold = "drink"
	ReadinessHold   DrinkOrHold = "hold"
	ReadinessUnsure DrinkOrHold = "unsure"
)

// QualityBand is the categorical label derived from the total score.
type QualityBand string

const (
	BandPoor        QualityBand = "poor"        // 0-69
	BandAcceptable  QualityBand = "acceptable"  // 70-79
	BandGood        QualityBand = "good"        // 80-89
	BandVeryGood    QualityBand = "very_good"   // 90-94
	BandOutstanding QualityBand = "outstanding" // 95-100
)

// NoteStatus is the lifecycle state of a note candidate.
type NoteStatus string

const (
	NoteStatusDraft     NoteStatus = "draft"
	NoteStatusPublished NoteStatus = "published"
)

// NoteSource records how a note came to exist.
type NoteSource string

const (
	NoteSourceManual    NoteSource = "manual"
	NoteSourceConverted NoteSource = "converted"
)
