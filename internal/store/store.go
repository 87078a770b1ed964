// Package store persists captures, conversion runs, and note candidates.
// SQLite is the default backend; Postgres is available for shared setups.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing conversion runs.
type RunFilter struct {
	CaptureID string           `json:"capture_id,omitempty"`
	Outcome   model.RunOutcome `json:"outcome,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Offset    int              `json:"offset,omitempty"`
}

// NoteFilter specifies criteria for listing note candidates.
type NoteFilter struct {
	Status model.NoteStatus  `json:"status,omitempty"`
	Band   model.QualityBand `json:"band,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the conversion pipeline.
type Store interface {
	// Captures
	CreateCapture(ctx context.Context, rawText string, tags []string) (*model.RawCapture, error)
	ImportCaptures(ctx context.Context, rawTexts []string, tags []string) (int64, error)
	GetCapture(ctx context.Context, id string) (*model.RawCapture, error)
	ListCaptures(ctx context.Context, onlyPending bool, limit int) ([]model.RawCapture, error)
	MarkConverted(ctx context.Context, captureID, runID string) error

	// Conversion runs
	SaveRun(ctx context.Context, run *model.ConversionRun) error
	GetRun(ctx context.Context, id string) (*model.ConversionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ConversionRun, error)

	// Note candidates
	SaveNote(ctx context.Context, note *model.NoteCandidate) error
	GetNote(ctx context.Context, id string) (*model.NoteCandidate, error)
	ListNotes(ctx context.Context, filter NoteFilter) ([]model.NoteCandidate, error)
	UpdateNoteStatus(ctx context.Context, id string, status model.NoteStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
