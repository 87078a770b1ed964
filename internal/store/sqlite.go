package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cellarworks/tasting-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS captures (
	id         TEXT PRIMARY KEY,
	raw_text   TEXT NOT NULL,
	tags       TEXT,
	converted  INTEGER NOT NULL DEFAULT 0,
	run_id     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversion_runs (
	id         TEXT PRIMARY KEY,
	capture_id TEXT NOT NULL REFERENCES captures(id),
	outcome    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	capture_id TEXT,
	status     TEXT NOT NULL,
	band       TEXT,
	total      INTEGER,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_captures_converted ON captures(converted);
CREATE INDEX IF NOT EXISTS idx_runs_capture_id ON conversion_runs(capture_id);
CREATE INDEX IF NOT EXISTS idx_runs_outcome ON conversion_runs(outcome);
CREATE INDEX IF NOT EXISTS idx_notes_capture_id ON notes(capture_id);
CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(status);
CREATE INDEX IF NOT EXISTS idx_notes_band ON notes(band);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCapture(ctx context.Context, rawText string, tags []string) (*model.RawCapture, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal tags")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO captures (id, raw_text, tags, converted, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		id, rawText, string(tagsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert capture")
	}

	return &model.RawCapture{
		ID:        id,
		RawText:   rawText,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ImportCaptures inserts a batch of raw texts in one transaction, all
// sharing the same tags. Blank texts are skipped.
func (s *SQLiteStore) ImportCaptures(ctx context.Context, rawTexts []string, tags []string) (int64, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal tags")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var n int64
	for _, text := range rawTexts {
		if text == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO captures (id, raw_text, tags, converted, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
			uuid.New().String(), text, string(tagsJSON), now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: import capture")
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

func (s *SQLiteStore) GetCapture(ctx context.Context, id string) (*model.RawCapture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, raw_text, tags, converted, run_id, created_at, updated_at FROM captures WHERE id = ?`,
		id,
	)
	return scanCapture(row)
}

func (s *SQLiteStore) ListCaptures(ctx context.Context, onlyPending bool, limit int) ([]model.RawCapture, error) {
	query := `SELECT id, raw_text, tags, converted, run_id, created_at, updated_at FROM captures`
	var args []any
	if onlyPending {
		query += ` WHERE converted = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list captures")
	}
	defer rows.Close()

	var captures []model.RawCapture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, *c)
	}
	return captures, eris.Wrap(rows.Err(), "sqlite: list captures iterate")
}

func (s *SQLiteStore) MarkConverted(ctx context.Context, captureID, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE captures SET converted = 1, run_id = ?, updated_at = ? WHERE id = ?`,
		runID, time.Now().UTC(), captureID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark capture converted %s", captureID)
	}
	return checkRowsAffected(res, "capture", captureID)
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.ConversionRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversion_runs (id, capture_id, outcome, provider, model, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CaptureID, string(run.Outcome), run.Provider, run.Model, string(payload), run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.ConversionRun, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM conversion_runs WHERE id = ?`, id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}

	var run model.ConversionRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run")
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ConversionRun, error) {
	query := `SELECT payload FROM conversion_runs WHERE 1=1`
	var args []any

	if filter.CaptureID != "" {
		query += ` AND capture_id = ?`
		args = append(args, filter.CaptureID)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ConversionRun
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var run model.ConversionRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveNote(ctx context.Context, note *model.NoteCandidate) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal note")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, capture_id, status, band, total, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			band = excluded.band,
			total = excluded.total,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		note.ID, note.CaptureID, string(note.Status), string(note.Scores.QualityBand),
		note.Scores.Total, string(payload), note.CreatedAt, note.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: save note")
}

func (s *SQLiteStore) GetNote(ctx context.Context, id string) (*model.NoteCandidate, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM notes WHERE id = ?`, id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get note")
	}

	var note model.NoteCandidate
	if err := json.Unmarshal([]byte(payload), &note); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal note")
	}
	return &note, nil
}

func (s *SQLiteStore) ListNotes(ctx context.Context, filter NoteFilter) ([]model.NoteCandidate, error) {
	query := `SELECT payload FROM notes WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Band != "" {
		query += ` AND band = ?`
		args = append(args, string(filter.Band))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notes")
	}
	defer rows.Close()

	var notes []model.NoteCandidate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		var note model.NoteCandidate
		if err := json.Unmarshal([]byte(payload), &note); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal note")
		}
		notes = append(notes, note)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: list notes iterate")
}

func (s *SQLiteStore) UpdateNoteStatus(ctx context.Context, id string, status model.NoteStatus) error {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return err
	}
	note.Status = status
	note.UpdatedAt = time.Now().UTC()
	return s.SaveNote(ctx, note)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCapture(row scannable) (*model.RawCapture, error) {
	var c model.RawCapture
	var tagsJSON sql.NullString
	var runID sql.NullString

	err := row.Scan(&c.ID, &c.RawText, &tagsJSON, &c.Converted, &runID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan capture")
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &c.Tags); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal tags")
		}
	}
	if runID.Valid {
		c.RunID = runID.String
	}
	return &c, nil
}
