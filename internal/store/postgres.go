package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/db"
	"github.com/cellarworks/tasting-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS captures (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	raw_text   TEXT NOT NULL,
	tags       JSONB,
	converted  BOOLEAN NOT NULL DEFAULT false,
	run_id     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversion_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	capture_id TEXT NOT NULL REFERENCES captures(id),
	outcome    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	capture_id TEXT,
	status     TEXT NOT NULL,
	band       TEXT,
	total      INTEGER,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_captures_converted ON captures(converted);
CREATE INDEX IF NOT EXISTS idx_runs_capture_id ON conversion_runs(capture_id);
CREATE INDEX IF NOT EXISTS idx_runs_outcome ON conversion_runs(outcome);
CREATE INDEX IF NOT EXISTS idx_notes_capture_id ON notes(capture_id);
CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(status);
CREATE INDEX IF NOT EXISTS idx_notes_band ON notes(band);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateCapture(ctx context.Context, rawText string, tags []string) (*model.RawCapture, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal tags")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO captures (id, raw_text, tags, converted, created_at, updated_at) VALUES ($1, $2, $3, false, $4, $5)`,
		id, rawText, string(tagsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert capture")
	}

	return &model.RawCapture{
		ID:        id,
		RawText:   rawText,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ImportCaptures bulk-inserts raw texts via the COPY protocol.
func (s *PostgresStore) ImportCaptures(ctx context.Context, rawTexts []string, tags []string) (int64, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal tags")
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(rawTexts))
	for _, text := range rawTexts {
		if text == "" {
			continue
		}
		rows = append(rows, []any{uuid.New().String(), text, string(tagsJSON), false, now, now})
	}

	return db.CopyFrom(ctx, s.pool, "captures",
		[]string{"id", "raw_text", "tags", "converted", "created_at", "updated_at"}, rows)
}

func (s *PostgresStore) GetCapture(ctx context.Context, id string) (*model.RawCapture, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, raw_text, tags, converted, run_id, created_at, updated_at FROM captures WHERE id = $1`,
		id,
	)
	return scanPgCapture(row)
}

func (s *PostgresStore) ListCaptures(ctx context.Context, onlyPending bool, limit int) ([]model.RawCapture, error) {
	query := `SELECT id, raw_text, tags, converted, run_id, created_at, updated_at FROM captures`
	if onlyPending {
		query += ` WHERE converted = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list captures")
	}
	defer rows.Close()

	var captures []model.RawCapture
	for rows.Next() {
		c, err := scanPgCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, *c)
	}
	return captures, eris.Wrap(rows.Err(), "postgres: list captures iterate")
}

func (s *PostgresStore) MarkConverted(ctx context.Context, captureID, runID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE captures SET converted = true, run_id = $1, updated_at = $2 WHERE id = $3`,
		runID, time.Now().UTC(), captureID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark capture converted %s", captureID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "capture %s", captureID)
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.ConversionRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversion_runs (id, capture_id, outcome, provider, model, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.CaptureID, string(run.Outcome), run.Provider, run.Model, string(payload), run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.ConversionRun, error) {
	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM conversion_runs WHERE id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}

	var run model.ConversionRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ConversionRun, error) {
	query := `SELECT payload FROM conversion_runs WHERE 1=1`
	var args []any

	if filter.CaptureID != "" {
		args = append(args, filter.CaptureID)
		query += ` AND capture_id = $` + strconv.Itoa(len(args))
	}
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		query += ` AND outcome = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ConversionRun
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var run model.ConversionRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveNote(ctx context.Context, note *model.NoteCandidate) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal note")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO notes (id, capture_id, status, band, total, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			band = EXCLUDED.band,
			total = EXCLUDED.total,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		note.ID, note.CaptureID, string(note.Status), string(note.Scores.QualityBand),
		note.Scores.Total, string(payload), note.CreatedAt, note.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: save note")
}

func (s *PostgresStore) GetNote(ctx context.Context, id string) (*model.NoteCandidate, error) {
	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM notes WHERE id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get note")
	}

	var note model.NoteCandidate
	if err := json.Unmarshal([]byte(payload), &note); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal note")
	}
	return &note, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, filter NoteFilter) ([]model.NoteCandidate, error) {
	query := `SELECT payload FROM notes WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Band != "" {
		args = append(args, string(filter.Band))
		query += ` AND band = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notes")
	}
	defer rows.Close()

	var notes []model.NoteCandidate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		var note model.NoteCandidate
		if err := json.Unmarshal([]byte(payload), &note); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal note")
		}
		notes = append(notes, note)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: list notes iterate")
}

func (s *PostgresStore) UpdateNoteStatus(ctx context.Context, id string, status model.NoteStatus) error {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return err
	}
	note.Status = status
	note.UpdatedAt = time.Now().UTC()
	return s.SaveNote(ctx, note)
}

func scanPgCapture(row pgx.Row) (*model.RawCapture, error) {
	var c model.RawCapture
	var tagsJSON *string
	var runID *string

	err := row.Scan(&c.ID, &c.RawText, &tagsJSON, &c.Converted, &runID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan capture")
	}

	if tagsJSON != nil && *tagsJSON != "" {
		if err := json.Unmarshal([]byte(*tagsJSON), &c.Tags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal tags")
		}
	}
	if runID != nil {
		c.RunID = *runID
	}
	return &c, nil
}

