package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarworks/tasting-cli/internal/convert"
	"github.com/cellarworks/tasting-cli/internal/cost"
	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/provider"
	"github.com/cellarworks/tasting-cli/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	orch := convert.NewOrchestrator(provider.NewNull(), st, cost.NewCalculator(cost.DefaultRates()), convert.Options{})
	return newRouter(st, orch), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeCaptureLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/captures", map[string]any{
		"raw_text": "Garnet core, dried cherry, dusty tannin, medium finish.",
		"tags":     []string{"rioja"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.RawCapture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"rioja"}, created.Tags)
	assert.False(t, created.Converted)

	rec = doJSON(t, h, http.MethodGet, "/captures/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/captures?pending=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.RawCapture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestServeCreateCaptureValidation(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/captures", map[string]any{"raw_text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/captures", bytes.NewBufferString("{not json"))
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestServeCaptureNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/captures/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeConvertWithoutProvider(t *testing.T) {
	h, st := newTestServer(t)

	capture, err := st.CreateCapture(context.Background(), "Pale straw, green apple, bracing acidity.", nil)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/captures/"+capture.ID+"/convert", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary model.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, model.OutcomeProviderUnavailable, summary.Outcome)
	assert.Equal(t, capture.ID, summary.CaptureID)
	require.NotNil(t, summary.Candidate)
	assert.Equal(t, model.ConfidenceLow, summary.Candidate.Confidence.Level)

	// The run is persisted and retrievable.
	rec = doJSON(t, h, http.MethodGet, "/runs/"+summary.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/runs?capture="+capture.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.ConversionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
}

func TestServeConvertUnknownCapture(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/captures/"+uuid.New().String()+"/convert", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeConvertWithHints(t *testing.T) {
	h, st := newTestServer(t)

	capture, err := st.CreateCapture(context.Background(), "Inky purple, blueberry compote, plush.", nil)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/captures/"+capture.ID+"/convert", map[string]any{
		"hints": map[string]string{"producer": "Mollydooker"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeNotesLifecycle(t *testing.T) {
	h, st := newTestServer(t)

	now := time.Now().UTC().Truncate(time.Second)
	note := &model.NoteCandidate{
		ID:        uuid.New().String(),
		Source:    model.NoteSourceConverted,
		Status:    model.NoteStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
		Wine:      model.WineIdentity{Producer: "Weingut Keller", Country: "Germany"},
		Scores: model.ScoreSet{
			Subscores: model.SubScores{
				Appearance: 2, Nose: 11, Palate: 18, StructureBalance: 18,
				Finish: 9, TypicityComplexity: 14, OverallJudgment: 18,
			},
			Total:       90,
			QualityBand: model.BandVeryGood,
		},
	}
	require.NoError(t, st.SaveNote(context.Background(), note))

	rec := doJSON(t, h, http.MethodGet, "/notes?band=very_good", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []model.NoteCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)

	rec = doJSON(t, h, http.MethodPost, "/notes/"+note.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var published model.NoteCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &published))
	assert.Equal(t, model.NoteStatusPublished, published.Status)

	rec = doJSON(t, h, http.MethodGet, "/notes?status=draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServeNoteNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/notes/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/notes/"+uuid.New().String()+"/publish", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeRunNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/runs/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
