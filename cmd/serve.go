package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarworks/tasting-cli/internal/convert"
	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves captures, conversion, runs, and notes over a JSON HTTP API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		orch := newOrchestrator(st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, orch),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API over the store and orchestrator.
func newRouter(st store.Store, orch *convert.Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/captures", func(r chi.Router) {
		r.Post("/", handleCreateCapture(st))
		r.Get("/", handleListCaptures(st))
		r.Get("/{id}", handleGetCapture(st))
		r.Post("/{id}/convert", handleConvert(orch))
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", handleListRuns(st))
		r.Get("/{id}", handleGetRun(st))
	})

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", handleListNotes(st))
		r.Get("/{id}", handleGetNote(st))
		r.Post("/{id}/publish", handlePublishNote(st))
	})

	return r
}

func handleCreateCapture(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RawText string   `json:"raw_text"`
			Tags    []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RawText == "" {
			writeError(w, http.StatusBadRequest, "raw_text is required")
			return
		}

		capture, err := st.CreateCapture(r.Context(), req.RawText, req.Tags)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, capture)
	}
}

func handleListCaptures(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending := r.URL.Query().Get("pending") == "true"
		limit := queryInt(r, "limit", 50)

		captures, err := st.ListCaptures(r.Context(), pending, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if captures == nil {
			captures = []model.RawCapture{}
		}
		writeJSON(w, http.StatusOK, captures)
	}
}

func handleGetCapture(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		capture, err := st.GetCapture(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, capture)
	}
}

func handleConvert(orch *convert.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Hints model.Hints `json:"hints"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		run, err := orch.Convert(r.Context(), chi.URLParam(r, "id"), req.Hints)
		if err != nil {
			switch {
			case errors.Is(err, convert.ErrInFlight):
				writeError(w, http.StatusConflict, "conversion already in flight")
			case errors.Is(err, store.ErrNotFound):
				writeError(w, http.StatusNotFound, "capture not found")
			default:
				zap.L().Error("conversion failed", zap.Error(err))
				// The run still carries the attempt history for diagnosis.
				if run != nil {
					writeJSON(w, http.StatusBadGateway, run.Summary())
					return
				}
				writeError(w, http.StatusInternalServerError, "conversion failed")
			}
			return
		}
		writeJSON(w, http.StatusOK, run.Summary())
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.RunFilter{
			CaptureID: r.URL.Query().Get("capture"),
			Outcome:   model.RunOutcome(r.URL.Query().Get("outcome")),
			Limit:     queryInt(r, "limit", 50),
		}

		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if runs == nil {
			runs = []model.ConversionRun{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleListNotes(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.NoteFilter{
			Status: model.NoteStatus(r.URL.Query().Get("status")),
			Band:   model.QualityBand(r.URL.Query().Get("band")),
			Limit:  queryInt(r, "limit", 50),
		}

		notes, err := st.ListNotes(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if notes == nil {
			notes = []model.NoteCandidate{}
		}
		writeJSON(w, http.StatusOK, notes)
	}
}

func handleGetNote(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		note, err := st.GetNote(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

func handlePublishNote(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := st.UpdateNoteStatus(r.Context(), id, model.NoteStatusPublished); err != nil {
			writeStoreError(w, err)
			return
		}
		note, err := st.GetNote(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
