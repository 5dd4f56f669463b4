package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/discovery"
	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/state"
	"github.com/caretrack/directory-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		api := &apiServer{st: st, orch: newOrchestrator()}

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
		r.Post("/api/search", api.handleSearch)
		r.Post("/api/batch", api.handleBatch)
		r.Post("/api/confirm", api.handleConfirm)
		r.Get("/api/coverage", api.handleCoverage)
		r.Get("/api/therapists", api.handleTherapists)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	st   store.Store
	orch *discovery.Orchestrator
}

func (a *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TherapistID string `json:"therapist_id"`
		DirectoryID string `json:"directory_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TherapistID == "" || req.DirectoryID == "" {
		writeError(w, http.StatusBadRequest, "therapist_id and directory_id are required")
		return
	}

	ctx := r.Context()
	t, err := a.st.GetTherapist(ctx, req.TherapistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "therapist not found")
		return
	}
	dir, err := a.st.GetDirectory(ctx, req.DirectoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dir == nil {
		writeError(w, http.StatusNotFound, "directory not found")
		return
	}
	dirs := applySiteOverrides([]model.Directory{*dir})

	rec, err := a.st.GetProfileRecord(ctx, t.ID, dir.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now().UTC()
	if rec == nil {
		rec = state.NewRecord(t.ID, dir.ID, now)
	}
	if err := state.Transition(rec, model.StatusSearching, "api search", now); err != nil {
		var ite *state.InvalidTransitionError
		if errors.As(err, &ite) {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("record is %s and cannot be searched", rec.Status))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := a.orch.SearchOne(ctx, t.Identity(), dirs[0])

	if err := state.ApplyResult(rec, res, thresholds(), time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := a.st.UpsertProfileRecord(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":    res.Outcome,
		"status":     rec.Status,
		"attempts":   res.Attempts,
		"candidates": res.Candidates,
	})
}

func (a *apiServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BudgetSecs int `json:"budget_secs"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	therapists, err := a.st.ListTherapists(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dirs, err := a.st.ListDirectories(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dirs = applySiteOverrides(dirs)

	reqs := make([]discovery.Request, 0, len(therapists))
	for _, t := range therapists {
		reqs = append(reqs, discovery.Request{TherapistID: t.ID, Identity: t.Identity()})
	}

	// The batch runs detached from the request; results land in the store.
	go func() {
		bg := context.Background()
		results := a.orch.SearchBatch(bg, reqs, dirs, time.Duration(req.BudgetSecs)*time.Second)
		th := thresholds()
		for key, res := range results {
			rec, err := a.st.GetProfileRecord(bg, key.TherapistID, key.DirectoryID)
			if err != nil {
				zap.L().Error("batch record load failed", zap.Error(err))
				continue
			}
			now := time.Now().UTC()
			if rec == nil {
				rec = state.NewRecord(key.TherapistID, key.DirectoryID, now)
			}
			if err := state.Transition(rec, model.StatusSearching, "api batch", now); err != nil {
				continue
			}
			if err := state.ApplyResult(rec, res, th, time.Now().UTC()); err != nil {
				continue
			}
			if err := a.st.UpsertProfileRecord(bg, rec); err != nil {
				zap.L().Error("batch record save failed", zap.Error(err))
			}
		}
		zap.L().Info("api batch complete", zap.Int("pairs", len(results)))
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"therapists":  len(therapists),
		"directories": len(dirs),
	})
}

func (a *apiServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TherapistID string   `json:"therapist_id"`
		DirectoryID string   `json:"directory_id"`
		Status      string   `json:"status"`
		URL         string   `json:"url"`
		Score       *float64 `json:"score"`
		Note        string   `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	rec, err := a.st.GetProfileRecord(ctx, req.TherapistID, req.DirectoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "profile record not found")
		return
	}

	target := model.ProfileStatus(req.Status)
	now := time.Now().UTC()
	if target == model.StatusWithdrawn {
		err = state.Withdraw(rec, req.Note, now)
	} else {
		err = state.Confirm(rec, target, req.URL, req.Score, now)
	}
	if err != nil {
		var ite *state.InvalidTransitionError
		if errors.As(err, &ite) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.st.UpsertProfileRecord(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *apiServer) handleCoverage(w http.ResponseWriter, r *http.Request) {
	cells, err := a.st.CoverageMatrix(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cells)
}

func (a *apiServer) handleTherapists(w http.ResponseWriter, r *http.Request) {
	therapists, err := a.st.ListTherapists(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, therapists)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
