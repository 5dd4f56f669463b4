package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/state"
)

var (
	searchTherapistID string
	searchDirectoryID string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search directories for one therapist's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.GetTherapist(ctx, searchTherapistID)
		if err != nil {
			return err
		}
		if t == nil {
			return eris.Errorf("therapist %s not found", searchTherapistID)
		}

		var dirs []model.Directory
		if searchDirectoryID != "" {
			d, err := st.GetDirectory(ctx, searchDirectoryID)
			if err != nil {
				return err
			}
			if d == nil {
				return eris.Errorf("directory %s not found", searchDirectoryID)
			}
			dirs = []model.Directory{*d}
		} else {
			dirs, err = st.ListDirectories(ctx)
			if err != nil {
				return err
			}
		}
		dirs = applySiteOverrides(dirs)

		orch := newOrchestrator()
		th := thresholds()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		for _, dir := range dirs {
			rec, err := st.GetProfileRecord(ctx, t.ID, dir.ID)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if rec == nil {
				rec = state.NewRecord(t.ID, dir.ID, now)
			}

			if err := state.Transition(rec, model.StatusSearching, "search requested", now); err != nil {
				var ite *state.InvalidTransitionError
				if errors.As(err, &ite) {
					zap.L().Info("skipping directory, record not searchable",
						zap.String("directory", dir.Name),
						zap.String("status", string(rec.Status)),
					)
					continue
				}
				return err
			}

			res := orch.SearchOne(ctx, t.Identity(), dir)

			if err := state.ApplyResult(rec, res, th, time.Now().UTC()); err != nil {
				return err
			}
			if err := st.UpsertProfileRecord(ctx, rec); err != nil {
				return err
			}

			if err := enc.Encode(map[string]any{
				"directory":  dir.Name,
				"outcome":    res.Outcome,
				"status":     rec.Status,
				"attempts":   res.Attempts,
				"candidates": res.Candidates,
			}); err != nil {
				return eris.Wrap(err, "encode result")
			}
		}

		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchTherapistID, "therapist", "", "therapist ID (required)")
	searchCmd.Flags().StringVar(&searchDirectoryID, "directory", "", "directory ID (default: all directories)")
	_ = searchCmd.MarkFlagRequired("therapist")
	rootCmd.AddCommand(searchCmd)
}
