package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/discovery"
	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/state"
)

var batchBudgetSecs int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run discovery for every therapist across every directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		therapists, err := st.ListTherapists(ctx)
		if err != nil {
			return err
		}
		dirs, err := st.ListDirectories(ctx)
		if err != nil {
			return err
		}
		dirs = applySiteOverrides(dirs)

		// The batch crosses every therapist with every directory. Confirmed
		// and withdrawn pairings never enter the record map, so their search
		// results are discarded below.
		reqs := make([]discovery.Request, 0, len(therapists))
		recs := make(map[discovery.PairKey]*model.ProfileRecord)
		now := time.Now().UTC()
		for _, t := range therapists {
			reqs = append(reqs, discovery.Request{TherapistID: t.ID, Identity: t.Identity()})
			for _, d := range dirs {
				rec, err := st.GetProfileRecord(ctx, t.ID, d.ID)
				if err != nil {
					return err
				}
				if rec == nil {
					rec = state.NewRecord(t.ID, d.ID, now)
				}
				if err := state.Transition(rec, model.StatusSearching, "batch search", now); err != nil {
					var ite *state.InvalidTransitionError
					if errors.As(err, &ite) {
						continue
					}
					return err
				}
				recs[discovery.PairKey{TherapistID: t.ID, DirectoryID: d.ID}] = rec
			}
		}

		budget := time.Duration(batchBudgetSecs) * time.Second
		if batchBudgetSecs == 0 {
			budget = time.Duration(cfg.Discovery.BudgetSecs) * time.Second
		}

		orch := newOrchestrator()
		results := orch.SearchBatch(ctx, reqs, dirs, budget)

		th := thresholds()
		applied := 0
		for key, res := range results {
			rec, ok := recs[key]
			if !ok {
				continue
			}
			if err := state.ApplyResult(rec, res, th, time.Now().UTC()); err != nil {
				zap.L().Error("apply result failed",
					zap.String("therapist", key.TherapistID),
					zap.String("directory", key.DirectoryID),
					zap.Error(err),
				)
				continue
			}
			if err := st.UpsertProfileRecord(ctx, rec); err != nil {
				return err
			}
			applied++
		}

		zap.L().Info("batch complete",
			zap.Int("therapists", len(therapists)),
			zap.Int("directories", len(dirs)),
			zap.Int("pairs_searched", len(results)),
			zap.Int("records_updated", applied),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchBudgetSecs, "budget-secs", 0, "overall time budget in seconds (0 = none)")
	rootCmd.AddCommand(batchCmd)
}
