package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/state"
)

var (
	confirmTherapistID string
	confirmDirectoryID string
	confirmStatus      string
	confirmURL         string
	confirmScore       float64
	confirmNote        string
)

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Record a human confirmation for a found profile",
	Long: "Moves a found_unconfirmed record into one of the confirmed states " +
		"(active_managed, exists_unmanaged, needs_claiming, therapist_managed), " +
		"or withdraws an already-confirmed one with --status withdrawn.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetProfileRecord(ctx, confirmTherapistID, confirmDirectoryID)
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("no profile record for therapist %s on directory %s",
				confirmTherapistID, confirmDirectoryID)
		}

		target := model.ProfileStatus(confirmStatus)
		now := time.Now().UTC()

		if target == model.StatusWithdrawn {
			if err := state.Withdraw(rec, confirmNote, now); err != nil {
				return err
			}
		} else {
			var score *float64
			if cmd.Flags().Changed("score") {
				score = &confirmScore
			}
			if err := state.Confirm(rec, target, confirmURL, score, now); err != nil {
				return err
			}
		}

		if err := st.UpsertProfileRecord(ctx, rec); err != nil {
			return err
		}

		zap.L().Info("profile record updated",
			zap.String("therapist", confirmTherapistID),
			zap.String("directory", confirmDirectoryID),
			zap.String("status", string(rec.Status)),
			zap.String("url", rec.ProfileURL),
		)
		return nil
	},
}

func init() {
	confirmCmd.Flags().StringVar(&confirmTherapistID, "therapist", "", "therapist ID (required)")
	confirmCmd.Flags().StringVar(&confirmDirectoryID, "directory", "", "directory ID (required)")
	confirmCmd.Flags().StringVar(&confirmStatus, "status", "", "target status (required)")
	confirmCmd.Flags().StringVar(&confirmURL, "url", "", "confirmed profile URL")
	confirmCmd.Flags().Float64Var(&confirmScore, "score", 0, "confidence score override")
	confirmCmd.Flags().StringVar(&confirmNote, "note", "", "transition note")
	_ = confirmCmd.MarkFlagRequired("therapist")
	_ = confirmCmd.MarkFlagRequired("directory")
	_ = confirmCmd.MarkFlagRequired("status")
	rootCmd.AddCommand(confirmCmd)
}
