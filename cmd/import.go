package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/importer"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a therapist roster from CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := importer.File(ctx, st, importFilePath)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to roster file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
