package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/store"
)

var directoriesCmd = &cobra.Command{
	Use:   "directories",
	Short: "Manage tracked directory sites",
}

var directoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		dirs, err := st.ListDirectories(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tADAPTER\tBASE URL")
		for _, d := range dirs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.AdapterKey, d.BaseURL)
		}
		return w.Flush()
	},
}

var directoriesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the stock directory sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := store.SeedDirectories(ctx, st); err != nil {
			return err
		}

		zap.L().Info("directories seeded")
		return nil
	},
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Print the therapist x directory coverage matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cells, err := st.CoverageMatrix(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THERAPIST\tDIRECTORY\tSTATUS\tURL")
		for _, c := range cells {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.TherapistID, c.DirectoryID, c.Status, c.ProfileURL)
		}
		return w.Flush()
	},
}

func init() {
	directoriesCmd.AddCommand(directoriesListCmd)
	directoriesCmd.AddCommand(directoriesSeedCmd)
	rootCmd.AddCommand(directoriesCmd)
	rootCmd.AddCommand(coverageCmd)
}
