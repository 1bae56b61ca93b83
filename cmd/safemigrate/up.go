package main

import (
	"context"
	"fmt"
	"io"

	"github.com/loykin/safemigrate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending SQL migrations, taking a backup first when configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		logger, err := s.doc.SetupLogging()
		if err != nil {
			return err
		}

		reg, err := s.loadRegistry(true)
		if err != nil {
			return err
		}
		st, err := s.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		report, err := safemigrate.NewRunner(safemigrate.WithLogger(logger)).Run(ctx, st, reg, s.policy())
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

func printReport(w io.Writer, r *safemigrate.Report) {
	_, _ = fmt.Fprintf(w, "run: %s\nstate: %s\napplied: %v\nskipped: %v\n", r.RunID, r.State, r.Applied, r.Skipped)
	if r.BackupPath != "" {
		_, _ = fmt.Fprintf(w, "backup: %s (kept: %t)\n", r.BackupPath, r.BackupKept)
	}
	if r.DiscardErr != nil {
		_, _ = fmt.Fprintf(w, "warning: backup not removed: %v\n", r.DiscardErr)
	}
}
