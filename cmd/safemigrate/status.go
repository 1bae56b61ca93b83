package main

import (
	"context"
	"fmt"

	"github.com/loykin/safemigrate/internal/constants"
	"github.com/loykin/safemigrate/pkg/status"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	statusHistory      bool
	statusHistoryAll   bool
	statusHistoryLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show completed and pending migrations, and optionally history",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		if _, err := s.doc.SetupLogging(); err != nil {
			return err
		}

		reg, err := s.loadRegistry(false)
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
		info, err := status.FromStore(ctx, st, reg)
		if err != nil {
			return err
		}
		if statusHistory {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), info.FormatHumanWithLimit(true, statusHistoryLimit, statusHistoryAll))
		} else {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), info.FormatHuman(false))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusHistory, "history", false, "show completed migrations with timings")
	statusCmd.Flags().BoolVar(&statusHistoryAll, "history-all", false, "when used with --history, show all history entries (newest first)")
	statusCmd.Flags().IntVar(&statusHistoryLimit, "history-limit", constants.DefaultHistoryLimit, "when used with --history, show up to N latest entries")
}
