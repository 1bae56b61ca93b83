package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/safemigrate"
	"github.com/loykin/safemigrate/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database without migrating",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		s, err := loadSettings(v)
		if err != nil {
			return err
		}
		logger, err := s.doc.SetupLogging()
		if err != nil {
			return err
		}

		out, err := s.backupOut(v.GetString("out"))
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
		mgr := safemigrate.NewBackupManager(logger)
		defer func() { _ = mgr.Close() }()
		snap, err := mgr.Snapshot(ctx, st, out, s.pagesPerStep, nil)
		if err != nil {
			return err
		}
		mgr.Keep(snap.Path)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "backup: %s\n", snap.Path)
		return nil
	},
}

// backupOut resolves the snapshot destination: --out, then backup.path, then the
// sqlite file with the default suffix.
func (s *settings) backupOut(flag string) (string, error) {
	if out := strings.TrimSpace(flag); out != "" {
		return out, nil
	}
	if s.backupPath != "" {
		return s.backupPath, nil
	}
	if p := strings.TrimSpace(s.doc.Backup.Path); p != "" {
		return p, nil
	}
	if sq, ok := s.store.DriverConfig.(*safemigrate.SqliteConfig); ok && strings.TrimSpace(sq.Path) != "" {
		return sq.Path + constants.DefaultBackupSuffix, nil
	}
	return "", errors.New("no backup destination: set --out or backup.path")
}
