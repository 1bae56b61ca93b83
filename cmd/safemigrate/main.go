package main

import (
	"github.com/loykin/safemigrate/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "safemigrate",
	Short:         "Apply ordered SQL migrations with a pre-migration backup",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Defaults
	v := viper.GetViper()
	v.SetDefault("config", "")
	v.SetDefault("db", "")
	v.SetDefault("dir", "")
	v.SetDefault("backup", "")
	v.SetDefault("keep_backup", false)
	v.SetDefault("pages_per_step", 0)
	v.SetDefault("out", "")

	// Environment variables support: SAFEMIGRATE_CONFIG, SAFEMIGRATE_DB, ...
	v.SetEnvPrefix("SAFEMIGRATE")
	v.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	pf.String("config", v.GetString("config"), "path to a config yaml")
	pf.String("db", v.GetString("db"), "sqlite database file (overrides store config)")
	pf.String("dir", v.GetString("dir"), "directory holding <n>_<name>.sql migrations (default "+constants.DefaultMigrationsDir+")")
	upCmd.Flags().String("backup", v.GetString("backup"), "snapshot the database to this path before migrating")
	upCmd.Flags().Bool("keep-backup", v.GetBool("keep_backup"), "keep the snapshot after a successful run")
	pf.Int("pages-per-step", v.GetInt("pages_per_step"), "pages copied per backup step (default all)")
	backupCmd.Flags().String("out", v.GetString("out"), "snapshot destination (default <db>"+constants.DefaultBackupSuffix+")")

	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("db", pf.Lookup("db"))
	_ = v.BindPFlag("dir", pf.Lookup("dir"))
	_ = v.BindPFlag("backup", upCmd.Flags().Lookup("backup"))
	_ = v.BindPFlag("keep_backup", upCmd.Flags().Lookup("keep-backup"))
	_ = v.BindPFlag("pages_per_step", pf.Lookup("pages-per-step"))
	_ = v.BindPFlag("out", backupCmd.Flags().Lookup("out"))

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
