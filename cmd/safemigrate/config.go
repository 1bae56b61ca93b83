package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/safemigrate"
	"github.com/loykin/safemigrate/internal/constants"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type StoreConfig struct {
	Type      string                     `mapstructure:"type" yaml:"type"`
	TableName string                     `mapstructure:"table_name" yaml:"table_name"`
	SQLite    safemigrate.SqliteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres  safemigrate.PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

type MigrationsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type BackupConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Path         string `mapstructure:"path" yaml:"path"`
	Keep         bool   `mapstructure:"keep" yaml:"keep"`
	PagesPerStep int    `mapstructure:"pages_per_step" yaml:"pages_per_step"`
}

type ConfigDoc struct {
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Migrations MigrationsConfig `mapstructure:"migrations" yaml:"migrations"`
	Backup     BackupConfig     `mapstructure:"backup" yaml:"backup"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	return dec.Decode(c)
}

func (c *ConfigDoc) parseLogLevel() (safemigrate.LogLevel, error) {
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "error":
		return safemigrate.LogLevelError, nil
	case "warn", "warning":
		return safemigrate.LogLevelWarn, nil
	case "info", "":
		return safemigrate.LogLevelInfo, nil
	case "debug":
		return safemigrate.LogLevelDebug, nil
	default:
		return safemigrate.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging installs the configured logger as the process default and returns it.
func (c *ConfigDoc) SetupLogging() (*safemigrate.Logger, error) {
	level, err := c.parseLogLevel()
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	var logger *safemigrate.Logger
	switch format {
	case "json":
		logger = safemigrate.NewJSONLogger(level)
	case "color", "colour":
		logger = safemigrate.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = safemigrate.NewColorLogger(level)
		} else {
			logger = safemigrate.NewLogger(level)
		}
	default:
		return nil, fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	safemigrate.SetDefaultLogger(logger)

	logger.Debug("logging configured",
		"level", level.String(),
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return logger, nil
}

// ToStoreConfig maps the store section to a library store configuration.
// An empty type selects SQLite.
func (c *StoreConfig) ToStoreConfig() safemigrate.StoreConfig {
	out := safemigrate.StoreConfig{
		Driver:    strings.ToLower(strings.TrimSpace(c.Type)),
		TableName: strings.TrimSpace(c.TableName),
	}
	switch out.Driver {
	case safemigrate.DriverPostgresql, "postgres", "pg":
		out.Driver = safemigrate.DriverPostgresql
		pg := c.Postgres
		pg.DSN = strings.TrimSpace(pg.DSN)
		pg.Host = strings.TrimSpace(pg.Host)
		pg.User = strings.TrimSpace(pg.User)
		pg.DBName = strings.TrimSpace(pg.DBName)
		pg.SSLMode = strings.TrimSpace(pg.SSLMode)
		out.DriverConfig = &pg
	default:
		out.Driver = safemigrate.DriverSqlite
		sq := c.SQLite
		sq.Path = strings.TrimSpace(sq.Path)
		out.DriverConfig = &sq
	}
	return out
}

// settings is the effective configuration of one command: config document overlaid with
// flags and SAFEMIGRATE_* environment variables.
type settings struct {
	doc          ConfigDoc
	store        safemigrate.StoreConfig
	dir          string
	backupPath   string
	keepBackup   bool
	pagesPerStep int
}

func loadSettings(v *viper.Viper) (*settings, error) {
	var doc ConfigDoc
	if configPath := strings.TrimSpace(v.GetString("config")); configPath != "" {
		if err := doc.Load(configPath); err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		if doc.Migrations.Dir != "" && !filepath.IsAbs(doc.Migrations.Dir) {
			doc.Migrations.Dir = filepath.Join(filepath.Dir(configPath), doc.Migrations.Dir)
		}
	}

	if db := strings.TrimSpace(v.GetString("db")); db != "" {
		doc.Store.Type = safemigrate.DriverSqlite
		doc.Store.SQLite.Path = db
	}

	s := &settings{doc: doc}
	s.store = doc.Store.ToStoreConfig()

	s.dir = strings.TrimSpace(v.GetString("dir"))
	if s.dir == "" {
		s.dir = strings.TrimSpace(doc.Migrations.Dir)
	}
	if s.dir == "" {
		s.dir = constants.DefaultMigrationsDir
	}

	s.backupPath = strings.TrimSpace(v.GetString("backup"))
	if s.backupPath == "" && doc.Backup.Enabled {
		s.backupPath = strings.TrimSpace(doc.Backup.Path)
		if s.backupPath == "" && s.store.Driver == safemigrate.DriverSqlite {
			if sq, ok := s.store.DriverConfig.(*safemigrate.SqliteConfig); ok && sq.Path != "" {
				s.backupPath = sq.Path + constants.DefaultBackupSuffix
			}
		}
	}
	s.keepBackup = v.GetBool("keep_backup") || doc.Backup.Keep

	s.pagesPerStep = v.GetInt("pages_per_step")
	if s.pagesPerStep == 0 {
		s.pagesPerStep = doc.Backup.PagesPerStep
	}
	if s.pagesPerStep == 0 {
		s.pagesPerStep = safemigrate.AllPages
	}
	return s, nil
}

// policy returns the backup policy for up, or nil when no backup path is configured.
func (s *settings) policy() *safemigrate.Policy {
	if s.backupPath == "" {
		return nil
	}
	p := safemigrate.NewBackupPolicy(s.backupPath)
	p.DeleteIfSuccessful = !s.keepBackup
	p.PagesPerStep = s.pagesPerStep
	return p
}
