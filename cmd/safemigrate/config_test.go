package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/loykin/safemigrate"
	"github.com/spf13/viper"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// resetViper clears every key the commands read so tests do not leak into each other.
func resetViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.GetViper()
	reset := func() {
		v.Set("config", "")
		v.Set("db", "")
		v.Set("dir", "")
		v.Set("backup", "")
		v.Set("keep_backup", false)
		v.Set("pages_per_step", 0)
		v.Set("out", "")
	}
	reset()
	t.Cleanup(reset)
	return v
}

func TestConfigDoc_Load_NotRegularFile(t *testing.T) {
	d := t.TempDir()
	var c ConfigDoc
	if err := c.Load(d); err == nil {
		t.Fatalf("expected error for directory path (not a regular file)")
	}
}

func TestConfigDoc_Load(t *testing.T) {
	d := t.TempDir()
	p := writeFile(t, d, "config.yaml", `---
store:
  type: sqlite
  table_name: app_migrations
  sqlite:
    path: app.db
    journal_mode: wal
migrations:
  dir: sql
backup:
  enabled: true
  keep: true
  pages_per_step: 8
logging:
  level: debug
  format: json
`)
	var c ConfigDoc
	if err := c.Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.TableName != "app_migrations" || c.Store.SQLite.Path != "app.db" || c.Store.SQLite.JournalMode != "wal" {
		t.Fatalf("unexpected store section: %+v", c.Store)
	}
	if c.Migrations.Dir != "sql" {
		t.Fatalf("migrations.dir = %q", c.Migrations.Dir)
	}
	if !c.Backup.Enabled || !c.Backup.Keep || c.Backup.PagesPerStep != 8 {
		t.Fatalf("unexpected backup section: %+v", c.Backup)
	}
	if c.Logging.Level != "debug" || c.Logging.Format != "json" {
		t.Fatalf("unexpected logging section: %+v", c.Logging)
	}
}

func TestConfigDoc_SetupLogging(t *testing.T) {
	t.Cleanup(func() { safemigrate.SetDefaultLogger(safemigrate.NewLogger(safemigrate.LogLevelInfo)) })
	off := false
	tests := []struct {
		name    string
		logging LoggingConfig
		level   safemigrate.LogLevel
		wantErr bool
	}{
		{name: "defaults", logging: LoggingConfig{}, level: safemigrate.LogLevelInfo},
		{name: "json debug", logging: LoggingConfig{Level: "debug", Format: "json"}, level: safemigrate.LogLevelDebug},
		{name: "color warn", logging: LoggingConfig{Level: "warning", Format: "color"}, level: safemigrate.LogLevelWarn},
		{name: "text no masking", logging: LoggingConfig{Level: "error", MaskSensitive: &off}, level: safemigrate.LogLevelError},
		{name: "bad level", logging: LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", logging: LoggingConfig{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ConfigDoc{Logging: tt.logging}
			logger, err := doc.SetupLogging()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetupLogging: %v", err)
			}
			if logger.Level() != tt.level {
				t.Fatalf("level = %v, want %v", logger.Level(), tt.level)
			}
		})
	}
}

func TestStoreConfig_ToStoreConfig(t *testing.T) {
	tests := []struct {
		name   string
		in     StoreConfig
		driver string
	}{
		{name: "empty defaults to sqlite", in: StoreConfig{SQLite: safemigrate.SqliteConfig{Path: " a.db "}}, driver: safemigrate.DriverSqlite},
		{name: "postgres alias", in: StoreConfig{Type: "Postgres", Postgres: safemigrate.PostgresConfig{DSN: " postgres://x "}}, driver: safemigrate.DriverPostgresql},
		{name: "postgresql", in: StoreConfig{Type: "postgresql", TableName: " t "}, driver: safemigrate.DriverPostgresql},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.in.ToStoreConfig()
			if out.Driver != tt.driver {
				t.Fatalf("driver = %q, want %q", out.Driver, tt.driver)
			}
			switch c := out.DriverConfig.(type) {
			case *safemigrate.SqliteConfig:
				if c.Path != "a.db" {
					t.Fatalf("path not trimmed: %q", c.Path)
				}
			case *safemigrate.PostgresConfig:
				if c.DSN != "" && c.DSN != "postgres://x" {
					t.Fatalf("dsn not trimmed: %q", c.DSN)
				}
			default:
				t.Fatalf("unexpected driver config %T", out.DriverConfig)
			}
			if out.TableName != "" && out.TableName != "t" {
				t.Fatalf("table name not trimmed: %q", out.TableName)
			}
		})
	}
}

func TestLoadSettings(t *testing.T) {
	d := t.TempDir()
	cfg := writeFile(t, d, "config.yaml", `---
store:
  sqlite:
    path: /data/app.db
migrations:
  dir: sql
backup:
  enabled: true
  pages_per_step: 4
`)

	t.Run("config only", func(t *testing.T) {
		v := resetViper(t)
		v.Set("config", cfg)
		s, err := loadSettings(v)
		if err != nil {
			t.Fatalf("loadSettings: %v", err)
		}
		if s.dir != filepath.Join(d, "sql") {
			t.Fatalf("dir = %q, want relative to config", s.dir)
		}
		if s.backupPath != "/data/app.db.backup" {
			t.Fatalf("backupPath = %q", s.backupPath)
		}
		if s.pagesPerStep != 4 || s.keepBackup {
			t.Fatalf("unexpected settings: %+v", s)
		}
		p := s.policy()
		if p == nil || !p.DeleteIfSuccessful || p.PagesPerStep != 4 {
			t.Fatalf("unexpected policy: %+v", p)
		}
	})

	t.Run("flags override config", func(t *testing.T) {
		v := resetViper(t)
		v.Set("config", cfg)
		v.Set("db", "/tmp/other.db")
		v.Set("dir", "/tmp/migrations")
		v.Set("backup", "/tmp/snap.db")
		v.Set("keep_backup", true)
		v.Set("pages_per_step", 16)
		s, err := loadSettings(v)
		if err != nil {
			t.Fatalf("loadSettings: %v", err)
		}
		sq, ok := s.store.DriverConfig.(*safemigrate.SqliteConfig)
		if !ok || sq.Path != "/tmp/other.db" {
			t.Fatalf("db flag not applied: %+v", s.store.DriverConfig)
		}
		if s.dir != "/tmp/migrations" || s.backupPath != "/tmp/snap.db" || s.pagesPerStep != 16 {
			t.Fatalf("unexpected settings: %+v", s)
		}
		if p := s.policy(); p.DeleteIfSuccessful {
			t.Fatalf("keep_backup should disable deletion")
		}
	})

	t.Run("no config", func(t *testing.T) {
		v := resetViper(t)
		s, err := loadSettings(v)
		if err != nil {
			t.Fatalf("loadSettings: %v", err)
		}
		if s.policy() != nil {
			t.Fatalf("expected no backup policy")
		}
		if s.pagesPerStep != safemigrate.AllPages {
			t.Fatalf("pagesPerStep = %d", s.pagesPerStep)
		}
		if _, err := s.openStore(); err != errNoDatabase {
			t.Fatalf("expected errNoDatabase, got %v", err)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		v := resetViper(t)
		v.Set("config", filepath.Join(d, "nope.yaml"))
		if _, err := loadSettings(v); err == nil {
			t.Fatalf("expected error for missing config")
		}
	})
}
