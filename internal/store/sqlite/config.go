package sqlite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/loykin/safemigrate/internal/constants"
)

// Config describes how to open a SQLite database.
// ForeignKeys defaults to enabled; set it to a false pointer to turn enforcement off.
type Config struct {
	Path        string `mapstructure:"path" yaml:"path"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	JournalMode string `mapstructure:"journal_mode" yaml:"journal_mode"`
	ForeignKeys *bool  `mapstructure:"foreign_keys" yaml:"foreign_keys"`
	ReadOnly    bool   `mapstructure:"read_only" yaml:"read_only"`
	BusyTimeout int    `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

var validJournalModes = map[string]bool{
	"DELETE":   true,
	"TRUNCATE": true,
	"PERSIST":  true,
	"MEMORY":   true,
	"WAL":      true,
	"OFF":      true,
}

func (c *Config) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"path":            c.Path,
		"dsn":             c.DSN,
		"journal_mode":    c.JournalMode,
		"read_only":       c.ReadOnly,
		"busy_timeout_ms": c.BusyTimeout,
	}
	if c.ForeignKeys != nil {
		m["foreign_keys"] = *c.ForeignKeys
	}
	return m
}

// Validate checks option values without touching the filesystem.
func (c *Config) Validate() error {
	if jm := strings.ToUpper(strings.TrimSpace(c.JournalMode)); jm != "" && !validJournalModes[jm] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative: %d", c.BusyTimeout)
	}
	if c.ReadOnly && isMemory(c.Path) && c.DSN == "" {
		return fmt.Errorf("read-only mode requires a database file")
	}
	return nil
}

// BuildDSN returns the modernc.org/sqlite connection string for c.
// An explicit DSN wins; an empty path means a private in-memory database.
func (c *Config) BuildDSN() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	path := strings.TrimSpace(c.Path)
	if path == "" {
		path = constants.SQLiteMemoryPath
	}

	q := url.Values{}
	timeout := c.BusyTimeout
	if timeout == 0 {
		timeout = constants.DefaultSQLiteBusyTimeoutMS
	}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout))
	if c.ForeignKeys == nil || *c.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	} else {
		q.Add("_pragma", "foreign_keys(0)")
	}
	if jm := strings.ToUpper(strings.TrimSpace(c.JournalMode)); jm != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", jm))
	}
	if c.ReadOnly {
		q.Set("mode", "ro")
	}
	if isMemory(path) {
		return path + "?" + q.Encode()
	}
	// '?', '#' and '%' in the file name must not reach the URI parser raw
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}

func isMemory(path string) bool {
	p := strings.TrimSpace(path)
	return p == "" || p == constants.SQLiteMemoryPath
}
