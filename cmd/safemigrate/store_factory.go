package main

import (
	"errors"
	"os"
	"strings"

	"github.com/loykin/safemigrate"
)

var errNoDatabase = errors.New("no database configured: set --db or store.sqlite.path")

// openStore opens the configured store. SQLite needs an explicit file; the in-memory
// fallback of the library makes no sense for a one-shot command.
func (s *settings) openStore() (*safemigrate.Store, error) {
	if sq, ok := s.store.DriverConfig.(*safemigrate.SqliteConfig); ok {
		if strings.TrimSpace(sq.Path) == "" && strings.TrimSpace(sq.DSN) == "" {
			return nil, errNoDatabase
		}
	}
	return safemigrate.OpenStore(s.store)
}

// loadRegistry reads the SQL migrations directory. Unless required, a missing directory
// yields an empty registry so that status works against a database alone.
func (s *settings) loadRegistry(required bool) (*safemigrate.Registry, error) {
	if _, err := os.Stat(s.dir); !required && errors.Is(err, os.ErrNotExist) {
		return safemigrate.NewRegistry()
	}
	units, err := safemigrate.LoadSQLDir(s.dir)
	if err != nil {
		return nil, err
	}
	return safemigrate.NewRegistry(units...)
}
