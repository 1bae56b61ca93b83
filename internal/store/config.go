package store

import (
	"github.com/loykin/safemigrate/internal/store/postgresql"
	"github.com/loykin/safemigrate/internal/store/sqlite"
)

const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"
)

// Config selects a backend and the table that holds completed migrations.
// An empty Driver means sqlite; an empty TableName means constants.DefaultCompletedTable.
type Config struct {
	Driver       string `mapstructure:"driver" yaml:"driver"`
	TableName    string `mapstructure:"table_name" yaml:"table_name"`
	DriverConfig DriverConfig
}

type DriverConfig interface {
	ToMap() map[string]interface{}
}

// SqliteConfig and PostgresConfig are the driver configurations accepted by Open.
type (
	SqliteConfig   = sqlite.Config
	PostgresConfig = postgresql.Config
)
