package migration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strings"
)

// ApplyFunc performs one schema change inside the migration's write transaction.
// It must only use tx: with SQLite the pool holds a single connection, so
// touching the parent *sql.DB while tx is open blocks forever.
type ApplyFunc func(ctx context.Context, tx *sql.Tx) error

// Unit is one named migration. ID is the idempotence key and must never be
// reused for a different body once it has been applied anywhere.
type Unit struct {
	ID    string
	Apply ApplyFunc
	// Checksum identifies the body that was applied. Optional.
	Checksum string
}

// SQLUnit returns a Unit that executes body as-is, checksummed with sha256.
func SQLUnit(id, body string) Unit {
	return Unit{
		ID:       id,
		Checksum: Checksum(body),
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			if strings.TrimSpace(body) == "" {
				return nil
			}
			_, err := tx.ExecContext(ctx, body)
			return err
		},
	}
}

// Checksum returns the hex sha256 of body.
func Checksum(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
