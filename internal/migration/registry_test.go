package migration

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

func noop(context.Context, *sql.Tx) error { return nil }

func TestRegistry_RegisterOrder(t *testing.T) {
	reg, err := NewRegistry(
		Unit{ID: "create_table_t", Apply: noop},
		Unit{ID: "add_column_x", Apply: noop},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := reg.Register(Unit{ID: "add_index_y", Apply: noop}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	want := []string{"create_table_t", "add_column_x", "add_index_y"}
	if got := reg.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if reg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Len())
	}
	all := reg.All()
	for i, u := range all {
		if u.ID != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, u.ID, want[i])
		}
	}

	// All returns a copy
	all[0].ID = "mutated"
	if reg.All()[0].ID != "create_table_t" {
		t.Error("All() exposed internal storage")
	}
}

func TestRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
		want error
	}{
		{name: "duplicate", unit: Unit{ID: "a", Apply: noop}, want: ErrDuplicateIdentifier},
		{name: "empty identifier", unit: Unit{ID: "  ", Apply: noop}, want: ErrInvalidUnit},
		{name: "nil apply", unit: Unit{ID: "b"}, want: ErrInvalidUnit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(Unit{ID: "a", Apply: noop})
			if err != nil {
				t.Fatalf("NewRegistry() error = %v", err)
			}
			err = reg.Register(tt.unit)
			if !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
			if reg.Len() != 1 {
				t.Errorf("Len() = %d after rejected Register, want 1", reg.Len())
			}
		})
	}
}

func TestNewRegistry_DuplicateIdentifier(t *testing.T) {
	_, err := NewRegistry(
		Unit{ID: "a", Apply: noop},
		Unit{ID: "b", Apply: noop},
		Unit{ID: "a", Apply: noop},
	)
	var dup *DuplicateIdentifierError
	if !errors.As(err, &dup) {
		t.Fatalf("NewRegistry() error = %v, want *DuplicateIdentifierError", err)
	}
	if dup.ID != "a" {
		t.Errorf("DuplicateIdentifierError.ID = %q, want a", dup.ID)
	}
	if dup.Error() != `duplicate migration identifier "a"` {
		t.Errorf("Error() = %q", dup.Error())
	}
}

func TestRegistry_Seal(t *testing.T) {
	var reg Registry
	if err := reg.Register(Unit{ID: "a", Apply: noop}); err != nil {
		t.Fatalf("Register() on zero Registry error = %v", err)
	}
	if reg.Sealed() {
		t.Fatal("new registry is sealed")
	}
	reg.Seal()
	if !reg.Sealed() {
		t.Fatal("Seal() did not seal")
	}
	if err := reg.Register(Unit{ID: "b", Apply: noop}); !errors.Is(err, ErrRegistrySealed) {
		t.Errorf("Register() after Seal error = %v, want ErrRegistrySealed", err)
	}
}

func TestChecksum(t *testing.T) {
	// sha256("")
	if got := Checksum(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Checksum(\"\") = %s", got)
	}
	if Checksum("a") == Checksum("b") {
		t.Error("different bodies share a checksum")
	}
	u := SQLUnit("001_x", "CREATE TABLE x (id INTEGER)")
	if u.Checksum != Checksum("CREATE TABLE x (id INTEGER)") || u.Apply == nil {
		t.Errorf("SQLUnit() = %+v", u)
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")
	af := &ApplyFailedError{
		Identifier: "b",
		Cause:      cause,
		Registered: []string{"a", "b", "c"},
		Completed:  []string{"a"},
		Pending:    []string{"b", "c"},
	}
	if !errors.Is(af, ErrApplyFailed) || !errors.Is(af, cause) || errors.Unwrap(af) != cause {
		t.Error("ApplyFailedError does not match its sentinel and cause")
	}
	if got := af.Error(); got != `migration "b" failed: boom (completed: [a], pending: [b, c])` {
		t.Errorf("Error() = %q", got)
	}

	bf := &BackupFailedError{Err: cause}
	if !errors.Is(bf, ErrBackupFailed) || !errors.Is(bf, cause) {
		t.Error("BackupFailedError does not match its sentinel and cause")
	}
	if errors.Is(bf, ErrApplyFailed) {
		t.Error("BackupFailedError matched ErrApplyFailed")
	}
}
