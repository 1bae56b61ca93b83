package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/loykin/safemigrate/internal/store/connector"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testTable = "safemigrate_migrations"

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
	if store.dialect == nil {
		t.Error("NewStore() should initialize dialect")
	}
}

func TestStore_LoadValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      map[string]interface{}
		wantLoadErr bool
		wantValErr  bool
	}{
		{name: "dsn", config: map[string]interface{}{"dsn": "postgres://u:p@h/d"}},
		{name: "host parts", config: map[string]interface{}{"host": "h", "port": 5433, "user": "u", "dbname": "d"}},
		{name: "empty", config: map[string]interface{}{}, wantValErr: true},
		{name: "port wrong type", config: map[string]interface{}{"host": "h", "port": "abc"}, wantLoadErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.Load(tt.config)
			if (err != nil) != tt.wantLoadErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantLoadErr)
			}
			if tt.wantLoadErr {
				return
			}
			if err := s.Validate(); (err != nil) != tt.wantValErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantValErr)
			}
		})
	}
}

func TestStore_Record_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := &Store{db: db, dialect: NewDialect()}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec("INSERT INTO safemigrate_migrations\\(identifier, seq, checksum, duration_ms, applied_at\\) VALUES\\(\\$1,\\$2,\\$3,\\$4,\\$5\\)").
		WithArgs("a", 0, nil, int64(0), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO safemigrate_migrations").
		WithArgs("b", 1, "sum", int64(0), at).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	if err := store.Record(context.Background(), db, testTable, connector.Record{Identifier: "a", AppliedAt: at}); err != nil {
		t.Errorf("Record() error = %v", err)
	}
	if err := store.Record(context.Background(), db, testTable, connector.Record{Identifier: "b", Seq: 1, Checksum: "sum", AppliedAt: at}); err == nil {
		t.Error("Record() should surface driver errors")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStore_TableExists_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := &Store{db: db, dialect: NewDialect()}
	mock.ExpectQuery("SELECT to_regclass\\(\\$1\\) IS NOT NULL").
		WithArgs(testTable).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := store.TableExists(context.Background(), db, testTable)
	if err != nil {
		t.Fatalf("TableExists() error = %v", err)
	}
	if exists {
		t.Error("TableExists() = true, want false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStore_Clear_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := &Store{db: db, dialect: NewDialect()}
	mock.ExpectExec("TRUNCATE TABLE items RESTART IDENTITY CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Clear(context.Background(), db, "items"); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
	if err := store.Clear(context.Background(), db, "items; DROP TABLE x"); err == nil {
		t.Error("Clear() should reject an invalid table name")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// waitForPostgresDSN pings the DSN until it responds or timeout elapses (pgx stdlib).
func waitForPostgresDSN(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			pingErr := db.Ping()
			_ = db.Close()
			if pingErr == nil {
				return nil
			}
			lastErr = pingErr
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for postgres")
	}
	return lastErr
}

// Integration test with PostgreSQL via testcontainers
func TestStore_CompletedLifecycle_Postgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "safemigrate_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		),
	}
	pg, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping Postgres container test: %v", err)
		return
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	s := NewStore()
	s.Config = Config{Host: host, Port: port.Int(), User: "test", Password: "test", DBName: "safemigrate_test"}
	if err := waitForPostgresDSN(s.Config.BuildDSN(), 30*time.Second); err != nil {
		t.Fatalf("postgres not ready: %v", err)
	}
	db, err := s.Connect()
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	exists, err := s.TableExists(ctx, db, testTable)
	if err != nil || exists {
		t.Fatalf("TableExists() = %v, %v; want false, nil", exists, err)
	}
	if err := s.Ensure(ctx, db, testTable); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	exists, err = s.TableExists(ctx, db, testTable)
	if err != nil || !exists {
		t.Fatalf("TableExists() after Ensure = %v, %v; want true, nil", exists, err)
	}

	// records written in a rolled back transaction must not be visible
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.Record(ctx, tx, testTable, connector.Record{Identifier: "ghost", AppliedAt: at}); err != nil {
		t.Fatalf("Record(tx) error = %v", err)
	}
	_ = tx.Rollback()

	if err := s.Record(ctx, db, testTable, connector.Record{Identifier: "create_table_t", Seq: 0, Checksum: "c0", Duration: 3 * time.Millisecond, AppliedAt: at}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Record(ctx, db, testTable, connector.Record{Identifier: "add_column_x", Seq: 1, AppliedAt: at}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	recs, err := s.ListCompleted(ctx, db, testTable)
	if err != nil {
		t.Fatalf("ListCompleted() error = %v", err)
	}
	if len(recs) != 2 || recs[0].Identifier != "create_table_t" || recs[1].Identifier != "add_column_x" {
		t.Fatalf("ListCompleted() = %+v", recs)
	}
	if recs[0].Checksum != "c0" || recs[0].Duration != 3*time.Millisecond || !recs[0].AppliedAt.Equal(at) {
		t.Errorf("record[0] = %+v", recs[0])
	}

	if err := s.Clear(ctx, db, testTable); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	recs, err = s.ListCompleted(ctx, db, testTable)
	if err != nil || len(recs) != 0 {
		t.Errorf("ListCompleted() after Clear = %v, %v", recs, err)
	}
}
