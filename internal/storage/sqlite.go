package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/cascade/internal/dynamo"
)

// SQLiteStore keeps runs and their fluxes in one database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return dynamo.Configf("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("%w: store is not initialized", dynamo.ErrPrecondition)
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			metadata BLOB NOT NULL,
			energies BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fluxes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			name TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, name)
		);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}
	if err := prepare(rec); err != nil {
		return "", err
	}

	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return "", err
	}
	energies, err := json.Marshal(rec.Energies)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, metadata, energies)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			metadata = excluded.metadata,
			energies = excluded.energies
	`, rec.Meta.ID, rec.Meta.Timestamp.Format(time.RFC3339Nano), meta, energies)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fluxes WHERE run_id = ?`, rec.Meta.ID); err != nil {
		return "", err
	}
	for _, name := range rec.Meta.Fluxes {
		payload, err := json.Marshal(rec.Fluxes[name])
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO fluxes (run_id, name, payload) VALUES (?, ?, ?)`,
			rec.Meta.ID, name, payload)
		if err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return rec.Meta.ID, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT metadata FROM runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var meta, energies []byte
	err = db.QueryRowContext(ctx, `SELECT metadata, energies FROM runs WHERE id = ?`, id).Scan(&meta, &energies)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, err
	}

	rec := &Record{Fluxes: make(map[string][]float64)}
	if err := json.Unmarshal(meta, &rec.Meta); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	if err := json.Unmarshal(energies, &rec.Energies); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT name, payload FROM fluxes WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, err
		}
		var values []float64
		if err := json.Unmarshal(payload, &values); err != nil {
			return nil, fmt.Errorf("decode run %s flux %s: %w", id, name, err)
		}
		rec.Fluxes[name] = values
	}
	return rec, rows.Err()
}
