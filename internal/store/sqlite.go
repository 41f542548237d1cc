package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - no schema
// 1 - matches table keyed by match_id
const currentSchemaVersion = 1

// SQLiteStore keeps every match in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// The connection uses WAL mode and a single writer.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Save upserts rec.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (match_id, saved_at, state)
		VALUES (?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET saved_at = excluded.saved_at, state = excluded.state
	`, rec.MatchID, rec.SavedAt.UnixNano(), string(state))
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT match_id, saved_at, state FROM matches WHERE match_id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", id, err)
	}
	return rec, nil
}

// Latest returns the row with the newest saved_at.
func (s *SQLiteStore) Latest(ctx context.Context) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT match_id, saved_at, state FROM matches
		ORDER BY saved_at DESC, match_id ASC LIMIT 1
	`)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("latest: %w", err)
	}
	return rec, nil
}

// History lists every match newest first. Rows whose state no longer
// decodes are skipped.
func (s *SQLiteStore) History(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT match_id, saved_at, state FROM matches
		ORDER BY saved_at DESC, match_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedSnapshot) {
				slog.Debug("skipping malformed match row", "error", err)
				continue
			}
			return nil, fmt.Errorf("history: %w", err)
		}
		out = append(out, summarize(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE match_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec   Record
		nanos int64
		state string
	)
	if err := sc.Scan(&rec.MatchID, &nanos, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	st, err := domain.DecodeSnapshot([]byte(state))
	if err != nil {
		return Record{}, err
	}
	rec.SavedAt = time.Unix(0, nanos).UTC()
	rec.State = st
	return rec, nil
}
