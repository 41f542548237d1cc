// Package store persists match snapshots.
//
// Two backends implement Store: FileStore keeps one JSON document per match
// in a directory, SQLiteStore keeps them in a single database. Both store the
// flat snapshot shape produced by domain.MatchState.MarshalJSON, so either can
// read what an older build wrote.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

// Errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("match not found")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Record is one saved match.
type Record struct {
	MatchID string
	SavedAt time.Time
	State   domain.MatchState
}

// Summary is a history row.
type Summary struct {
	MatchID  string      `json:"match_id"`
	SavedAt  time.Time   `json:"timestamp"`
	Sets     domain.Pair `json:"sets"`
	Winner   domain.Side `json:"winner"`
	Complete bool        `json:"match_complete"`
}

// Store saves and loads match snapshots. Save replaces any earlier record
// with the same MatchID.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, matchID string) (Record, error)
	Latest(ctx context.Context) (Record, error)
	History(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, matchID string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the backend named by driver rooted at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return OpenFileStore(path)
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func summarize(rec Record) Summary {
	return Summary{
		MatchID:  rec.MatchID,
		SavedAt:  rec.SavedAt,
		Sets:     rec.State.Sets,
		Winner:   rec.State.Winner,
		Complete: rec.State.Complete,
	}
}
