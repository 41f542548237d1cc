package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

// ErrInvalidID is returned for match ids that cannot be used as file names.
var ErrInvalidID = errors.New("invalid match id")

// FileStore keeps one <match_id>.json file per match under Dir.
type FileStore struct {
	Dir string
}

// envelope is the on-disk document. Timestamp is kept as text because older
// files carry ISO times without a zone.
type envelope struct {
	MatchID   string          `json:"match_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// latestLink is the pointer file older installs keep next to the matches.
const latestLink = "latest.json"

// localTimestamp is the zone-less ISO layout, read in local time.
const localTimestamp = "2006-01-02T15:04:05.999999"

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(localTimestamp, s, time.Local)
}

// OpenFileStore creates dir if needed.
func OpenFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("open file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (f *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(f.Dir, id+".json"), nil
}

// Save writes rec to a temp file and renames it into place.
func (f *FileStore) Save(_ context.Context, rec Record) error {
	p, err := f.path(rec.MatchID)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	data, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	doc, err := json.MarshalIndent(envelope{MatchID: rec.MatchID, Timestamp: rec.SavedAt.UTC().Format(time.RFC3339Nano), Data: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	tmp, err := os.CreateTemp(f.Dir, ".save-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("save %s: %w", rec.MatchID, err)
	}
	return nil
}

// Load reads one match. Documents written without the envelope are read as
// a bare snapshot.
func (f *FileStore) Load(_ context.Context, id string) (Record, error) {
	p, err := f.path(id)
	if err != nil {
		return Record{}, fmt.Errorf("load: %w", err)
	}
	return readRecord(p, id)
}

func readRecord(p, id string) (Record, error) {
	raw, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", id, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Record{}, fmt.Errorf("load %s: %w: %v", id, domain.ErrMalformedSnapshot, err)
	}
	data := env.Data
	if len(data) == 0 {
		data = raw
	}
	state, err := domain.DecodeSnapshot(data)
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", id, err)
	}
	savedAt, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w: timestamp: %v", id, domain.ErrMalformedSnapshot, err)
	}
	rec := Record{MatchID: env.MatchID, SavedAt: savedAt, State: state}
	if rec.MatchID == "" {
		rec.MatchID = id
	}
	if rec.SavedAt.IsZero() {
		if fi, err := os.Stat(p); err == nil {
			rec.SavedAt = fi.ModTime()
		}
	}
	return rec, nil
}

func (f *FileStore) all() []Record {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		slog.Warn("read match directory", "dir", f.Dir, "error", err)
		return nil
	}
	var out []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == latestLink || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		rec, err := readRecord(filepath.Join(f.Dir, name), id)
		if err != nil {
			slog.Debug("skipping unreadable match file", "file", name, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Latest returns the most recently saved match.
func (f *FileStore) Latest(_ context.Context) (Record, error) {
	var latest Record
	found := false
	for _, rec := range f.all() {
		if !found || rec.SavedAt.After(latest.SavedAt) {
			latest, found = rec, true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return latest, nil
}

// History lists every readable match, newest first. Corrupt files are skipped.
func (f *FileStore) History(_ context.Context) ([]Summary, error) {
	recs := f.all()
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	p, err := f.path(id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
