package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	sq, err := OpenSQLite(filepath.Join(dir, "matches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"file":   fs,
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func playedState(t *testing.T) domain.MatchState {
	t.Helper()
	e := domain.New(3, nil)
	for i := 0; i < 27; i++ {
		require.NoError(t, e.ScorePoint(domain.Home))
	}
	require.NoError(t, e.ScorePoint(domain.Away))
	return e.Snapshot()
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Latest(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = st.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			state := playedState(t)
			require.NoError(t, st.Save(ctx, Record{MatchID: "court-1", SavedAt: base, State: state}))
			require.NoError(t, st.Save(ctx, Record{MatchID: "court-2", SavedAt: base.Add(time.Minute), State: domain.NewState(5)}))

			got, err := st.Load(ctx, "court-1")
			require.NoError(t, err)
			assert.Equal(t, state, got.State)
			assert.True(t, base.Equal(got.SavedAt), "saved at %v", got.SavedAt)

			latest, err := st.Latest(ctx)
			require.NoError(t, err)
			assert.Equal(t, "court-2", latest.MatchID)

			// overwrite moves court-1 to the front
			state.Points = domain.Pair{2, 0}
			require.NoError(t, st.Save(ctx, Record{MatchID: "court-1", SavedAt: base.Add(2 * time.Minute), State: state}))
			hist, err := st.History(ctx)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, "court-1", hist[0].MatchID)
			assert.Equal(t, state.Sets, hist[0].Sets)
			assert.Equal(t, "court-2", hist[1].MatchID)

			require.NoError(t, st.Delete(ctx, "court-2"))
			assert.ErrorIs(t, st.Delete(ctx, "court-2"), ErrNotFound)
			hist, err = st.History(ctx)
			require.NoError(t, err)
			assert.Len(t, hist, 1)
		})
	}
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	fs, err := OpenFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, fs.Save(ctx, Record{MatchID: "good", SavedAt: time.Now(), State: domain.NewState(3)}))
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir, "bad.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir, "typed.json"), []byte(`{"data":{"sets":"x"}}`), 0o644))

	hist, err := fs.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "good", hist[0].MatchID)

	_, err = fs.Load(ctx, "typed")
	assert.ErrorIs(t, err, domain.ErrMalformedSnapshot)
}

func TestFileStoreReadsBareLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	fs, err := OpenFileStore(t.TempDir())
	require.NoError(t, err)
	legacy := `{"best_of_sets": 5, "sets": [1, 0], "games": [2, 3], "points": [1, 1], "server": 1}`
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir, "old.json"), []byte(legacy), 0o644))

	rec, err := fs.Load(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "old", rec.MatchID)
	assert.Equal(t, 5, rec.State.SetsTarget)
	assert.Equal(t, domain.Pair{2, 3}, rec.State.Games)
	assert.Equal(t, domain.NoSide, rec.State.Winner)
	assert.False(t, rec.SavedAt.IsZero())
}

func TestFileStoreReadsOriginalEnvelope(t *testing.T) {
	ctx := context.Background()
	fs, err := OpenFileStore(t.TempDir())
	require.NoError(t, err)
	doc := `{
  "match_id": "2024-05-01-01",
  "timestamp": "2024-05-01T10:11:12.123456",
  "data": {"sets": [1, 0], "games": [6, 6], "points": [0, 0], "tiebreak_points": [3, 2],
           "server": 1, "in_tiebreak": true, "match_complete": false, "winner": null, "best_of_sets": 3}
}`
	file := filepath.Join(fs.Dir, "2024-05-01-01.json")
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o644))
	require.NoError(t, os.Symlink(file, filepath.Join(fs.Dir, "latest.json")))

	rec, err := fs.Load(ctx, "2024-05-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01-01", rec.MatchID)
	assert.True(t, rec.SavedAt.Equal(time.Date(2024, 5, 1, 10, 11, 12, 123456000, time.Local)))
	assert.True(t, rec.State.InTiebreak)
	assert.Equal(t, domain.Pair{3, 2}, rec.State.TiebreakPoints)
	assert.Equal(t, domain.Away, rec.State.Server)

	hist, err := fs.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1, "latest.json is a pointer, not a match")
	assert.Equal(t, "2024-05-01-01", hist[0].MatchID)

	latest, err := fs.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01-01", latest.MatchID)

	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir, "stamp.json"),
		[]byte(`{"match_id":"stamp","timestamp":"yesterday","data":{}}`), 0o644))
	_, err = fs.Load(ctx, "stamp")
	assert.ErrorIs(t, err, domain.ErrMalformedSnapshot)
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	fs, err := OpenFileStore(t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		err := fs.Save(context.Background(), Record{MatchID: id, State: domain.NewState(3)})
		assert.ErrorIs(t, err, ErrInvalidID, "id %q", id)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "matches.db")
	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, Record{MatchID: "m", SavedAt: time.Now(), State: domain.NewState(3)}))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	rec, err := s2.Load(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.NewState(3), rec.State)

	var version int
	require.NoError(t, s2.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpenDrivers(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(DriverFile, filepath.Join(dir, "f"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, st)

	st, err = Open(DriverSQLite, filepath.Join(dir, "s.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	st, err = Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, st)

	_, err = Open("redis", "")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
