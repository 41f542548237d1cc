package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSnapshotRoundTripReachableStates(t *testing.T) {
	e := New(3, nil)
	seq := []Side{Home, Home, Away, Home, Away, Away, Away, Home, Home}
	for i := 0; i < 400 && !e.Snapshot().Complete; i++ {
		want := e.Snapshot()
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		other := New(3, nil)
		var got MatchState
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if err := other.Load(got); err != nil {
			t.Fatalf("load %s: %v", data, err)
		}
		if other.Snapshot() != want {
			t.Fatalf("round trip mismatch:\n want %+v\n got  %+v", want, other.Snapshot())
		}
		score(t, e, seq[i%len(seq)])
	}
}

func TestSnapshotWritesAliasAndNullWinner(t *testing.T) {
	data, err := json.Marshal(NewState(5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"setsTarget":5`, `"bestOfSets":5`, `"winner":null`, `"tiebreakPoints":[0,0]`} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %s in %s", want, s)
		}
	}
}

func TestDecodeSnapshotDefaults(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"sets":[1,0]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := NewState(DefaultSetsTarget)
	want.Sets = Pair{1, 0}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}
}

func TestDecodeSnapshotLegacyKeys(t *testing.T) {
	doc := `{"best_of_sets":5,"sets":[2,1],"games":[6,6],"points":[0,0],
		"server":1,"match_complete":false,"winner":null,"in_tiebreak":true,"tiebreak_points":[3,4]}`
	s, err := DecodeSnapshot([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.SetsTarget != 5 || !s.InTiebreak || s.TiebreakPoints != (Pair{3, 4}) || s.Server != Away {
		t.Fatalf("legacy fields not applied: %+v", s)
	}
}

func TestDecodeSnapshotBestOfAliasOnly(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"bestOfSets":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.SetsTarget != 1 {
		t.Fatalf("expected target from bestOfSets, got %d", s.SetsTarget)
	}
}

func TestDecodeSnapshotRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"wrong type":     `{"sets":"two"}`,
		"short pair":     `{"games":[1]}`,
		"long pair":      `{"points":[1,2,3]}`,
		"bool type":      `{"inTiebreak":"yes"}`,
		"server range":   `{"server":2}`,
		"negative":       `{"points":[-1,0]}`,
		"winner no done": `{"winner":0}`,
		"done no winner": `{"matchComplete":true}`,
		"bad winner":     `{"matchComplete":true,"winner":4}`,
		"zero target":    `{"setsTarget":0}`,
		"odd tiebreak":   `{"inTiebreak":true,"games":[3,2]}`,
	}
	for name, doc := range cases {
		if _, err := DecodeSnapshot([]byte(doc)); !errors.Is(err, ErrMalformedSnapshot) {
			t.Fatalf("%s: expected ErrMalformedSnapshot, got %v", name, err)
		}
	}
}

func TestUnmarshalLeavesReceiverOnError(t *testing.T) {
	m := NewState(3)
	m.Sets = Pair{1, 1}
	before := m
	if err := json.Unmarshal([]byte(`{"sets":[1]}`), &m); err == nil {
		t.Fatalf("expected error")
	}
	if m != before {
		t.Fatalf("receiver modified on error: %+v", m)
	}
}
