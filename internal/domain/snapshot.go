package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedSnapshot is returned when saved state cannot be turned back
// into a MatchState.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// snapshotJSON is the flat persisted form. bestOfSets duplicates setsTarget
// for readers of older files.
type snapshotJSON struct {
	SetsTarget     int  `json:"setsTarget"`
	BestOfSets     int  `json:"bestOfSets"`
	Sets           Pair `json:"sets"`
	Games          Pair `json:"games"`
	Points         Pair `json:"points"`
	TiebreakPoints Pair `json:"tiebreakPoints"`
	Server         int  `json:"server"`
	InTiebreak     bool `json:"inTiebreak"`
	MatchComplete  bool `json:"matchComplete"`
	Winner         *int `json:"winner"`
}

// aliases maps accepted legacy keys onto their current names.
var aliases = map[string]string{
	"best_of_sets":    "bestOfSets",
	"sets_target":     "setsTarget",
	"tiebreak_points": "tiebreakPoints",
	"in_tiebreak":     "inTiebreak",
	"match_complete":  "matchComplete",
}

// UnmarshalJSON accepts exactly two integers; null leaves the pair at zero.
func (p *Pair) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 2 {
		return fmt.Errorf("want 2 values, got %d", len(v))
	}
	*p = Pair{v[0], v[1]}
	return nil
}

// MarshalJSON writes the flat snapshot shape.
func (m MatchState) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		SetsTarget:     m.SetsTarget,
		BestOfSets:     m.SetsTarget,
		Sets:           m.Sets,
		Games:          m.Games,
		Points:         m.Points,
		TiebreakPoints: m.TiebreakPoints,
		Server:         int(m.Server),
		InTiebreak:     m.InTiebreak,
		MatchComplete:  m.Complete,
	}
	if m.Winner.Valid() {
		w := int(m.Winner)
		out.Winner = &w
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a snapshot, filling missing fields with defaults.
// The receiver is only written when the whole document is valid.
func (m *MatchState) UnmarshalJSON(data []byte) error {
	s, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	*m = s
	return nil
}

// DecodeSnapshot parses a persisted snapshot. Missing fields default to
// zero, pairs to [0,0] and the target to DefaultSetsTarget. Values of the
// wrong type or out of range are rejected with ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) (MatchState, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return MatchState{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	for legacy, current := range aliases {
		if v, ok := raw[legacy]; ok {
			if _, have := raw[current]; !have {
				raw[current] = v
			}
			delete(raw, legacy)
		}
	}
	if _, ok := raw["setsTarget"]; !ok {
		if v, ok := raw["bestOfSets"]; ok {
			raw["setsTarget"] = v
		}
	}
	delete(raw, "bestOfSets")

	norm, err := json.Marshal(raw)
	if err != nil {
		return MatchState{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	var in snapshotJSON
	dec := json.NewDecoder(bytes.NewReader(norm))
	if err := dec.Decode(&in); err != nil {
		return MatchState{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	s := MatchState{
		Sets:           in.Sets,
		Games:          in.Games,
		Points:         in.Points,
		TiebreakPoints: in.TiebreakPoints,
		Server:         Side(in.Server),
		InTiebreak:     in.InTiebreak,
		Complete:       in.MatchComplete,
		Winner:         NoSide,
		SetsTarget:     in.SetsTarget,
	}
	if _, ok := raw["setsTarget"]; !ok {
		s.SetsTarget = DefaultSetsTarget
	}
	if in.Winner != nil {
		s.Winner = Side(*in.Winner)
	}
	if err := s.Validate(); err != nil {
		return MatchState{}, err
	}
	return s, nil
}

// Validate checks that m is a state the engine could hold.
func (m MatchState) Validate() error {
	if m.SetsTarget <= 0 {
		return fmt.Errorf("%w: sets target %d", ErrMalformedSnapshot, m.SetsTarget)
	}
	pairs := []struct {
		name string
		p    Pair
	}{{"sets", m.Sets}, {"games", m.Games}, {"points", m.Points}, {"tiebreakPoints", m.TiebreakPoints}}
	for _, f := range pairs {
		if f.p[Home] < 0 || f.p[Away] < 0 {
			return fmt.Errorf("%w: negative %s %v", ErrMalformedSnapshot, f.name, f.p)
		}
	}
	if !m.Server.Valid() {
		return fmt.Errorf("%w: server %d", ErrMalformedSnapshot, int(m.Server))
	}
	if m.Complete != m.Winner.Valid() {
		return fmt.Errorf("%w: matchComplete=%t with winner %d", ErrMalformedSnapshot, m.Complete, int(m.Winner))
	}
	if m.Winner != NoSide && !m.Winner.Valid() {
		return fmt.Errorf("%w: winner %d", ErrMalformedSnapshot, int(m.Winner))
	}
	if m.InTiebreak && m.Games != (Pair{6, 6}) {
		return fmt.Errorf("%w: tiebreak at games %v", ErrMalformedSnapshot, m.Games)
	}
	return nil
}
