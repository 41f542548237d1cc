package domain

import (
	"errors"
	"fmt"
)

// Side identifies one of the two competitors.
type Side int

const (
	Home   Side = 0
	Away   Side = 1
	NoSide Side = -1
)

// Other returns the opposing side.
func (s Side) Other() Side { return 1 - s }

// Valid reports whether s is Home or Away.
func (s Side) Valid() bool { return s == Home || s == Away }

func (s Side) String() string {
	switch s {
	case Home:
		return "home"
	case Away:
		return "away"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Pair holds one counter per side, indexed by Side.
type Pair [2]int

// DefaultSetsTarget is the best-of value used when none is given.
const DefaultSetsTarget = 3

// MatchState is the full scoring state of a match. It is a plain value:
// copies never share memory with the engine.
type MatchState struct {
	Sets           Pair
	Games          Pair
	Points         Pair
	TiebreakPoints Pair
	Server         Side
	InTiebreak     bool
	Complete       bool
	Winner         Side
	SetsTarget     int
}

// NewState returns the starting state for a best-of-setsTarget match.
func NewState(setsTarget int) MatchState {
	return MatchState{Server: Home, Winner: NoSide, SetsTarget: setsTarget}
}

// SetsNeeded is the number of sets a side must win to take the match.
func (m MatchState) SetsNeeded() int { return m.SetsTarget/2 + 1 }

// Errors returned by engine operations.
var (
	ErrInvalidSide   = errors.New("invalid side")
	ErrInvalidTarget = errors.New("sets target must be positive")
)

// Engine applies scoring events to a single match and announces every
// change on its Channel. It is not safe for concurrent use; callers that
// drive it from several goroutines must serialise access.
type Engine struct {
	state MatchState
	ch    *Channel
}

// New returns an engine for a best-of-setsTarget match. A non-positive
// target falls back to DefaultSetsTarget.
func New(setsTarget int, ch *Channel) *Engine {
	if setsTarget <= 0 {
		setsTarget = DefaultSetsTarget
	}
	if ch == nil {
		ch = NewChannel(nil)
	}
	return &Engine{state: NewState(setsTarget), ch: ch}
}

// Channel returns the notification channel listeners attach to.
func (e *Engine) Channel() *Channel { return e.ch }

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() MatchState { return e.state }

// HomePoint scores a point for the home side.
func (e *Engine) HomePoint() { _ = e.ScorePoint(Home) }

// AwayPoint scores a point for the away side.
func (e *Engine) AwayPoint() { _ = e.ScorePoint(Away) }

// ScorePoint records a point won by side. Once the match is complete the
// counters no longer move, but listeners are still notified so a display
// can acknowledge the rejected input.
func (e *Engine) ScorePoint(side Side) error {
	if !side.Valid() {
		return fmt.Errorf("score point: %w: %d", ErrInvalidSide, int(side))
	}
	if !e.state.Complete {
		e.scorePoint(side)
	}
	e.emit()
	return nil
}

func (e *Engine) scorePoint(side Side) {
	s := &e.state
	if s.InTiebreak {
		s.TiebreakPoints[side]++
		if tiebreakWon(s.TiebreakPoints, side) {
			e.winSet(side)
			s.Games = Pair{}
			s.Points = Pair{}
			s.TiebreakPoints = Pair{}
			s.InTiebreak = false
		}
	} else {
		s.Points[side]++
		if gameWon(s.Points, side) {
			s.Games[side]++
			s.Server = s.Server.Other()
			s.Points = Pair{}
			if setWon(s.Games, side) {
				e.winSet(side)
				s.Games = Pair{}
			} else if s.Games == (Pair{6, 6}) {
				s.InTiebreak = true
				s.Points = Pair{}
				s.TiebreakPoints = Pair{}
			}
		}
	}
	if s.Sets[side] >= s.SetsNeeded() {
		s.Complete = true
		s.Winner = side
	}
}

func (e *Engine) winSet(side Side) {
	e.state.Sets[side]++
	e.state.Server = e.state.Server.Other()
}

// SwapServer hands the serve to the other side. It is allowed at any time,
// including after the match is over.
func (e *Engine) SwapServer() {
	e.state.Server = e.state.Server.Other()
	e.emit()
}

// Reset starts a fresh best-of-setsTarget match.
func (e *Engine) Reset(setsTarget int) error {
	if setsTarget <= 0 {
		return fmt.Errorf("reset: %w: %d", ErrInvalidTarget, setsTarget)
	}
	e.state = NewState(setsTarget)
	e.emit()
	return nil
}

// Load replaces the whole state, typically from a saved snapshot. The state
// is validated first; on error the engine is left untouched.
func (e *Engine) Load(s MatchState) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	e.state = s
	e.emit()
	return nil
}

func (e *Engine) emit() { e.ch.Notify(e.state) }

func gameWon(p Pair, side Side) bool {
	return p[side] >= 4 && p[side]-p[side.Other()] >= 2
}

func setWon(g Pair, side Side) bool {
	return g[side] >= 6 && g[side]-g[side.Other()] >= 2
}

func tiebreakWon(t Pair, side Side) bool {
	if t[side] < 7 {
		return false
	}
	return t[side.Other()] <= 5 || t[side]-t[side.Other()] >= 2
}
