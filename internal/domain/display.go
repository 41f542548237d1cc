package domain

import "fmt"

// Names are the labels shown for each side.
type Names struct {
	Home string
	Away string
}

// DefaultNames labels the sides "Home" and "Away".
var DefaultNames = Names{Home: "Home", Away: "Away"}

// Of returns the label for side.
func (n Names) Of(side Side) string {
	if side == Away {
		return n.Away
	}
	return n.Home
}

// Display is the human-readable projection of a MatchState.
type Display struct {
	Sets   string `json:"sets"`
	Games  string `json:"games"`
	Points string `json:"points"`
	Server string `json:"server"`
	Status string `json:"status"`
}

var pointNames = [...]string{"0", "15", "30", "40"}

// FormatPoints renders the current game score. Tiebreaks are shown as raw
// numbers; regular games use 0/15/30/40 with deuce and advantage.
func FormatPoints(m MatchState) string {
	if m.InTiebreak {
		return fmt.Sprintf("Tiebreak: %d - %d", m.TiebreakPoints[Home], m.TiebreakPoints[Away])
	}
	h, a := m.Points[Home], m.Points[Away]
	if h >= 3 && a >= 3 {
		switch {
		case h == a:
			return "40 - 40"
		case h > a:
			return "Advantage - 40"
		default:
			return "40 - Advantage"
		}
	}
	return pointNames[min(h, 3)] + " - " + pointNames[min(a, 3)]
}

// IsDeuce reports whether a regular game is level at 40-40 or beyond.
func IsDeuce(m MatchState) bool {
	return !m.InTiebreak && m.Points[Home] >= 3 && m.Points[Home] == m.Points[Away]
}

// Status summarises where the match stands.
func Status(m MatchState, n Names) string {
	switch {
	case m.Complete:
		return fmt.Sprintf("COMPLETE - %s WINS!", n.Of(m.Winner))
	case m.InTiebreak:
		return "TIEBREAK IN PROGRESS"
	default:
		return "IN PROGRESS"
	}
}

// Describe builds the full display projection for m.
func Describe(m MatchState, n Names) Display {
	return Display{
		Sets:   fmt.Sprintf("%d - %d", m.Sets[Home], m.Sets[Away]),
		Games:  fmt.Sprintf("%d - %d", m.Games[Home], m.Games[Away]),
		Points: FormatPoints(m),
		Server: n.Of(m.Server),
		Status: Status(m, n),
	}
}
