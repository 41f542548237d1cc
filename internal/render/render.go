// Package render draws match snapshots as plain text.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

const clearScreen = "\x1b[H\x1b[2J"

// Text returns the scoreboard block for m.
func Text(m domain.MatchState, names domain.Names) string {
	d := domain.Describe(m, names)
	points := d.Points
	if domain.IsDeuce(m) {
		points += " (Deuce)"
	}
	var b strings.Builder
	b.WriteString("TENNIS SCOREBOARD\n")
	b.WriteString("=================\n")
	fmt.Fprintf(&b, "Sets:   %s %d - %s %d\n", names.Home, m.Sets[domain.Home], names.Away, m.Sets[domain.Away])
	fmt.Fprintf(&b, "Games:  %s %d - %s %d\n", names.Home, m.Games[domain.Home], names.Away, m.Games[domain.Away])
	fmt.Fprintf(&b, "Points: %s\n", points)
	fmt.Fprintf(&b, "Best of %d sets\n", m.SetsTarget)
	b.WriteString("\n")
	fmt.Fprintf(&b, "SERVER: %s\n", d.Server)
	fmt.Fprintf(&b, "STATUS: %s\n", d.Status)
	return b.String()
}

// Console is a listener that redraws the scoreboard on every change.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	names domain.Names
	// Clear emits an ANSI clear-screen sequence before each redraw.
	Clear bool
}

// NewConsole writes to w using names for the sides.
func NewConsole(w io.Writer, names domain.Names) *Console {
	return &Console{w: w, names: names}
}

// Update implements domain.Listener.
func (c *Console) Update(m domain.MatchState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Text(m, c.names)
	if c.Clear {
		out = clearScreen + out
	}
	_, err := io.WriteString(c.w, out)
	return err
}

// Help lists the key layout shown under the board in interactive mode.
func Help() string {
	return `KEYBOARD CONTROLS:
  UP / H     Home scores point
  DOWN / A   Away scores point
  LEFT / S   Swap server
  RIGHT / R  Reset match
  q          Quit
`
}
