package app

import (
	"errors"
	"fmt"
	"strings"
)

// Event is one of the named inputs an input source can deliver.
type Event string

const (
	HomePoint  Event = "home-point"
	AwayPoint  Event = "away-point"
	Reset      Event = "reset"
	SwapServer Event = "swap-server"
)

// Events lists every event in a stable order.
var Events = []Event{HomePoint, AwayPoint, Reset, SwapServer}

var ErrUnknownEvent = errors.New("unknown event")

// ParseEvent accepts the canonical names and the underscore spellings used
// by older key maps ("home_point", "reset_match", ...).
func ParseEvent(s string) (Event, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.ReplaceAll(n, "_", "-")
	switch n {
	case "home-point":
		return HomePoint, nil
	case "away-point":
		return AwayPoint, nil
	case "reset", "reset-match":
		return Reset, nil
	case "swap-server":
		return SwapServer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}
