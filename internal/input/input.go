// Package input turns key presses into scoreboard events.
//
// Keys arrive as a byte stream (a terminal, a pipe, a remote that presents
// itself as a keyboard). Decoder splits the stream into key names, Bindings
// maps key names to app events and Run drives a dispatch function until the
// stream ends, the user quits or the context is cancelled.
package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
)

// Key names produced by Decoder for non-printable keys.
const (
	KeyUp    = "UP"
	KeyDown  = "DOWN"
	KeyLeft  = "LEFT"
	KeyRight = "RIGHT"
	KeyEsc   = "ESC"
	KeySpace = "SPACE"
	KeyQuit  = "QUIT"
)

// Bindings maps key names to events.
type Bindings map[string]app.Event

// DefaultBindings mirrors the remote-friendly layout: arrows for points and
// a letter alternative for every action.
func DefaultBindings() Bindings {
	return Bindings{
		KeyUp:    app.HomePoint,
		"H":      app.HomePoint,
		"U":      app.HomePoint,
		"W":      app.HomePoint,
		KeyDown:  app.AwayPoint,
		"A":      app.AwayPoint,
		"D":      app.AwayPoint,
		KeyLeft:  app.SwapServer,
		"S":      app.SwapServer,
		"X":      app.SwapServer,
		KeyRight: app.Reset,
		"R":      app.Reset,
		"Z":      app.Reset,
	}
}

// Merge applies overrides keyed by key name with event names as values. An
// empty event name removes the binding.
func (b Bindings) Merge(overrides map[string]string) (Bindings, error) {
	out := make(Bindings, len(b)+len(overrides))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range overrides {
		key := strings.ToUpper(strings.TrimSpace(k))
		if v == "" {
			delete(out, key)
			continue
		}
		ev, err := app.ParseEvent(v)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
		out[key] = ev
	}
	return out, nil
}

// Lookup returns the event bound to key.
func (b Bindings) Lookup(key string) (app.Event, bool) {
	ev, ok := b[key]
	return ev, ok
}

// Decoder reads key names from a byte stream.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: bufio.NewReader(r)} }

// Next returns the next key name. Arrow keys arrive as ESC [ A..D.
// Whitespace other than space is skipped and letters are upper-cased; 'q'
// is reported as KeyQuit.
func (d *Decoder) Next() (string, error) {
	for {
		r, _, err := d.r.ReadRune()
		if err != nil {
			return "", err
		}
		switch {
		case r == 0x1b:
			return d.escape()
		case r == 'q' || r == 'Q' || r == 0x03:
			return KeyQuit, nil
		case r == ' ':
			return KeySpace, nil
		case unicode.IsSpace(r) || unicode.IsControl(r):
			continue
		default:
			return strings.ToUpper(string(r)), nil
		}
	}
}

func (d *Decoder) escape() (string, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return KeyEsc, nil
		}
		return "", err
	}
	if b != '[' && b != 'O' {
		_ = d.r.UnreadByte()
		return KeyEsc, nil
	}
	c, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return KeyEsc, nil
		}
		return "", err
	}
	switch c {
	case 'A':
		return KeyUp, nil
	case 'B':
		return KeyDown, nil
	case 'C':
		return KeyRight, nil
	case 'D':
		return KeyLeft, nil
	default:
		return fmt.Sprintf("ESC[%c", c), nil
	}
}

// Run reads keys from r and calls dispatch for each bound one. It returns
// nil on EOF or quit, ctx.Err() on cancellation, and the first dispatch
// error otherwise. Unbound keys are logged and skipped.
//
// Cancellation is checked between keys; a blocked read is only interrupted
// by the reader itself returning.
func Run(ctx context.Context, r io.Reader, b Bindings, dispatch func(app.Event) error) error {
	dec := NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		if key == KeyQuit {
			slog.Debug("quit requested")
			return nil
		}
		ev, ok := b.Lookup(key)
		if !ok {
			slog.Debug("unbound key", "key", key)
			continue
		}
		if err := dispatch(ev); err != nil {
			return fmt.Errorf("dispatch %s: %w", ev, err)
		}
	}
}
