package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// ErrListenerNotComparable is returned by Attach for nil listeners and for
// listeners whose dynamic type cannot be compared with ==.
var ErrListenerNotComparable = errors.New("listener must be a non-nil comparable value")

func isComparable(l Listener) bool {
	t := reflect.TypeOf(l)
	return t != nil && t.Comparable()
}

// Listener receives a snapshot after every engine mutation. Implementations
// must be comparable (usually pointers) so Attach and Detach can find them;
// Attach rejects any that are not.
type Listener interface {
	Update(MatchState) error
}

// ListenerFunc adapts a function to Listener. Funcs are not comparable, so
// only *ListenerFunc implements the interface.
type ListenerFunc func(MatchState) error

func (f *ListenerFunc) Update(s MatchState) error { return (*f)(s) }

// Channel delivers snapshots synchronously to attached listeners, in the
// order they were attached. A failing listener is logged and skipped.
type Channel struct {
	mu        sync.Mutex
	listeners []Listener
	log       *slog.Logger
}

// NewChannel returns an empty channel. A nil logger uses slog.Default().
func NewChannel(log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{log: log}
}

// Attach adds l. Attaching a listener that is already attached does nothing.
func (c *Channel) Attach(l Listener) error {
	if !isComparable(l) {
		return fmt.Errorf("%w: %T", ErrListenerNotComparable, l)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, have := range c.listeners {
		if have == l {
			return nil
		}
	}
	c.listeners = append(c.listeners, l)
	return nil
}

// Detach removes l if present.
func (c *Channel) Detach(l Listener) {
	if !isComparable(l) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, have := range c.listeners {
		if have == l {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Len reports the number of attached listeners.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Notify hands s to every listener. Listeners may attach or detach during
// delivery; the change takes effect on the next Notify.
func (c *Channel) Notify(s MatchState) {
	c.mu.Lock()
	ls := make([]Listener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.Unlock()

	for i, l := range ls {
		if err := deliver(l, s); err != nil {
			c.log.Warn("listener failed", "index", i, "listener", fmt.Sprintf("%T", l), "error", err)
		}
	}
}

func deliver(l Listener, s MatchState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.Update(s)
}
