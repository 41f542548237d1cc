package domain

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type recorder struct {
	name string
	log  *[]string
	got  []MatchState
	err  error
}

func (r *recorder) Update(s MatchState) error {
	*r.log = append(*r.log, r.name)
	r.got = append(r.got, s)
	return r.err
}

type panicker struct{}

func (*panicker) Update(MatchState) error { panic("boom") }

func TestChannelDeliversInAttachOrder(t *testing.T) {
	var order []string
	a := &recorder{name: "a", log: &order}
	b := &recorder{name: "b", log: &order}
	c := NewChannel(nil)
	c.Attach(a)
	c.Attach(b)
	c.Attach(a) // idempotent
	if c.Len() != 2 {
		t.Fatalf("expected 2 listeners, got %d", c.Len())
	}
	c.Notify(NewState(3))
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("unexpected delivery order %v", order)
	}
	if len(a.got) != 1 || a.got[0] != b.got[0] {
		t.Fatalf("listeners should see the same snapshot")
	}
}

// batch is a value listener holding a slice, so == on it would panic.
type batch struct{ seen []MatchState }

func (b batch) Update(MatchState) error { return nil }

func TestChannelRejectsNonComparableListeners(t *testing.T) {
	var order []string
	a := &recorder{name: "a", log: &order}
	c := NewChannel(nil)
	if err := c.Attach(a); err != nil {
		t.Fatalf("attach pointer listener: %v", err)
	}
	if err := c.Attach(batch{}); !errors.Is(err, ErrListenerNotComparable) {
		t.Fatalf("expected ErrListenerNotComparable, got %v", err)
	}
	if err := c.Attach(nil); !errors.Is(err, ErrListenerNotComparable) {
		t.Fatalf("expected ErrListenerNotComparable for nil, got %v", err)
	}
	c.Detach(batch{}) // must not panic
	if c.Len() != 1 {
		t.Fatalf("expected 1 listener, got %d", c.Len())
	}
	c.Notify(NewState(3))
	if strings.Join(order, ",") != "a" {
		t.Fatalf("unexpected delivery %v", order)
	}
}

func TestChannelDetach(t *testing.T) {
	var order []string
	a := &recorder{name: "a", log: &order}
	b := &recorder{name: "b", log: &order}
	c := NewChannel(nil)
	c.Detach(a) // not attached: no-op
	c.Attach(a)
	c.Attach(b)
	c.Detach(a)
	c.Notify(NewState(3))
	if strings.Join(order, ",") != "b" {
		t.Fatalf("expected only b, got %v", order)
	}
}

func TestChannelIsolatesFailingListeners(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	var order []string
	bad := &recorder{name: "bad", log: &order, err: errors.New("render failed")}
	good := &recorder{name: "good", log: &order}

	e := New(3, NewChannel(log))
	e.Channel().Attach(bad)
	e.Channel().Attach(&panicker{})
	e.Channel().Attach(good)

	if err := e.ScorePoint(Home); err != nil {
		t.Fatalf("listener failure leaked to caller: %v", err)
	}
	if len(good.got) != 1 || good.got[0].Points != (Pair{1, 0}) {
		t.Fatalf("later listener did not receive update: %+v", good.got)
	}
	if e.Snapshot().Points != (Pair{1, 0}) {
		t.Fatalf("mutation rolled back by listener failure")
	}
	out := buf.String()
	if !strings.Contains(out, "render failed") || !strings.Contains(out, "panic: boom") {
		t.Fatalf("expected both failures logged, got %q", out)
	}
}

func TestListenerMayDetachDuringNotify(t *testing.T) {
	c := NewChannel(nil)
	calls := 0
	var self ListenerFunc
	self = func(MatchState) error {
		calls++
		c.Detach(&self)
		return nil
	}
	c.Attach(&self)
	c.Notify(NewState(3))
	c.Notify(NewState(3))
	if calls != 1 {
		t.Fatalf("expected one call before detaching, got %d", calls)
	}
}

func TestEveryMutationNotifiesOnce(t *testing.T) {
	e := New(3, nil)
	var seen []MatchState
	f := ListenerFunc(func(s MatchState) error { seen = append(seen, s); return nil })
	e.Channel().Attach(&f)

	e.HomePoint()
	e.AwayPoint()
	e.SwapServer()
	if err := e.Reset(5); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := e.Load(NewState(3)); err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = e.Snapshot()
	if len(seen) != 5 {
		t.Fatalf("expected 5 notifications, got %d", len(seen))
	}
	if seen[1].Points != (Pair{1, 1}) || seen[2].Server != Away || seen[3].SetsTarget != 5 {
		t.Fatalf("unexpected snapshots %+v", seen)
	}
	// snapshots are copies
	seen[0].Points[Home] = 99
	if e.Snapshot().Points[Home] == 99 {
		t.Fatalf("listener mutated engine state")
	}
}
