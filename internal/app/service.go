package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
	"github.com/jaminalder/tennis-scoreboard/internal/store"
)

// Errors exposed by the service layer.
var (
	ErrNotFound = errors.New("match not found")
)

// MatchView is a copy of one tracked match.
type MatchView struct {
	ID      string
	State   domain.MatchState
	Created time.Time
	Updated time.Time
}

type match struct {
	id      string
	engine  *domain.Engine
	created time.Time
	updated time.Time
	// last is the most recent snapshot delivered by the engine.
	last domain.MatchState
}

func (m *match) view() MatchView {
	return MatchView{ID: m.id, State: m.last, Created: m.created, Updated: m.updated}
}

type subscriber struct {
	ch        chan []byte
	closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service tracks matches and serialises every engine call behind one lock,
// so scoring events from different sources never interleave. After each
// change the snapshot is saved and pushed to subscribers.
type Service struct {
	mu      sync.Mutex
	matches map[string]*match
	subs    map[string]map[*subscriber]struct{}
	render  func(MatchView) []byte
	store   store.Store
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
	// listeners are attached to every engine the service creates.
	listeners []domain.Listener
}

// Option configures a Service.
type Option func(*Service)

// WithStore saves every change to st.
func WithStore(st store.Store) Option { return func(s *Service) { s.store = st } }

// WithRenderer sets the function producing subscriber payloads.
func WithRenderer(r func(MatchView) []byte) Option { return func(s *Service) { s.render = r } }

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDs overrides match id generation, for tests.
func WithIDs(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// WithListener attaches l to every match the service creates or resumes.
func WithListener(l domain.Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

// NewService creates a service. Without WithStore nothing is persisted.
func NewService(opts ...Option) *Service {
	s := &Service{
		matches: make(map[string]*match),
		subs:    make(map[string]map[*subscriber]struct{}),
		render:  func(MatchView) []byte { return nil },
		store:   store.NewMemory(),
		log:     slog.Default(),
		now:     time.Now,
		newID:   newMatchID,
	}
	for _, o := range opts {
		o(s)
	}
	if s.render == nil {
		s.render = func(MatchView) []byte { return nil }
	}
	return s
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(MatchView) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(MatchView) []byte { return nil }
		return
	}
	s.render = renderer
}

// newMatchLocked builds a match whose engine records its own snapshots.
func (s *Service) newMatchLocked(id string, setsTarget int) *match {
	now := s.now()
	m := &match{id: id, created: now, updated: now}
	ch := domain.NewChannel(s.log.With("match", id))
	rec := domain.ListenerFunc(func(st domain.MatchState) error {
		m.last = st
		return nil
	})
	_ = ch.Attach(&rec)
	for _, l := range s.listeners {
		if err := ch.Attach(l); err != nil {
			s.log.Warn("listener not attached", "match", id, "error", err)
		}
	}
	m.engine = domain.New(setsTarget, ch)
	m.last = m.engine.Snapshot()
	s.matches[id] = m
	return m
}

// CreateMatch starts a new best-of-setsTarget match.
func (s *Service) CreateMatch(ctx context.Context, setsTarget int) (*MatchView, error) {
	if setsTarget <= 0 {
		return nil, fmt.Errorf("create match: %w: %d", domain.ErrInvalidTarget, setsTarget)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.newMatchLocked(s.newID(), setsTarget)
	v := m.view()

	s.log.Info("match created", "match", v.ID, "sets_target", setsTarget)
	if err := s.save(ctx, v); err != nil {
		return &v, err
	}
	return &v, nil
}

// Resume loads the latest saved match into the service. It returns
// store.ErrNotFound when nothing has been saved yet.
func (s *Service) Resume(ctx context.Context) (*MatchView, error) {
	rec, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, rec)
}

// Open loads a saved match by id into the service.
func (s *Service) Open(ctx context.Context, id string) (*MatchView, error) {
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, rec)
}

// load installs a stored record without saving it again, so the match keeps
// its saved timestamp.
func (s *Service) load(ctx context.Context, rec store.Record) (*MatchView, error) {
	if err := rec.State.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", rec.MatchID, err)
	}
	return s.mutate(ctx, rec.MatchID, mutation{create: true, loadedAt: rec.SavedAt},
		func(e *domain.Engine) error { return e.Load(rec.State) })
}

// Restore replaces (or creates) match id with state. Invalid state leaves
// any existing match untouched.
func (s *Service) Restore(ctx context.Context, id string, state domain.MatchState) (*MatchView, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("restore %s: %w", id, err)
	}
	return s.mutate(ctx, id, mutation{create: true}, func(e *domain.Engine) error { return e.Load(state) })
}

// Get returns a copy of the match if present.
func (s *Service) Get(id string) (*MatchView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, false
	}
	v := m.view()
	return &v, true
}

// List returns every tracked match, most recently updated first.
func (s *Service) List() []MatchView {
	s.mu.Lock()
	out := make([]MatchView, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m.view())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Updated.Equal(out[j].Updated) {
			return out[i].ID < out[j].ID
		}
		return out[i].Updated.After(out[j].Updated)
	})
	return out
}

// Score records a point for side.
func (s *Service) Score(ctx context.Context, id string, side domain.Side) (*MatchView, error) {
	return s.mutate(ctx, id, mutation{}, func(e *domain.Engine) error { return e.ScorePoint(side) })
}

// SwapServer hands the serve to the other side.
func (s *Service) SwapServer(ctx context.Context, id string) (*MatchView, error) {
	return s.mutate(ctx, id, mutation{}, func(e *domain.Engine) error { e.SwapServer(); return nil })
}

// Reset restarts the match. A non-positive target keeps the current one.
func (s *Service) Reset(ctx context.Context, id string, setsTarget int) (*MatchView, error) {
	return s.mutate(ctx, id, mutation{}, func(e *domain.Engine) error {
		if setsTarget <= 0 {
			setsTarget = e.Snapshot().SetsTarget
		}
		return e.Reset(setsTarget)
	})
}

// Apply dispatches an input event to the match.
func (s *Service) Apply(ctx context.Context, id string, ev Event) (*MatchView, error) {
	switch ev {
	case HomePoint:
		return s.Score(ctx, id, domain.Home)
	case AwayPoint:
		return s.Score(ctx, id, domain.Away)
	case SwapServer:
		return s.SwapServer(ctx, id)
	case Reset:
		return s.Reset(ctx, id, 0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, string(ev))
	}
}

// Delete forgets the match and removes it from the store. Subscribers are
// closed.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.matches[id]
	delete(s.matches, id)
	for sub := range s.subs[id] {
		sub.close()
	}
	delete(s.subs, id)

	err := s.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if !ok {
			return ErrNotFound
		}
		return nil
	}
	return err
}

type mutation struct {
	// create adds the match when it is not tracked yet.
	create bool
	// loadedAt is set for state read back from the store; the snapshot is
	// not saved again and keeps this timestamp.
	loadedAt time.Time
}

// mutate runs fn on the match engine, saves the resulting snapshot and
// pushes it to subscribers, all under the service lock so the store and the
// subscribers see changes in the order they were made.
func (s *Service) mutate(ctx context.Context, id string, opt mutation, fn func(*domain.Engine) error) (*MatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	isNew := !ok
	if !ok {
		if !opt.create {
			return nil, ErrNotFound
		}
		m = s.newMatchLocked(id, domain.DefaultSetsTarget)
	}
	if err := fn(m.engine); err != nil {
		if isNew {
			delete(s.matches, id)
		}
		return nil, err
	}
	if opt.loadedAt.IsZero() {
		m.updated = s.now()
	} else {
		m.updated = opt.loadedAt
		if isNew {
			m.created = opt.loadedAt
		}
	}
	v := m.view()

	var saveErr error
	if opt.loadedAt.IsZero() {
		saveErr = s.save(ctx, v)
	}
	s.broadcastLocked(id, s.render(v))
	return &v, saveErr
}

// broadcastLocked sends payload to every subscriber of id. Sends never
// block: a subscriber whose buffer is still full is closed and dropped.
func (s *Service) broadcastLocked(id string, payload []byte) {
	dropped := 0
	for sub := range s.subs[id] {
		select {
		case sub.ch <- payload:
		default:
			sub.close()
			delete(s.subs[id], sub)
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Debug("dropped slow subscribers", "match", id, "count", dropped)
	}
}

func (s *Service) save(ctx context.Context, v MatchView) error {
	err := s.store.Save(ctx, store.Record{MatchID: v.ID, SavedAt: v.Updated, State: v.State})
	if err != nil {
		s.log.Error("save failed", "match", v.ID, "error", err)
		return fmt.Errorf("save %s: %w", v.ID, err)
	}
	return nil
}

// History lists saved matches from the store.
func (s *Service) History(ctx context.Context) ([]store.Summary, error) {
	return s.store.History(ctx)
}

// Subscribe registers a subscriber for a match. Returns a channel and an
// unsubscribe func; the channel is closed on unsubscribe, on ctx
// cancellation, or when the subscriber falls behind.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

// Disconnect closes every subscriber channel. Matches stay tracked.
func (s *Service) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, set := range s.subs {
		for sub := range set {
			sub.close()
		}
		delete(s.subs, id)
	}
}

// Close disconnects subscribers and closes the store.
func (s *Service) Close() error {
	s.Disconnect()
	return s.store.Close()
}
