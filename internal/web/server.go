package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

// Option configures the HTTP server.
type Option func(*handlers)

// WithNames sets the labels shown for each side.
func WithNames(n domain.Names) Option { return func(h *handlers) { h.names = n } }

// WithBestOf sets the target used when a create request does not name one.
func WithBestOf(n int) Option { return func(h *handlers) { h.bestOf = n } }

// WithLogger sets the request logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(h *handlers) { h.log = l } }

// NewServer wires routes and returns an http.Handler. It installs the board
// fragment as the service renderer so subscribers receive swap-ready HTML.
func NewServer(s *app.Service, opts ...Option) http.Handler {
	h := &handlers{
		svc:    s,
		tpl:    loadTemplates(),
		names:  domain.DefaultNames,
		bestOf: domain.DefaultSetsTarget,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	s.SetRenderer(func(v app.MatchView) []byte { return h.renderBoard(v, "") })

	r := chi.NewRouter()
	r.Get("/", h.index)
	r.Get("/matches", h.list)
	r.Post("/match", h.create)
	r.Route("/match/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Delete("/", h.remove)
		r.Post("/event", h.event)
		r.Get("/state", h.state)
		r.Get("/events", h.events)
	})
	return r
}
