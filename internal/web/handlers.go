package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
	"github.com/jaminalder/tennis-scoreboard/internal/domain"
)

var bestOfChoices = []int{1, 3, 5}

type handlers struct {
	svc    *app.Service
	tpl    *templates
	names  domain.Names
	bestOf int
	log    *slog.Logger
}

type boardData struct {
	ID      string
	State   domain.MatchState
	Display domain.Display
	Names   domain.Names
	Events  []app.Event
	Error   string
}

func (h *handlers) boardData(v app.MatchView, errMsg string) boardData {
	return boardData{
		ID:      v.ID,
		State:   v.State,
		Display: domain.Describe(v.State, h.names),
		Names:   h.names,
		Events:  app.Events,
		Error:   errMsg,
	}
}

func (h *handlers) renderBoard(v app.MatchView, errMsg string) []byte {
	b, err := renderTemplate(h.tpl.board, h.boardData(v, errMsg))
	if err != nil {
		h.log.Error("render board", "match", v.ID, "error", err)
	}
	return b
}

func (h *handlers) writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", "error", err)
	}
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	type row struct{ ID, Sets, Status string }
	data := struct {
		BestOf  int
		Targets []int
		Matches []row
	}{BestOf: h.bestOf, Targets: bestOfChoices}
	for _, v := range h.svc.List() {
		d := domain.Describe(v.State, h.names)
		data.Matches = append(data.Matches, row{ID: v.ID, Sets: d.Sets, Status: d.Status})
	}
	body, err := renderTemplate(h.tpl.index, data)
	if err != nil {
		h.log.Error("render index", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	h.writeHTML(w, http.StatusOK, body)
}

// parseBestOf reads the optional best_of form field.
func parseBestOf(r *http.Request) (int, error) {
	s := strings.TrimSpace(r.Form.Get("best_of"))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: best_of %q", domain.ErrInvalidTarget, s)
	}
	return n, nil
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	n, err := parseBestOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if n == 0 {
		n = h.bestOf
	}
	v, err := h.svc.CreateMatch(r.Context(), n)
	if v == nil {
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	if err != nil {
		h.log.Warn("match created but not saved", "match", v.ID, "error", err)
	}
	http.Redirect(w, r, "/match/"+v.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	v, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	body, err := renderTemplate(h.tpl.page, struct{ Board boardData }{h.boardData(*v, "")})
	if err != nil {
		h.log.Error("render page", "match", v.ID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	h.writeHTML(w, http.StatusOK, body)
}

func (h *handlers) event(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_ = r.ParseForm()
	current, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	ev, err := app.ParseEvent(r.Form.Get("event"))
	if err != nil {
		h.writeHTML(w, http.StatusBadRequest, h.renderBoard(*current, "Unknown event"))
		return
	}
	var v *app.MatchView
	if ev == app.Reset {
		n, perr := parseBestOf(r)
		if perr != nil {
			h.writeHTML(w, http.StatusBadRequest, h.renderBoard(*current, "Invalid best of"))
			return
		}
		v, err = h.svc.Reset(r.Context(), id, n)
	} else {
		v, err = h.svc.Apply(r.Context(), id, ev)
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		http.NotFound(w, r)
		return
	case v == nil:
		h.log.Warn("event rejected", "match", id, "event", ev, "error", err)
		h.writeHTML(w, http.StatusBadRequest, h.renderBoard(*current, "Invalid event"))
		return
	}
	var msg string
	if err != nil {
		msg = "Score recorded but not saved"
	}
	h.writeHTML(w, http.StatusOK, h.renderBoard(*v, msg))
}

type stateResponse struct {
	ID      string            `json:"id"`
	State   domain.MatchState `json:"state"`
	Display domain.Display    `json:"display"`
	Created time.Time         `json:"created"`
	Updated time.Time         `json:"updated"`
}

func (h *handlers) response(v app.MatchView) stateResponse {
	return stateResponse{
		ID:      v.ID,
		State:   v.State,
		Display: domain.Describe(v.State, h.names),
		Created: v.Created,
		Updated: v.Updated,
	}
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	v, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.writeJSON(w, http.StatusOK, h.response(*v))
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	views := h.svc.List()
	out := make([]stateResponse, 0, len(views))
	for _, v := range views {
		out = append(out, h.response(v))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, app.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		h.log.Error("delete match", "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

var heartbeatInterval = 15 * time.Second

// writeEvent frames payload as one SSE event; every line gets its own
// data field.
func writeEvent(w io.Writer, name string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", name)
	for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// Non-EventSource requests only get the headers.
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}
