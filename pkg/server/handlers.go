package server

import (
	"encoding/json"
	"net/http"
	"time"

	"bridgypoll/pkg/alarms"
	"bridgypoll/pkg/store"

	"github.com/go-chi/chi/v5"
)

type handlers struct {
	deps Deps
}

type siloView struct {
	Name    string `json:"name"`
	Alarm   string `json:"alarm"`
	Enabled bool   `json:"enabled"`
}

type pollView struct {
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
}

type stateView struct {
	*store.SiloState
	Enabled  bool      `json:"enabled"`
	LastPoll *pollView `json:"last_poll,omitempty"`
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.deps.StartTime).Round(time.Second).String(),
	})
}

func (h *handlers) listAlarms(w http.ResponseWriter, r *http.Request) {
	all, err := h.deps.Registry.All(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if all == nil {
		all = []alarms.Alarm{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handlers) listSilos(w http.ResponseWriter, r *http.Request) {
	out := []siloView{}
	for _, s := range h.deps.Catalog.All() {
		out = append(out, siloView{
			Name:    s.Name(),
			Alarm:   s.AlarmName(),
			Enabled: h.deps.Catalog.IsEnabled(s.Name()),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) siloState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "silo")
	if _, ok := h.deps.Catalog.Lookup(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown silo"})
		return
	}

	state, err := store.LoadSiloState(r.Context(), h.deps.Local, name)
	if err != nil {
		h.fail(w, err)
		return
	}

	view := stateView{SiloState: state, Enabled: h.deps.Catalog.IsEnabled(name)}
	if h.deps.Scheduler != nil {
		if last, ok := h.deps.Scheduler.LastResult(name); ok {
			view.LastPoll = &pollView{
				Status:   string(last.Status),
				Started:  last.Started,
				Duration: last.Duration.String(),
			}
			if last.Err != nil {
				view.LastPoll.Error = last.Err.Error()
			}
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	h.deps.Logger.WithError(err).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
