package canopy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AssistantStatus string

const (
	StatusWaitingAuth AssistantStatus = "waiting_auth"
	StatusRunning     AssistantStatus = "running"
	StatusIdle        AssistantStatus = "idle"
)

func (s AssistantStatus) valid() bool {
	switch s {
	case StatusWaitingAuth, StatusRunning, StatusIdle:
		return true
	}
	return false
}

// StatusEvent is the callback payload the assistant posts to the loopback
// endpoint, stamped with an id and receive time on the way through.
type StatusEvent struct {
	ID      string          `json:"id"`
	Path    string          `json:"path"`
	Status  AssistantStatus `json:"status"`
	Message string          `json:"message,omitempty"`
	At      time.Time       `json:"at"`
}

// StatusBridge receives assistant status callbacks and forwards them: every
// event goes to the subscriber channel and nudges the supervisor's activity
// record; waiting_auth additionally raises a desktop notification so an
// unattended session does not sit blocked on a login prompt.
type StatusBridge struct {
	sup    *Supervisor
	notify bool
	events chan StatusEvent
}

func NewStatusBridge(sup *Supervisor, notify bool) *StatusBridge {
	return &StatusBridge{
		sup:    sup,
		notify: notify,
		events: make(chan StatusEvent, 64),
	}
}

// Events is the UI-facing feed. Events are dropped, not blocked on, when no
// subscriber keeps up.
func (b *StatusBridge) Events() <-chan StatusEvent {
	return b.events
}

func (b *StatusBridge) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/status", b.handleStatus)
	return r
}

// Serve blocks on the loopback listener. The transport is deliberately
// plain http.ListenAndServe: the bridge only ever binds a local address.
func (b *StatusBridge) Serve(addr string) error {
	debugLogf("status bridge listening addr=%q", addr)
	return http.ListenAndServe(addr, b.Router())
}

func (b *StatusBridge) handleStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path    string          `json:"path"`
		Status  AssistantStatus `json:"status"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "malformed status payload", http.StatusBadRequest)
		return
	}
	if payload.Path == "" || !payload.Status.valid() {
		http.Error(w, "status must name a path and one of waiting_auth|running|idle", http.StatusBadRequest)
		return
	}

	event := StatusEvent{
		ID:      uuid.NewString(),
		Path:    payload.Path,
		Status:  payload.Status,
		Message: payload.Message,
		At:      time.Now(),
	}
	debugLogf("status event id=%s path=%q status=%s", event.ID, event.Path, event.Status)

	b.sup.Touch(event.Path)
	select {
	case b.events <- event:
	default:
		debugLogf("status event dropped id=%s: no subscriber", event.ID)
	}

	if event.Status == StatusWaitingAuth && b.notify {
		body := event.Message
		if body == "" {
			body = "assistant is waiting for authentication in " + event.Path
		}
		if err := beeep.Notify("canopy", body, ""); err != nil {
			debugLogf("notification failed: %v", err)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}
