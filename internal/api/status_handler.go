package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/concrawl/internal/api/shared"
	"github.com/phrazzld/concrawl/internal/redact"
	"github.com/phrazzld/concrawl/internal/tracker"
)

// StateSource is the view of task state the handler serves.
type StateSource interface {
	Snapshot() []tracker.TaskState
	Get(name string) (tracker.TaskState, bool)
	Counts() map[tracker.Status]int
}

// TasksResponse is the body of GET /tasks.
type TasksResponse struct {
	SessionID uuid.UUID              `json:"session_id"`
	Uptime    string                 `json:"uptime"`
	Counts    map[tracker.Status]int `json:"counts"`
	Tasks     []tracker.TaskState    `json:"tasks"`
}

// StatusHandler serves the tracker's state.
type StatusHandler struct {
	sessionID uuid.UUID
	source    StateSource
	started   time.Time
}

// NewStatusHandler creates a handler for the session's tracker.
func NewStatusHandler(sessionID uuid.UUID, source StateSource) *StatusHandler {
	return &StatusHandler{sessionID: sessionID, source: source, started: time.Now()}
}

// Health handles GET /healthz.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTasks handles GET /tasks. An optional ?status= filter keeps only tasks
// in that status.
func (h *StatusHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.source.Snapshot()
	if status := tracker.Status(r.URL.Query().Get("status")); status != "" {
		kept := tasks[:0]
		for _, s := range tasks {
			if s.Status == status {
				kept = append(kept, s)
			}
		}
		tasks = kept
	}
	for i := range tasks {
		tasks[i] = sanitize(tasks[i])
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TasksResponse{
		SessionID: h.sessionID,
		Uptime:    time.Since(h.started).Round(time.Millisecond).String(),
		Counts:    h.source.Counts(),
		Tasks:     tasks,
	})
}

// GetTask handles GET /tasks/{name}.
func (h *StatusHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state, ok := h.source.Get(name)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrTaskNotFound, name)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sanitize(state))
}

func sanitize(s tracker.TaskState) tracker.TaskState {
	s.Error = redact.String(s.Error)
	s.Description = redact.String(s.Description)
	return s
}
