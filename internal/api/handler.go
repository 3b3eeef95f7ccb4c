// Package api is the master's LAN HTTP surface: job CRUD, health, the event
// stream and metrics. Clients and tablets on the shop floor talk to this;
// nothing here assumes a trusted caller beyond the shared LAN key.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/floorsync/floorsync/internal/event"
	"github.com/floorsync/floorsync/internal/job"
	"github.com/floorsync/floorsync/internal/liveness"
	"github.com/floorsync/floorsync/internal/metrics"
	"github.com/floorsync/floorsync/internal/store"
)

// maxBodyBytes caps request bodies so a misbehaving client cannot exhaust
// memory on the master.
const maxBodyBytes = 5 << 20

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	store   *store.Store
	tracker *liveness.Tracker
	bus     *event.Bus
	version string
	port    int
}

// NewHandler constructs a Handler with the given dependencies.
func NewHandler(s *store.Store, tracker *liveness.Tracker, bus *event.Bus, version string, port int) *Handler {
	return &Handler{store: s, tracker: tracker, bus: bus, version: version, port: port}
}

// RegisterRoutes registers all API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("PUT /jobs/{id}", h.UpdateJob)
	mux.HandleFunc("DELETE /jobs/{id}", h.DeleteJob)
	mux.HandleFunc("GET /events", h.StreamEvents)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/", h.NotFound)
}

// Health handles GET /health. No auth: clients and the UI use it to probe
// whether a master is reachable and what it is.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"role":    "master",
		"version": h.version,
		"port":    h.port,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ListJobs handles GET /jobs and returns the full post-archival job list,
// most recent first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read jobs")
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": jobs})
}

// jobEnvelope matches both body shapes the clients send: `{"job": {...}}`
// and a bare job object.
type jobEnvelope struct {
	Job json.RawMessage `json:"job"`
}

type patchEnvelope struct {
	Patch json.RawMessage `json:"patch"`
}

// CreateJob handles POST /jobs: validate, assign id and job number, prepend,
// persist, notify.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var env jobEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if env.Job != nil {
		body = env.Job
	}
	var j job.Job
	if err := json.Unmarshal(body, &j); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job payload")
		return
	}

	stored, err := h.store.Add(&j)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.JobsMutatedTotal.WithLabelValues(event.ActionAdd).Inc()
	h.bus.Publish(event.Event{Name: event.JobsUpdated, Source: "lan", Action: event.ActionAdd, ID: stored.ID})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": stored})
}

// UpdateJob handles PUT /jobs/{id}: merge the patch, apply completion side
// effects, persist, notify. 404 for unknown ids.
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var env patchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if env.Patch != nil {
		body = env.Patch
	}
	var p job.Patch
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch payload")
		return
	}

	updated, err := h.store.Update(id, &p)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.JobsMutatedTotal.WithLabelValues(event.ActionUpdate).Inc()
	h.bus.Publish(event.Event{Name: event.JobsUpdated, Source: "lan", Action: event.ActionUpdate, ID: id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": updated})
}

// DeleteJob handles DELETE /jobs/{id}. 404 for unknown ids, including ids
// already removed by an earlier call.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.store.Delete(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	metrics.JobsMutatedTotal.WithLabelValues(event.ActionDelete).Inc()
	h.bus.Publish(event.Event{Name: event.JobsUpdated, Source: "lan", Action: event.ActionDelete, ID: id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "removedId": id})
}

// NotFound is the fallback for unknown routes; even those answer with the
// structured error shape.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errors.New("body too large")
		}
		return nil, errors.New("failed to read body")
	}
	if len(body) == 0 {
		return []byte("{}"), nil
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}
