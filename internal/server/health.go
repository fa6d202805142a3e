package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/desertthunder/echo/internal/jobs"
)

// Pinger is satisfied by [*sql.DB].
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports datastore reachability and the next run of each job.
type HealthHandler struct {
	db      Pinger
	entries func() []jobs.Entry
}

// NewHealthHandler creates a [HealthHandler]. entries may be nil.
func NewHealthHandler(db Pinger, entries func() []jobs.Entry) *HealthHandler {
	return &HealthHandler{db: db, entries: entries}
}

type healthJob struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
}

type healthResponse struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Jobs   []healthJob `json:"jobs"`
}

func (h *HealthHandler) Routes() []string {
	return []string{"GET /healthz"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Jobs: []healthJob{}}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	if h.entries != nil {
		for _, e := range h.entries() {
			resp.Jobs = append(resp.Jobs, healthJob{Name: e.Name, Spec: e.Spec, NextRun: e.Next})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
