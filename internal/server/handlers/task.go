package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/commundetect/pkg/jobqueue"
)

// statusResponse is the polling payload. Result and parameters are only
// present once the job has completed.
type statusResponse struct {
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Result     string          `json:"result,omitempty"`
	Parameters *taskParameters `json:"parameters,omitempty"`
}

type taskParameters struct {
	Algorithm     string `json:"algorithm"`
	GraphDirected bool   `json:"graphdirected"`
	RootNetwork   string `json:"rootnetwork,omitempty"`
}

// TaskStatus reports the current status of a task. An unknown or expired
// id is reported in the body, not as an HTTP error, so pollers can keep a
// single success path.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.manager.Get(id)
	if errors.Is(err, jobqueue.ErrNotFound) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "notfound"})
		return
	}
	if err != nil {
		h.logger.Error("unable to load task", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unable to load task")
		return
	}

	resp := statusResponse{
		Status:  jobqueue.PublicStatus(job.State),
		Message: job.Message,
	}
	if job.State.Terminal() {
		resp.Result = job.Result
		resp.Parameters = &taskParameters{
			Algorithm:     job.Algorithm,
			GraphDirected: job.Directed,
			RootNetwork:   job.RootNetwork,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TaskDelete requests best-effort cancellation. Cancelling an unknown or
// already-finished task is a no-op reported as notfound.
func (h *Handler) TaskDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.manager.Cancel(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, jobqueue.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]string{"status": "notfound"})
	default:
		h.logger.Error("unable to cancel task", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unable to cancel task")
	}
}
