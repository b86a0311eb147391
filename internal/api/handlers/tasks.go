package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nikhilbhutani/docconvert/internal/tasks"
)

type TaskHandler struct {
	svc *tasks.Service
}

func NewTaskHandler(svc *tasks.Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, rec.Response())
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.Delete(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, r, err, "task not found")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Batch(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.BatchStatus(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeServiceError(w, r, err, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
