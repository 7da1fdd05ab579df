package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetTasks returns the task catalog with the caller's progress
func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	views, err := s.tasks.List(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": views})
}

// handleCompleteTask advances the caller's progress on a task
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	result, err := s.tasks.Complete(r.Context(), identity.ID, taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
