package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/karavan-app/karavan/internal/goal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine failures to API responses. Invalid transitions
// are the user's state being behind, not a bug, so the message stays calm and
// generic. Integrity failures surface the record as corrupted.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goal.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "this action isn't available right now")
	case errors.Is(err, goal.ErrDataIntegrity):
		writeError(w, http.StatusUnprocessableEntity, "this goal's data looks corrupted")
	default:
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}
