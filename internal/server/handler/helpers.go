// Package handler holds the inspection API's HTTP handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// writeJSON encodes v before touching the response so an encoding failure
// can still become a clean 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeRaw(w, http.StatusInternalServerError, []byte(`{"error":"response encoding failed"}`))
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathUUID returns the named path value when it parses as a UUID. Otherwise
// it answers 400 and reports false.
func pathUUID(w http.ResponseWriter, r *http.Request, name, what string) (string, bool) {
	id := r.PathValue(name)
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, what+" must be a uuid")
		return "", false
	}
	return id, true
}
