package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"vrp/internal/auth"
	"vrp/internal/opt"
	"vrp/internal/store"
)

// ErrQueueFull is returned when the job queue cannot take another job.
var ErrQueueFull = errors.New("job queue full")

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeTypedProblem(w, "about:blank", status, title, detail, instance)
}

func writeTypedProblem(w http.ResponseWriter, typ string, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     typ,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if kind := opt.ErrorKind(err); kind != "" {
		writeTypedProblem(w, "urn:vrp:error:"+kind, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	switch {
	case errors.Is(err, errBadJSON):
		writeTypedProblem(w, "urn:vrp:error:invalid_json", http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrBadCursor):
		writeTypedProblem(w, "urn:vrp:error:invalid_cursor", http.StatusBadRequest, "Invalid cursor", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	case errors.Is(err, ErrQueueFull):
		writeProblem(w, http.StatusServiceUnavailable, "Queue full", err.Error(), r.URL.Path)
	case errors.Is(err, auth.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
	default:
		log.Printf("op=http.error path=%s err=%v", r.URL.Path, err)
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), r.URL.Path)
	}
}

var errBadJSON = errors.New("invalid JSON body")

// decodeJSON reads one JSON document, rejecting unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data after document", errBadJSON)
	}
	return nil
}
