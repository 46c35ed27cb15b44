package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	// Step is set when a registration error leaves the conversation at a
	// step the caller should continue from.
	Step any `json:"step,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteStepError reports err together with the step the caller is now at.
func WriteStepError(w http.ResponseWriter, err error, step any) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		ServiceError(w, "registration failed", err)
		return
	}
	WriteJSON(w, status, errorBody{Error: err.Error(), Step: step})
}

// ReadJSON decodes a single JSON object from the request body, rejecting
// unknown fields.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("body must not be empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}
