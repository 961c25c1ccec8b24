package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

// writeError writes {"error": msg}. Server errors also log cause.
func writeError(w http.ResponseWriter, status int, msg string, cause error) {
	if cause != nil && status >= http.StatusInternalServerError {
		slog.Error("api: "+msg, slog.String("error", cause.Error()))
	}
	writeJSON(w, status, errResponse{Error: msg})
}
