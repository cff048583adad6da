package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jjudge-oj/authserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextProfileKey contextKey = "profile"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Msg string `json:"msg"`
}

func profileFromContext(ctx context.Context) (types.Profile, bool) {
	profile, ok := ctx.Value(contextProfileKey).(types.Profile)
	return profile, ok
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Msg: message})
}
