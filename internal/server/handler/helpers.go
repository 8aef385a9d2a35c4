// Package handler contains the HTTP handlers for the venue API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethervenue/venue/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// errorResponse is the uniform error payload for every endpoint.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// parseListOpts reads limit/offset query parameters with sane defaults and a
// hard cap on page size.
func parseListOpts(r *http.Request) domain.ListOpts {
	opts := domain.ListOpts{Limit: defaultLimit}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = min(n, maxLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	return opts
}

// pathParam extracts a path wildcard registered with the Go 1.22 ServeMux
// pattern syntax.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
