package common

import (
	"encoding/json"
	"net/http"
)

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders the canonical error shape consumed by the storefront:
// a flat body with a caller-safe message and a machine-readable code. Extra
// fields (e.g. verified:false) can be attached without changing the shape.
func JSONError(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	body := map[string]any{
		"error": message,
		"code":  code,
	}
	for k, v := range extra {
		body[k] = v
	}
	JSON(w, status, body)
}
