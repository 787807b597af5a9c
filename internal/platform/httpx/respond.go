// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes bounds request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes a single JSON value from the request body into target.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
