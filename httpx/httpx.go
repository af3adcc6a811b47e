// Package httpx provides helper functions for writing JSON HTTP responses.
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error kinds used in JSON error bodies.
const (
	KindDuplicateCode      = "DuplicateCode"
	KindAllDuplicates      = "AllDuplicates"
	KindEmptyCode          = "EmptyCode"
	KindInvalidMappingRow  = "InvalidMappingRow"
	KindStorageUnavailable = "StorageUnavailable"
	KindDecodeUnavailable  = "DecodeUnavailable"
	KindBadRequest         = "BadRequest"
	KindUnauthorized       = "Unauthorized"
	KindInternal           = "Internal"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorBody.
func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, ErrorBody{Error: kind, Message: message})
}

// DecodeJSON reads a JSON request body of at most limit bytes into v.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
