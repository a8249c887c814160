package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"sentinel/internal/dto"
	"sentinel/internal/logger"
)

// maxJSONBody limits JSON request bodies posted by devices and the FL coordinator.
const maxJSONBody = 1 << 20

// writeJSON encodes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, logger *logger.Logger, status int, message string) {
	writeJSON(w, logger, status, dto.ErrorResponse{Error: message})
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// limitParam reads the "limit" query parameter, capped at max.
func limitParam(r *http.Request, def, max int) int {
	limit := atoiDefault(r.URL.Query().Get("limit"), def)
	if limit > max {
		return max
	}
	return limit
}
