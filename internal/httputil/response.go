// Package httputil holds the JSON response helpers shared by the debug routes.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/tinysa/internal/monitoring"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("encoding json response: %v", err)
	}
}

// WriteJSONOK writes a 200 JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// InternalServerError reports err as a 500, prefixed with what was being
// attempted, and logs it.
func InternalServerError(w http.ResponseWriter, doing string, err error) {
	msg := fmt.Sprintf("%s: %v", doing, err)
	monitoring.Debugf("debug route: %s", msg)
	WriteJSONError(w, http.StatusInternalServerError, msg)
}
