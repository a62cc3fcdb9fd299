// Package httputil writes the JSON response shapes shared by the file and
// playback endpoints. Errors always serialise as {"error": msg} so the
// dashboard surfaces one alert format regardless of which handler failed.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/gantry-data/traffic.replay/internal/monitoring"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("[http] encoding response: %v", err)
	}
}

// WriteJSONOK writes data with a 200 status.
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

// WriteJSONError writes the error body with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// MethodNotAllowed rejects a request whose method the endpoint does not
// serve.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest reports an unusable request parameter or body.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound reports an unknown dataset or path.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// InternalServerError reports a failure the client cannot correct.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}
