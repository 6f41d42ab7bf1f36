// Package respond writes the {code, message, data} envelope every endpoint returns.
package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Envelope wraps every API response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a successful response carrying data.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an error response with no data.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, Envelope{Code: status, Message: message})
}

// Fail writes an error response whose data tells the client how to recover,
// such as the offending field or the seconds to wait.
func Fail(w http.ResponseWriter, status int, message string, detail any) {
	write(w, Envelope{Code: status, Message: message, Data: detail})
}

func write(w http.ResponseWriter, payload Envelope) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	// Bodies may hold access tokens or reset tokens.
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(payload.Code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("response encode failed", zap.Int("status", payload.Code), zap.Error(err))
	}
}
