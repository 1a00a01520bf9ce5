package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// errorBody matches the error shape the handlers emit.
type errorBody struct {
	Error      string `json:"error"`
	ErrorCode  int    `json:"error_code"`
	RetryAfter *int   `json:"retry_after,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeBody(w, status, errorBody{Error: msg, ErrorCode: status})
}

// writeTooManyRequests rounds wait up to whole seconds, minimum one.
func writeTooManyRequests(w http.ResponseWriter, wait time.Duration) {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeBody(w, http.StatusTooManyRequests, errorBody{
		Error:      "too many requests",
		ErrorCode:  http.StatusTooManyRequests,
		RetryAfter: &secs,
	})
}

func writeBody(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
