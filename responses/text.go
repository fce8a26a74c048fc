package responses

import (
	"log"
	"net/http"
	"strconv"
)

// WriteText writes msg as a UTF-8 plain text response.
func WriteText(w http.ResponseWriter, HTTPStatusCode int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(msg)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(HTTPStatusCode) // Response Header Sent & Frozen
	if _, err := w.Write([]byte(msg)); err != nil {
		log.Printf("[ERROR] writing text to response: %v", err)
	}
}
