package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/susu3304/sessionbook/internal/booking"
)

func generateRandomString(length int) string {
	// base64 grows input by ~4/3, so length bytes is always enough
	b := make([]byte, length)
	rand.Read(b)
	encoded := base64.URLEncoding.EncodeToString(b)
	if len(encoded) > length {
		return encoded[:length]
	}
	return encoded
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeError maps a domain error onto its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch booking.KindOf(err) {
	case booking.KindNotFound:
		status = http.StatusNotFound
	case booking.KindConflict:
		status = http.StatusConflict
	case booking.KindUnauthorized:
		status = http.StatusForbidden
	case booking.KindInvalid:
		status = http.StatusBadRequest
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("api: [%s] %s %s failed: %v", requestIDFrom(r.Context()), r.Method, r.URL.Path, err)
		if booking.CodeOf(err) == "INTERNAL" {
			message = "internal server error"
		}
	}
	writeErrorCode(w, status, booking.CodeOf(err), message)
}

func sessionIDVar(r *http.Request) (booking.SessionID, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return booking.SessionID(id), true
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
