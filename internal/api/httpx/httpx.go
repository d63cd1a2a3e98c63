package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope wraps every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, status int, msg string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

// WriteError writes a failed envelope. code is a stable machine-readable tag.
func WriteError(w http.ResponseWriter, status int, code, msg string, data any) {
	WriteJSON(w, status, Envelope{Success: false, Code: code, Message: msg, Data: data})
}

// DecodeJSON reads a single JSON object from r into v. Fields v does not
// declare are ignored so clients may send extra form state.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
