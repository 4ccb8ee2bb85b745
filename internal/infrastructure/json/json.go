package json

import (
	"encoding/json"
	"errors"
	"net/http"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Envelope is the response shape every API route uses.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func Read(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the success envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	Write(w, status, Envelope{Success: true, Data: v})
}

// WriteSuccess responds with a bare success envelope.
func WriteSuccess(w http.ResponseWriter) {
	Write(w, http.StatusOK, Envelope{Success: true})
}
