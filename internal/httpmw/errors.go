package httpmw

import (
	"encoding/json"
	"net/http"

	"github.com/postgate/postgate/internal/apperr"
)

// errorEnvelope is the wire shape every failed /query response takes.
type errorEnvelope struct {
	Error string     `json:"error"`
	Code  apperr.Code `json:"code"`
}

// WriteError maps err to its HTTP status via the error table and writes the
// JSON error envelope. Grounded on the teacher's
// utils.WriteErrorAndStatusCode, generalized from a plain-text body to the
// coded JSON envelope the gateway's error taxonomy requires.
func WriteError(w http.ResponseWriter, err error) {
	ce := apperr.AsCoded(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ce.StatusCode())
	json.NewEncoder(w).Encode(errorEnvelope{Error: ce.Message, Code: ce.Code})
}
