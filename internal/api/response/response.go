// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/comicshrink/internal/core"
)

// Meta is attached to every successful body.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"` // set for collections
}

// Problem describes a failed request using the core error code.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Envelope is the body of every status server response. Exactly one of
// Data or Error is set.
type Envelope struct {
	Data  any      `json:"data,omitempty"`
	Meta  *Meta    `json:"meta,omitempty"`
	Error *Problem `json:"error,omitempty"`
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Data: data, Meta: &Meta{Timestamp: time.Now().UTC()}})
}

// List writes a collection and its size.
func List[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	write(w, http.StatusOK, Envelope{
		Data: items,
		Meta: &Meta{Timestamp: time.Now().UTC(), Count: &n},
	})
}

// Error writes err as a Problem. The status follows the error code.
func Error(w http.ResponseWriter, err error) {
	write(w, StatusFor(err), Envelope{Error: problemOf(err)})
}

func problemOf(err error) *Problem {
	var ce *core.Error
	if !errors.As(err, &ce) {
		return &Problem{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	}
	p := &Problem{Code: ce.Code, Message: ce.Message}
	if ce.Cause != nil {
		p.Cause = ce.Cause.Error()
	}
	return p
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConfigInvalid), errors.Is(err, core.ErrConfigMissing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
