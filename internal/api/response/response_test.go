// internal/api/response/response_test.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/comicshrink/internal/core"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return env
}

func TestJSON_Object(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	env := decode(t, w)
	if env.Data == nil || env.Error != nil {
		t.Fatalf("want data only, got %+v", env)
	}
	if env.Meta == nil || env.Meta.Timestamp.IsZero() {
		t.Error("missing timestamp")
	}
	if env.Meta.Count != nil {
		t.Error("single objects carry no count")
	}
}

func TestList_Count(t *testing.T) {
	w := httptest.NewRecorder()

	List(w, []string{"a.cbz", "b.cbz"})

	env := decode(t, w)
	if env.Meta == nil || env.Meta.Count == nil || *env.Meta.Count != 2 {
		t.Errorf("count = %v", env.Meta)
	}
}

func TestList_NilIsEmptyArray(t *testing.T) {
	w := httptest.NewRecorder()

	List[string](w, nil)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["data"]) != "[]" {
		t.Errorf("data = %s", raw["data"])
	}
}

func TestError_CoreError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, core.WrapError(core.ErrJobNotFound, errors.New("id abc")))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	env := decode(t, w)
	if env.Error == nil || env.Data != nil || env.Meta != nil {
		t.Fatalf("want error only, got %+v", env)
	}
	if env.Error.Code != "JOB_NOT_FOUND" || env.Error.Cause != "id abc" {
		t.Errorf("problem = %+v", env.Error)
	}
}

func TestError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
	if env := decode(t, w); env.Error == nil || env.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("problem = %+v", env.Error)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrJobNotFound, http.StatusNotFound},
		{core.ErrConfigInvalid, http.StatusBadRequest},
		{core.ErrConfigMissing, http.StatusBadRequest},
		{core.ErrPackFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
