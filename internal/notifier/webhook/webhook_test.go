package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/comicshrink/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ notifier.Notifier = (*Webhook)(nil)

func TestNew_RequiresURL(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestNewEvent(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := NewEvent(notifier.Summary{
		Total:       2,
		BytesBefore: 3000,
		BytesAfter:  1000,
		Elapsed:     1500 * time.Millisecond,
		FinishedAt:  finished,
	})

	assert.Equal(t, EventBatchFinished, ev.Type)
	assert.Equal(t, int64(2000), ev.BytesSaved)
	assert.Equal(t, int64(1500), ev.ElapsedMS)
	assert.NotNil(t, ev.Failures, "failures encode as [] rather than null")
	assert.Equal(t, time.UTC, ev.FinishedAt.Location())
	assert.True(t, ev.FinishedAt.Equal(finished))
}

func TestWebhook_Notify(t *testing.T) {
	var got Event
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, err := New(srv.URL, map[string]string{"Authorization": "Bearer t0ken"})
	require.NoError(t, err)

	err = w.Notify(context.Background(), notifier.Summary{
		Input:      "/comics",
		Total:      3,
		Compressed: 2,
		Failed:     1,
		Failures:   []string{"/comics/broken.cbz"},
		FinishedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, EventBatchFinished, got.Type)
	assert.Equal(t, "/comics", got.Input)
	assert.Equal(t, []string{"/comics/broken.cbz"}, got.Failures)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "Bearer t0ken", headers.Get("Authorization"))
}

func TestWebhook_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w, err := New(srv.URL, nil)
	require.NoError(t, err)
	err = w.Notify(context.Background(), notifier.Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhook_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, err := New(srv.URL, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, w.Notify(ctx, notifier.Summary{}))
}
