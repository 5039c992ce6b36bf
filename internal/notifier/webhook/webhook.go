// Package webhook posts batch summaries to an HTTP endpoint as JSON.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newthinker/comicshrink/internal/notifier"
)

// EventBatchFinished is the only event type posted.
const EventBatchFinished = "batch_finished"

// Event is the JSON body of every webhook call.
type Event struct {
	Type        string    `json:"type"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Total       int       `json:"total"`
	Compressed  int       `json:"compressed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Fallbacks   int       `json:"fallbacks"`
	BytesBefore int64     `json:"bytes_before"`
	BytesAfter  int64     `json:"bytes_after"`
	BytesSaved  int64     `json:"bytes_saved"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Failures    []string  `json:"failures"`
	FinishedAt  time.Time `json:"finished_at"`
}

// NewEvent converts a summary to its wire form.
func NewEvent(s notifier.Summary) Event {
	failures := s.Failures
	if failures == nil {
		failures = []string{}
	}
	return Event{
		Type:        EventBatchFinished,
		Input:       s.Input,
		Output:      s.Output,
		Total:       s.Total,
		Compressed:  s.Compressed,
		Skipped:     s.Skipped,
		Failed:      s.Failed,
		Fallbacks:   s.Fallbacks,
		BytesBefore: s.BytesBefore,
		BytesAfter:  s.BytesAfter,
		BytesSaved:  s.Saved(),
		ElapsedMS:   s.Elapsed.Milliseconds(),
		Failures:    failures,
		FinishedAt:  s.FinishedAt.UTC(),
	}
}

// Webhook posts an Event per finished batch.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New returns a Webhook posting to url with the extra headers set.
func New(url string, headers map[string]string) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Notify(ctx context.Context, s notifier.Summary) error {
	body, err := json.Marshal(NewEvent(s))
	if err != nil {
		return fmt.Errorf("webhook: encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: %s returned %s", w.url, resp.Status)
	}
	return nil
}
