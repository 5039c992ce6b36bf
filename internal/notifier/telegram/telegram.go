// Package telegram reports finished batches to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/comicshrink/internal/notifier"
)

const (
	defaultAPIBase = "https://api.telegram.org"

	// maxListedFailures caps the failed archives named in one message.
	maxListedFailures = 10
)

// Telegram sends run summaries through the Bot API sendMessage method.
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New returns a Telegram notifier for one chat.
func New(botToken, chatID string) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends the summary as plain text. Archive names routinely contain
// "_" and "*", so no parse mode is set.
func (t *Telegram) Notify(ctx context.Context, s notifier.Summary) error {
	return t.send(ctx, message{ChatID: t.chatID, Text: formatSummary(s)})
}

type message struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResult struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func formatSummary(s notifier.Summary) string {
	var sb strings.Builder

	mark := "✅"
	if s.Failed > 0 {
		mark = "⚠️"
	}
	fmt.Fprintf(&sb, "%s comicshrink finished\n", mark)
	fmt.Fprintf(&sb, "📚 Archives: %d compressed, %d skipped, %d failed of %d\n",
		s.Compressed, s.Skipped, s.Failed, s.Total)
	fmt.Fprintf(&sb, "💾 Size: %.2f MB → %.2f MB (saved %.2f MB)\n",
		mb(s.BytesBefore), mb(s.BytesAfter), mb(s.Saved()))
	if s.Fallbacks > 0 {
		fmt.Fprintf(&sb, "🖼 Pages kept as-is: %d\n", s.Fallbacks)
	}
	fmt.Fprintf(&sb, "⏱ Elapsed: %s", s.Elapsed.Round(time.Second))

	if len(s.Failures) > 0 {
		sb.WriteString("\n\nFailed:")
		for i, f := range s.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&sb, "\n… and %d more", len(s.Failures)-i)
				break
			}
			sb.WriteString("\n• " + f)
		}
	}
	return sb.String()
}

func mb(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

func (t *Telegram) send(ctx context.Context, m message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("telegram: encoding message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	defer resp.Body.Close()

	var res apiResult
	_ = json.NewDecoder(resp.Body).Decode(&res)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: sendMessage returned %d: %s", resp.StatusCode, res.Description)
	}
	return nil
}
