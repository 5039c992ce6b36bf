package main

import (
	"context"
	"time"

	"github.com/newthinker/comicshrink/internal/config"
	"github.com/newthinker/comicshrink/internal/job"
	"github.com/newthinker/comicshrink/internal/notifier"
	"github.com/newthinker/comicshrink/internal/notifier/telegram"
	"github.com/newthinker/comicshrink/internal/notifier/webhook"
	"github.com/newthinker/comicshrink/internal/pipeline"
)

// buildNotifiers registers every notifier the config enables.
func buildNotifiers(cfg config.NotifyConfig) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()

	if cfg.Webhook.URL != "" {
		w, err := webhook.New(cfg.Webhook.URL, cfg.Webhook.Headers)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(w); err != nil {
			return nil, err
		}
	}

	if cfg.Telegram.BotToken != "" {
		tg, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(tg); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func runSummary(input, output string, s *pipeline.Summary, jobs []job.Job) notifier.Summary {
	var failures []string
	for _, j := range jobs {
		if j.Status == job.StatusFailed {
			failures = append(failures, j.Source)
		}
	}
	return notifier.Summary{
		Input:       input,
		Output:      output,
		Total:       s.Total,
		Compressed:  s.Compressed,
		Skipped:     s.Skipped,
		Failed:      s.Failed,
		Fallbacks:   s.Fallbacks,
		BytesBefore: s.TotalInputBytes,
		BytesAfter:  s.TotalOutputBytes,
		Elapsed:     s.Elapsed,
		Failures:    failures,
		FinishedAt:  time.Now(),
	}
}

// notifyTimeout bounds summary delivery, which runs after an interrupt too.
const notifyTimeout = 30 * time.Second

func notifyContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), notifyTimeout)
}
