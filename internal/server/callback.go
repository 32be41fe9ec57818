package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/quill-ocr/quill/internal/config"
	"github.com/quill-ocr/quill/internal/queue"
	"github.com/quill-ocr/quill/internal/storage"
)

// CallbackPayload is the body POSTed to the ingest callback URL after
// each scan. The upstream system keys on group_uuid and the original
// image filename and flips the file status to "upgrading".
type CallbackPayload struct {
	GroupUUID string `json:"group_uuid"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
}

// CallbackClient delivers ingest completion callbacks with retries, so
// a briefly unreachable upstream does not lose events.
type CallbackClient struct {
	client         *http.Client
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewCallbackClient builds a callback client from configuration. Zero
// values fall back to the defaults.
func NewCallbackClient(cfg config.CallbackConfig) *CallbackClient {
	def := config.DefaultConfig().Server.Callback
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.InitialBackoffMS <= 0 {
		cfg.InitialBackoffMS = def.InitialBackoffMS
	}
	if cfg.MaxBackoffMS <= 0 {
		cfg.MaxBackoffMS = def.MaxBackoffMS
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = def.TimeoutSec
	}

	return &CallbackClient{
		client:         &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		attempts:       cfg.Attempts,
		initialBackoff: time.Duration(cfg.InitialBackoffMS) * time.Millisecond,
		maxBackoff:     time.Duration(cfg.MaxBackoffMS) * time.Millisecond,
	}
}

// Send posts the completion callback for one scan. An empty URL is a
// no-op. Delivery is retried with doubling backoff; exhausting the
// attempts only logs, the event is not fatal to the ingest.
func (c *CallbackClient) Send(ctx context.Context, url, groupUUID, filename string) {
	if url == "" {
		return
	}

	payload := CallbackPayload{
		GroupUUID: groupUUID,
		Filename:  filename,
		Status:    storage.StatusUpgrading,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode callback payload", "error", err)
		return
	}

	backoff := c.initialBackoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.post(ctx, url, body)
		if err == nil {
			callbacksTotal.WithLabelValues("success").Inc()
			slog.Debug("Callback delivered", "url", url, "filename", filename, "attempt", attempt)
			return
		}
		slog.Warn("Callback delivery failed",
			"url", url,
			"filename", filename,
			"attempt", attempt,
			"error", err)

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			callbacksTotal.WithLabelValues("error").Inc()
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
	callbacksTotal.WithLabelValues("error").Inc()
}

func (c *CallbackClient) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %s", resp.Status)
	}
	return nil
}

// NotifyProcessed implements queue.Notifier, so workers deliver the
// same callbacks as the in-process ingest flow.
func (c *CallbackClient) NotifyProcessed(ctx context.Context, task queue.ScanTask) {
	c.Send(ctx, task.Callback, task.GroupID, filepath.Base(task.ImagePath))
}
