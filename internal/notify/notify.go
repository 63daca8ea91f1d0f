// Package notify delivers finished responses to the operator's channel.
// The channel is an opaque webhook; delivery semantics belong to whatever
// is on the other end.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type Webhook struct {
	url  string
	http *http.Client
	log  *logrus.Logger
}

func NewWebhook(url string, log *logrus.Logger) *Webhook {
	if log == nil {
		log = logrus.New()
	}
	return &Webhook{
		url:  url,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

type payload struct {
	Text string `json:"text"`
}

func (w *Webhook) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send notification: unexpected status %d", resp.StatusCode)
	}
	w.log.WithField("bytes", len(text)).Debug("notification delivered")
	return nil
}
