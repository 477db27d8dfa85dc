// Package webhook delivers security events to an external HTTP endpoint.
// Delivery is fire-and-forget: the request never waits on it and failures
// are logged, not propagated.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
)

const defaultTimeout = 5 * time.Second

// Notifier posts events as JSON to a configured URL. It implements
// audit.Recorder so it can sit in the same fan-out as the other sinks.
type Notifier struct {
	url    string
	client *http.Client
	wg     sync.WaitGroup
}

// Config configures a Notifier.
type Config struct {
	URL     string
	Timeout time.Duration
}

// New creates a Notifier for the given endpoint.
func New(cfg Config) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

// Record dispatches the event in the background and returns immediately.
func (n *Notifier) Record(_ context.Context, event audit.Event) error {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(event)
	}()
	return nil
}

// deliver posts one event. The request context is detached from the caller:
// the originating HTTP request may complete long before delivery does.
func (n *Notifier) deliver(event audit.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("webhook: marshaling event failed", "error", err, "event_id", event.ID)
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook: building request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("webhook: delivery failed", "error", err, "event_id", event.ID)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		slog.Warn("webhook: endpoint rejected event",
			"status", resp.StatusCode, "event_id", event.ID)
	}
}

// Query returns no events: the notifier keeps no history.
func (n *Notifier) Query(_ context.Context, _ audit.QueryFilter) ([]audit.Event, error) {
	return nil, nil
}

// Close waits for in-flight deliveries to finish.
func (n *Notifier) Close() error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(defaultTimeout):
		return fmt.Errorf("webhook: timed out waiting for in-flight deliveries")
	}
}

// Verify interface compliance.
var _ audit.Recorder = (*Notifier)(nil)
