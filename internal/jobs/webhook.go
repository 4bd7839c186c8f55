package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/service"
)

// WebhookDelivery posts the summary as JSON to an analytics webhook and
// then pings a healthchecks URL.  Either URL may be empty.
type WebhookDelivery struct {
	WebhookURL string
	PingURL    string
	Client     *http.Client
}

// NewWebhookDelivery returns a delivery with a 10s HTTP timeout.
func NewWebhookDelivery(webhookURL, pingURL string) *WebhookDelivery {
	return &WebhookDelivery{
		WebhookURL: webhookURL,
		PingURL:    pingURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver implements service.SummaryDelivery.  The ping only happens after
// a successful post so a failing webhook shows up as a missed check-in.
func (d *WebhookDelivery) Deliver(ctx context.Context, sum service.DailySummary) error {
	if d.WebhookURL == "" {
		log.Printf("summary-job: no webhook configured, summary for window from %s not posted", sum.WindowStart.Format(time.RFC3339))
	} else {
		body, err := json.Marshal(sum)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if err := d.do(req); err != nil {
			return fmt.Errorf("post summary: %w", err)
		}
	}

	if d.PingURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.PingURL, nil)
	if err != nil {
		return err
	}
	if err := d.do(req); err != nil {
		return fmt.Errorf("ping healthchecks: %w", err)
	}
	return nil
}

func (d *WebhookDelivery) do(req *http.Request) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	return nil
}
