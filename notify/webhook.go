package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"lawnquote/decision/lead"
	"lawnquote/decision/quote"
	"lawnquote/pkg/platform"
)

// WebhookPayload is the JSON body forwarded to the CRM.
type WebhookPayload struct {
	Lead             *lead.Lead `json:"lead"`
	DisplayedMonthly string     `json:"displayedMonthly"`
	Term             string     `json:"term"`
	PayUpfront       bool       `json:"payUpfront"`
	Segments         []string   `json:"segments"`
	AppliedPromos    []string   `json:"appliedPromos"`
}

// Webhook forwards each lead to an external endpoint with retries. It only
// acts on the business notification.
type Webhook struct {
	url    string
	token  string
	client *platform.HTTPClient
}

// NewWebhook creates a forwarder. token, when set, is sent as a bearer token.
func NewWebhook(url, token string, retries int, timeout time.Duration) *Webhook {
	return &Webhook{url: url, token: token, client: platform.NewHTTPClient(retries, timeout)}
}

func (w *Webhook) NotifyBusiness(ctx context.Context, l *lead.Lead, q *quote.Quote) error {
	segs := make([]string, len(l.Segments))
	for i, s := range l.Segments {
		segs[i] = string(s)
	}
	body, err := json.Marshal(WebhookPayload{
		Lead:             l,
		DisplayedMonthly: l.DisplayedMonthly,
		Term:             string(l.Term),
		PayUpfront:       l.PayUpfront,
		Segments:         segs,
		AppliedPromos:    l.AppliedPromotions,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var headers map[string]string
	if w.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + w.token}
	}
	resp, err := w.client.PostJSON(ctx, w.url, body, headers)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) NotifyCustomer(context.Context, *lead.Lead, *quote.Quote) error {
	return nil
}

var _ lead.Notifier = (*Webhook)(nil)
