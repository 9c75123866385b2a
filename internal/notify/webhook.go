package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/domain"
)

// WebhookNotifier POSTs listing notifications as JSON to a configured URL.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier creates a WebhookNotifier.
// Parameters:
//   - url: webhook endpoint.
// Returns:
//   - *WebhookNotifier: notifier instance.
func NewWebhookNotifier(url string) *WebhookNotifier {
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{client: client, url: url}
}

// Name identifies the channel in logs.
func (n *WebhookNotifier) Name() string { return "webhook" }

type webhookPayload struct {
	Marketplace string   `json:"marketplace"`
	ListingID   string   `json:"listing_id"`
	Title       string   `json:"title"`
	Price       *float64 `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	Location    string   `json:"location,omitempty"`
	URL         string   `json:"url,omitempty"`
	Rating      int      `json:"rating,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Notify delivers one listing.
func (n *WebhookNotifier) Notify(ctx context.Context, listing *domain.Listing, eval *ai.Evaluation) error {
	payload := webhookPayload{
		Marketplace: listing.Marketplace,
		ListingID:   listing.ID,
		Title:       listing.Title,
		Price:       listing.Price,
		Currency:    listing.Currency,
		Location:    listing.Location,
		URL:         listing.URL,
	}
	if eval != nil {
		payload.Rating = eval.Rating
		payload.Explanation = eval.Explanation
	}

	resp, err := n.client.R().SetContext(ctx).SetBody(payload).Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}
