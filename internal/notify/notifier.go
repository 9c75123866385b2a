// Package notify delivers qualifying listings to the configured channels.
// Delivery failures are logged by the caller and are never fatal to a run.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/domain"
)

// Notifier delivers one listing notification.
type Notifier interface {
	// Name identifies the channel in logs.
	Name() string

	// Notify delivers one listing with its optional AI evaluation.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - listing: qualifying listing.
	//   - eval: AI evaluation, nil when evaluation is disabled or failed.
	// Returns:
	//   - error: non-nil on delivery failure.
	Notify(ctx context.Context, listing *domain.Listing, eval *ai.Evaluation) error
}

// FormatText renders a listing as a plain-text notification body.
// Parameters:
//   - listing: listing to render.
//   - eval: optional AI evaluation.
// Returns:
//   - string: message text.
func FormatText(listing *domain.Listing, eval *ai.Evaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", listing.Title)
	if listing.HasPrice() {
		fmt.Fprintf(&b, "Price: %.2f %s\n", *listing.Price, listing.Currency)
	} else {
		b.WriteString("Price: not stated\n")
	}
	if listing.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", listing.Location)
	}
	if eval != nil && eval.Rating > 0 {
		fmt.Fprintf(&b, "Rating: %d/5 (%s)\n", eval.Rating, eval.Explanation)
	}
	if listing.URL != "" {
		b.WriteString(listing.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
