// Package ai integrates the optional listing evaluation collaborator. The
// core only depends on the Evaluator interface; the bundled implementation
// talks to an OpenAI-compatible chat completion endpoint.
package ai

import (
	"context"

	"github.com/calebh/marketscout/internal/domain"
)

// Evaluation is the collaborator's verdict on one listing.
type Evaluation struct {
	// Rating ranges 1..5; 0 means no rating was produced.
	Rating      int
	Explanation string
}

// Evaluator rates a listing against the search intent it matched.
type Evaluator interface {
	// Evaluate rates one listing.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - listing: qualifying listing.
	//   - item: the item spec the listing matched.
	// Returns:
	//   - *Evaluation: rating and explanation.
	//   - error: non-nil on evaluation failure; never aborts the run.
	Evaluate(ctx context.Context, listing *domain.Listing, item *domain.ItemSpec) (*Evaluation, error)
}
