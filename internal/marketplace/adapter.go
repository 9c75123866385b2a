package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/calebh/marketscout/internal/domain"
)

// ErrEndOfResults is returned by ListingStream.Next when the search sequence
// is exhausted.
var ErrEndOfResults = errors.New("no more results")

// ListingStream is a lazy, finite sequence of listings for one search pass.
// The adapter owns all cursor, offset and pagination state; the caller only
// drains the stream until ErrEndOfResults.
type ListingStream interface {
	// Next returns the next listing in adapter-yield order.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	// Returns:
	//   - *domain.Listing: next listing.
	//   - error: ErrEndOfResults when drained, or an adapter failure.
	Next(ctx context.Context) (*domain.Listing, error)
}

// Adapter implements search for one marketplace type.
type Adapter interface {
	// Search starts one search pass with the given resolved configuration.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cfg: resolved configuration for one (item, marketplace) pair.
	// Returns:
	//   - ListingStream: lazy sequence of raw listings.
	//   - error: non-nil if the search cannot be started.
	Search(ctx context.Context, cfg *domain.ResolvedSearchConfig) (ListingStream, error)
}

// DetailFetcher is an optional adapter extension that enriches a listing with
// data only available on its detail page.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, listing *domain.Listing) (*domain.Listing, error)
}

// AdapterError wraps any failure inside an adapter call: network errors,
// timeouts, parse failures, auth failures. It is recoverable; the owning job
// backs off and retries on schedule.
type AdapterError struct {
	Marketplace string
	Op          string
	Err         error
}

// Error returns a description of the adapter failure.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("marketplace %s: %s: %v", e.Marketplace, e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// sliceStream adapts an already-materialized listing slice to ListingStream.
// Useful for adapters that fetch a page at a time into memory and for tests.
type sliceStream struct {
	listings []domain.Listing
	pos      int
}

// NewSliceStream wraps a listing slice in a ListingStream.
func NewSliceStream(listings []domain.Listing) ListingStream {
	return &sliceStream{listings: listings}
}

func (s *sliceStream) Next(ctx context.Context) (*domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.listings) {
		return nil, ErrEndOfResults
	}
	l := s.listings[s.pos]
	s.pos++
	return &l, nil
}
