// Package jsonfeed implements the marketplace adapter contract for listing
// sources exposing a paginated JSON search API. It is the bundled reference
// adapter; browser-driven scrapers plug in through the same contract.
package jsonfeed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/marketplace"
)

const TypeName = "jsonfeed"

// Schema lists the override fields the jsonfeed type recognizes.
var Schema = marketplace.FieldSchema{
	"endpoint":  {Required: true},
	"category":  {},
	"region":    {},
	"radius":    {},
	"zipcode":   {},
	"sort":      {Default: "newest"},
	"page_size": {Default: 25},
}

// Adapter queries a JSON search endpoint one page at a time. Pagination state
// lives entirely inside the streams it returns.
type Adapter struct {
	client *resty.Client
}

// NewAdapter creates a jsonfeed adapter.
// Parameters:
//   - timeout: per-request timeout; zero uses a 30s default.
// Returns:
//   - *Adapter: adapter ready for registration.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	return &Adapter{client: client}
}

// Descriptor returns the registry descriptor for this adapter.
func (a *Adapter) Descriptor() *marketplace.Descriptor {
	return &marketplace.Descriptor{
		TypeName: TypeName,
		Schema:   Schema,
		Capabilities: marketplace.Capabilities{
			RadiusSearch: true,
			RegionFilter: true,
		},
		Adapter: a,
	}
}

// Search starts one search pass. One stream is returned per search phrase
// sequence; pages are fetched lazily as the stream is drained.
func (a *Adapter) Search(ctx context.Context, cfg *domain.ResolvedSearchConfig) (marketplace.ListingStream, error) {
	endpoint := cfg.StringField("endpoint")
	if endpoint == "" {
		return nil, &marketplace.AdapterError{
			Marketplace: cfg.Marketplace,
			Op:          "search",
			Err:         fmt.Errorf("no endpoint configured"),
		}
	}
	pageSize := cfg.IntField("page_size")
	if pageSize <= 0 {
		pageSize = 25
	}
	return &feedStream{
		adapter:  a,
		cfg:      cfg,
		endpoint: endpoint,
		pageSize: pageSize,
		page:     1,
	}, nil
}

// feedListing is the wire format of one listing in a feed response.
type feedListing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       *float64 `json:"price"`
	Currency    string   `json:"currency"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	URL         string   `json:"url"`
	Images      []string `json:"images"`
	PostedAt    string   `json:"posted_at"`
}

type feedResponse struct {
	Listings []feedListing `json:"listings"`
	HasMore  bool          `json:"has_more"`
}

// feedStream drains one phrase's result pages. "No more pages" is detected
// from the has_more flag or an empty page; callers only see ErrEndOfResults.
type feedStream struct {
	adapter  *Adapter
	cfg      *domain.ResolvedSearchConfig
	endpoint string
	pageSize int

	phraseIdx int
	page      int
	buffer    []domain.Listing
	pos       int
	done      bool
}

func (s *feedStream) Next(ctx context.Context) (*domain.Listing, error) {
	for {
		if s.pos < len(s.buffer) {
			l := s.buffer[s.pos]
			s.pos++
			return &l, nil
		}
		if s.done {
			return nil, marketplace.ErrEndOfResults
		}
		if err := s.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *feedStream) fetchPage(ctx context.Context) error {
	if s.phraseIdx >= len(s.cfg.SearchPhrases) {
		s.done = true
		return nil
	}
	phrase := s.cfg.SearchPhrases[s.phraseIdx]

	req := s.adapter.client.R().
		SetContext(ctx).
		SetQueryParam("q", phrase).
		SetQueryParam("page", strconv.Itoa(s.page)).
		SetQueryParam("per_page", strconv.Itoa(s.pageSize)).
		SetResult(&feedResponse{})
	if v := s.cfg.StringField("category"); v != "" {
		req.SetQueryParam("category", v)
	}
	if v := s.cfg.StringField("region"); v != "" {
		req.SetQueryParam("region", v)
	}
	if v := s.cfg.IntField("radius"); v > 0 {
		req.SetQueryParam("radius", strconv.Itoa(v))
		if zip := s.cfg.StringField("zipcode"); zip != "" {
			req.SetQueryParam("zipcode", zip)
		}
	}
	if v := s.cfg.StringField("sort"); v != "" {
		req.SetQueryParam("sort", v)
	}

	resp, err := req.Get(s.endpoint)
	if err != nil {
		return &marketplace.AdapterError{Marketplace: s.cfg.Marketplace, Op: "fetch page", Err: err}
	}
	if resp.IsError() {
		return &marketplace.AdapterError{
			Marketplace: s.cfg.Marketplace,
			Op:          "fetch page",
			Err:         fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	result := resp.Result().(*feedResponse)
	s.buffer = make([]domain.Listing, 0, len(result.Listings))
	for _, fl := range result.Listings {
		s.buffer = append(s.buffer, toListing(s.cfg.Marketplace, fl))
	}
	s.pos = 0

	switch {
	case result.HasMore && len(result.Listings) > 0:
		s.page++
	default:
		// phrase exhausted, move to the next one
		s.phraseIdx++
		s.page = 1
	}
	return nil
}

func toListing(instance string, fl feedListing) domain.Listing {
	l := domain.Listing{
		Marketplace: instance,
		ID:          fl.ID,
		Title:       fl.Title,
		Price:       fl.Price,
		Currency:    fl.Currency,
		Description: fl.Description,
		Location:    fl.Location,
		URL:         fl.URL,
		ImageURLs:   fl.Images,
	}
	if fl.PostedAt != "" {
		if ts, err := time.Parse(time.RFC3339, fl.PostedAt); err == nil {
			l.PostedAt = &ts
		}
	}
	return l
}
