package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Listing is one scraped marketplace listing, an immutable snapshot produced
// by a marketplace adapter.
type Listing struct {
	Marketplace  string   // marketplace instance identifier
	ID           string   // stable listing ID within the marketplace
	Title        string
	Price        *float64 // nil means the listing did not state a price
	Currency     string
	Description  string
	Location     string
	URL          string
	ImageURLs    []string
	PostedAt     *time.Time
	AuctionStart *time.Time // set for auction marketplaces only
	AuctionEnd   *time.Time
}

// HasPrice reports whether the listing states a price.
func (l *Listing) HasPrice() bool {
	return l.Price != nil
}

// SearchText returns the text the keyword filter matches against.
// Parameters:
//   - includeDescription: concatenate the description after the title.
// Returns:
//   - string: searchable text for this listing.
func (l *Listing) SearchText(includeDescription bool) string {
	if includeDescription && l.Description != "" {
		return l.Title + "\n" + l.Description
	}
	return l.Title
}

// FieldHash returns a hash over the full tracked field set, price included.
// Two listings with equal hashes are treated as unchanged.
func (l *Listing) FieldHash() string {
	return hashFields(l.Title, priceField(l.Price), l.Description, l.Location)
}

// CoreHash returns a hash over the tracked field set with the price field
// excluded, used to detect price-only changes.
func (l *Listing) CoreHash() string {
	return hashFields(l.Title, l.Description, l.Location)
}

func priceField(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func hashFields(fields ...string) string {
	sum := md5.Sum([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// PriceOf is a convenience constructor for optional prices.
func PriceOf(v float64) *float64 {
	return &v
}
