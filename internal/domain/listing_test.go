package domain

import "testing"

func TestListingHashes(t *testing.T) {
	base := Listing{
		Title:       "Kubota B2601",
		Price:       PriceOf(18500),
		Description: "low hours",
		Location:    "Duvall, WA",
	}

	t.Run("stable across copies", func(t *testing.T) {
		other := base
		if base.FieldHash() != other.FieldHash() {
			t.Error("identical listings produced different field hashes")
		}
		if base.CoreHash() != other.CoreHash() {
			t.Error("identical listings produced different core hashes")
		}
	})

	t.Run("price affects field hash only", func(t *testing.T) {
		cheaper := base
		cheaper.Price = PriceOf(17000)
		if base.FieldHash() == cheaper.FieldHash() {
			t.Error("price change did not alter the field hash")
		}
		if base.CoreHash() != cheaper.CoreHash() {
			t.Error("price change altered the core hash")
		}
	})

	t.Run("title affects both hashes", func(t *testing.T) {
		renamed := base
		renamed.Title = "Kubota B2601 with loader"
		if base.FieldHash() == renamed.FieldHash() {
			t.Error("title change did not alter the field hash")
		}
		if base.CoreHash() == renamed.CoreHash() {
			t.Error("title change did not alter the core hash")
		}
	})

	t.Run("untracked fields do not affect hashes", func(t *testing.T) {
		moved := base
		moved.URL = "https://example.com/mirror"
		moved.ImageURLs = []string{"https://example.com/1.jpg"}
		if base.FieldHash() != moved.FieldHash() {
			t.Error("untracked field changed the field hash")
		}
	})

	t.Run("field boundaries are unambiguous", func(t *testing.T) {
		a := Listing{Title: "ab", Description: "c"}
		b := Listing{Title: "a", Description: "bc"}
		if a.CoreHash() == b.CoreHash() {
			t.Error("shifted field boundary produced the same hash")
		}
	})
}

func TestSearchText(t *testing.T) {
	l := Listing{Title: "Compact tractor", Description: "Kubota B2601"}
	if got := l.SearchText(false); got != "Compact tractor" {
		t.Errorf("SearchText(false) = %q", got)
	}
	if got := l.SearchText(true); got != "Compact tractor\nKubota B2601" {
		t.Errorf("SearchText(true) = %q", got)
	}
	bare := Listing{Title: "Compact tractor"}
	if got := bare.SearchText(true); got != "Compact tractor" {
		t.Errorf("SearchText(true) without description = %q", got)
	}
}

func TestItemSpecPriceAllowed(t *testing.T) {
	spec := ItemSpec{MinPrice: PriceOf(5000), MaxPrice: PriceOf(30000)}

	testCases := []struct {
		name  string
		price *float64
		want  bool
	}{
		{name: "within bounds", price: PriceOf(18500), want: true},
		{name: "at minimum", price: PriceOf(5000), want: true},
		{name: "at maximum", price: PriceOf(30000), want: true},
		{name: "below minimum", price: PriceOf(4999), want: false},
		{name: "above maximum", price: PriceOf(30001), want: false},
		{name: "no stated price always passes", price: nil, want: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := spec.PriceAllowed(tc.price); got != tc.want {
				t.Errorf("PriceAllowed = %v, want %v", got, tc.want)
			}
		})
	}

	unbounded := ItemSpec{}
	if !unbounded.PriceAllowed(PriceOf(1)) {
		t.Error("unbounded spec rejected a price")
	}
}

func TestItemSpecInScope(t *testing.T) {
	open := ItemSpec{}
	if !open.InScope("anything") {
		t.Error("empty scope must include every marketplace")
	}
	scoped := ItemSpec{Marketplaces: []string{"local", "gov"}}
	if !scoped.InScope("gov") || scoped.InScope("other") {
		t.Error("explicit scope not honored")
	}
}
