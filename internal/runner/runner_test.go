package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/cache"
	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/marketplace"
	"github.com/calebh/marketscout/internal/notify"
	"github.com/calebh/marketscout/internal/resolver"
)

// scriptedAdapter returns one pre-built batch per search call, simulating how
// a marketplace's results evolve between polling ticks.
type scriptedAdapter struct {
	mu      sync.Mutex
	batches [][]domain.Listing
	call    int
	err     error
}

func (a *scriptedAdapter) Search(ctx context.Context, cfg *domain.ResolvedSearchConfig) (marketplace.ListingStream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if a.call >= len(a.batches) {
		return marketplace.NewSliceStream(nil), nil
	}
	batch := a.batches[a.call]
	a.call++
	return marketplace.NewSliceStream(batch), nil
}

// captureNotifier records every delivered notification.
type captureNotifier struct {
	mu    sync.Mutex
	calls []capturedCall
	err   error
}

type capturedCall struct {
	listingID string
	title     string
	rating    int
}

func (n *captureNotifier) Name() string { return "capture" }

func (n *captureNotifier) Notify(ctx context.Context, listing *domain.Listing, eval *ai.Evaluation) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	call := capturedCall{listingID: listing.ID, title: listing.Title}
	if eval != nil {
		call.rating = eval.Rating
	}
	n.calls = append(n.calls, call)
	return nil
}

func (n *captureNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.calls))
	for _, c := range n.calls {
		ids = append(ids, c.listingID)
	}
	return ids
}

type fixedEvaluator struct {
	eval *ai.Evaluation
	err  error
}

func (e *fixedEvaluator) Evaluate(ctx context.Context, listing *domain.Listing, item *domain.ItemSpec) (*ai.Evaluation, error) {
	return e.eval, e.err
}

type fixture struct {
	runner   *Runner
	adapter  *scriptedAdapter
	notifier *captureNotifier
	cache    *cache.ListingCache
}

func newFixture(t *testing.T, spec *domain.ItemSpec, adapter *scriptedAdapter, evaluator ai.Evaluator, notifier *captureNotifier) *fixture {
	t.Helper()
	reg, err := marketplace.NewRegistry(&marketplace.Descriptor{
		TypeName: "classifieds",
		Schema:   marketplace.FieldSchema{"sort": {Default: "newest"}},
		Adapter:  adapter,
	})
	if err != nil {
		t.Fatal(err)
	}
	instances, err := reg.BuildInstances([]marketplace.InstanceConfig{
		{Name: "local", Type: "classifieds", Interval: 1, Enabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	item, err := PrepareItem(spec)
	if err != nil {
		t.Fatalf("PrepareItem failed: %v", err)
	}
	listingCache := cache.New(cache.NewMemoryStore(), nil)
	var notifiers []notify.Notifier
	if notifier != nil {
		notifiers = append(notifiers, notifier)
	}
	r := New(instances, []*PreparedItem{item}, resolver.New(reg), listingCache, evaluator, notifiers, nil)
	return &fixture{runner: r, adapter: adapter, notifier: notifier, cache: listingCache}
}

func tractorSpec() *domain.ItemSpec {
	return &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota tractor"},
		Keywords:      "(Kubota OR 'John Deere') AND NOT toy",
		MinPrice:      domain.PriceOf(5000),
		MaxPrice:      domain.PriceOf(30000),
	}
}

func listing(id, title string, price *float64) domain.Listing {
	return domain.Listing{
		Marketplace: "local",
		ID:          id,
		Title:       title,
		Price:       price,
		Location:    "Duvall, WA",
		URL:         "https://example.com/" + id,
	}
}

func TestRunSearchFiltersAndNotifies(t *testing.T) {
	adapter := &scriptedAdapter{batches: [][]domain.Listing{{
		listing("1", "Kubota B2601 low hours", domain.PriceOf(18500)),
		listing("2", "toy Kubota tractor", domain.PriceOf(20)),          // antikeyword
		listing("3", "John Deere 1025R", domain.PriceOf(45000)),        // over max price
		listing("4", "Kubota L3901, price on request", nil),            // unpriced passes bounds
		listing("5", "Honda riding mower", domain.PriceOf(8000)),       // no keyword match
	}}}
	notifier := &captureNotifier{}
	f := newFixture(t, tractorSpec(), adapter, nil, notifier)

	if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
		t.Fatalf("RunSearch failed: %v", err)
	}

	got := notifier.notified()
	want := []string{"1", "4"}
	if len(got) != len(want) {
		t.Fatalf("notified %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notified %v, want %v", got, want)
		}
	}

	// every observed listing is cached, filtered ones included
	if n := f.cache.Size(context.Background()); n != 5 {
		t.Errorf("cache size = %d, want 5", n)
	}
}

func TestRunSearchDoesNotRenotifyUnchanged(t *testing.T) {
	l := listing("1", "Kubota B2601", domain.PriceOf(18500))
	adapter := &scriptedAdapter{batches: [][]domain.Listing{{l}, {l}, {l}}}
	notifier := &captureNotifier{}
	f := newFixture(t, tractorSpec(), adapter, nil, notifier)

	for tick := 0; tick < 3; tick++ {
		if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
			t.Fatalf("tick %d failed: %v", tick, err)
		}
	}
	if got := notifier.notified(); len(got) != 1 {
		t.Errorf("notified %v, want exactly one notification across ticks", got)
	}
}

func TestRunSearchPriceChange(t *testing.T) {
	t.Run("forwarded by default", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{
			{listing("1", "Kubota B2601", domain.PriceOf(18500))},
			{listing("1", "Kubota B2601", domain.PriceOf(17000))},
		}}
		notifier := &captureNotifier{}
		f := newFixture(t, tractorSpec(), adapter, nil, notifier)

		for tick := 0; tick < 2; tick++ {
			if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
				t.Fatalf("tick %d failed: %v", tick, err)
			}
		}
		if got := notifier.notified(); len(got) != 2 {
			t.Errorf("notified %v, want re-notification on price change", got)
		}
	})

	t.Run("suppressed when item ignores price changes", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{
			{listing("1", "Kubota B2601", domain.PriceOf(18500))},
			{listing("1", "Kubota B2601", domain.PriceOf(17000))},
			{listing("1", "Kubota B2601", domain.PriceOf(17000))},
		}}
		notifier := &captureNotifier{}
		spec := tractorSpec()
		spec.CacheIgnorePriceChanges = true
		f := newFixture(t, spec, adapter, nil, notifier)

		for tick := 0; tick < 3; tick++ {
			if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
				t.Fatalf("tick %d failed: %v", tick, err)
			}
		}
		// the new price is still committed: tick three sees it as unchanged
		if got := notifier.notified(); len(got) != 1 {
			t.Errorf("notified %v, want the suppressed price change to stay suppressed", got)
		}
	})

	t.Run("other field change is always forwarded", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{
			{listing("1", "Kubota B2601", domain.PriceOf(18500))},
			{listing("1", "Kubota B2601 with loader", domain.PriceOf(18500))},
		}}
		notifier := &captureNotifier{}
		spec := tractorSpec()
		spec.CacheIgnorePriceChanges = true
		f := newFixture(t, spec, adapter, nil, notifier)

		for tick := 0; tick < 2; tick++ {
			if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
				t.Fatalf("tick %d failed: %v", tick, err)
			}
		}
		if got := notifier.notified(); len(got) != 2 {
			t.Errorf("notified %v, want re-notification on title change", got)
		}
	})
}

func TestRunSearchSearchDescription(t *testing.T) {
	l := listing("1", "Compact tractor for sale", domain.PriceOf(12000))
	l.Description = "Kubota B2601 with 120 hours"

	t.Run("title only by default", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{{l}}}
		notifier := &captureNotifier{}
		f := newFixture(t, tractorSpec(), adapter, nil, notifier)
		if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
			t.Fatal(err)
		}
		if got := notifier.notified(); len(got) != 0 {
			t.Errorf("notified %v, want none: keyword only appears in the description", got)
		}
	})

	t.Run("description included when enabled", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{{l}}}
		notifier := &captureNotifier{}
		spec := tractorSpec()
		spec.SearchDescription = true
		f := newFixture(t, spec, adapter, nil, notifier)
		if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
			t.Fatal(err)
		}
		if got := notifier.notified(); len(got) != 1 {
			t.Errorf("notified %v, want one", got)
		}
	})
}

func TestRunSearchAIEvaluation(t *testing.T) {
	l := listing("1", "Kubota B2601", domain.PriceOf(18500))

	t.Run("rating attached", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{{l}}}
		notifier := &captureNotifier{}
		evaluator := &fixedEvaluator{eval: &ai.Evaluation{Rating: 4, Explanation: "good match"}}
		f := newFixture(t, tractorSpec(), adapter, evaluator, notifier)
		if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
			t.Fatal(err)
		}
		if len(notifier.calls) != 1 || notifier.calls[0].rating != 4 {
			t.Errorf("calls = %+v, want one call with rating 4", notifier.calls)
		}
	})

	t.Run("evaluation failure still notifies", func(t *testing.T) {
		adapter := &scriptedAdapter{batches: [][]domain.Listing{{l}}}
		notifier := &captureNotifier{}
		evaluator := &fixedEvaluator{err: errors.New("model timeout")}
		f := newFixture(t, tractorSpec(), adapter, evaluator, notifier)
		if err := f.runner.RunSearch(context.Background(), "local", "tractor"); err != nil {
			t.Fatal(err)
		}
		if len(notifier.calls) != 1 || notifier.calls[0].rating != 0 {
			t.Errorf("calls = %+v, want one unrated call", notifier.calls)
		}
	})
}

func TestRunSearchAdapterFailure(t *testing.T) {
	adapter := &scriptedAdapter{err: &marketplace.AdapterError{
		Marketplace: "local", Op: "search", Err: errors.New("connection refused"),
	}}
	f := newFixture(t, tractorSpec(), adapter, nil, &captureNotifier{})

	err := f.runner.RunSearch(context.Background(), "local", "tractor")
	var adapterErr *marketplace.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("RunSearch returned %v, want *AdapterError", err)
	}
	if n := f.cache.Size(context.Background()); n != 0 {
		t.Errorf("cache size = %d, want 0 after failed search", n)
	}
}

func TestRunSearchMultiMarketplaceScope(t *testing.T) {
	// one item scoped to two instances; each tick resolves against the one
	// ticking instance only and must not trip over the other scope entry
	adapter := &scriptedAdapter{batches: [][]domain.Listing{
		{{ID: "1", Title: "Kubota B2601", Price: domain.PriceOf(18500)}},
		{{ID: "1", Title: "Kubota B2601", Price: domain.PriceOf(18500)}},
	}}
	reg, err := marketplace.NewRegistry(&marketplace.Descriptor{
		TypeName: "classifieds",
		Schema:   marketplace.FieldSchema{"sort": {Default: "newest"}},
		Adapter:  adapter,
	})
	if err != nil {
		t.Fatal(err)
	}
	instances, err := reg.BuildInstances([]marketplace.InstanceConfig{
		{Name: "local", Type: "classifieds", Interval: 1, Enabled: true},
		{Name: "gov", Type: "classifieds", Interval: 1, Enabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	spec := tractorSpec()
	spec.Marketplaces = []string{"local", "gov"}
	item, err := PrepareItem(spec)
	if err != nil {
		t.Fatal(err)
	}
	res := resolver.New(reg)
	if err := res.ValidateScope(spec, instances); err != nil {
		t.Fatalf("ValidateScope failed: %v", err)
	}
	notifier := &captureNotifier{}
	listingCache := cache.New(cache.NewMemoryStore(), nil)
	r := New(instances, []*PreparedItem{item}, res, listingCache, nil, []notify.Notifier{notifier}, nil)

	for _, name := range []string{"local", "gov"} {
		if err := r.RunSearch(context.Background(), name, "tractor"); err != nil {
			t.Fatalf("tick for marketplace %q failed: %v", name, err)
		}
	}

	// the same listing ID on two instances is two distinct cache keys
	if got := notifier.notified(); len(got) != 2 {
		t.Errorf("notified %v, want one notification per marketplace", got)
	}
	if n := listingCache.Size(context.Background()); n != 2 {
		t.Errorf("cache size = %d, want 2", n)
	}
}

func TestRunSearchUnknownNames(t *testing.T) {
	f := newFixture(t, tractorSpec(), &scriptedAdapter{}, nil, &captureNotifier{})
	if err := f.runner.RunSearch(context.Background(), "nosuch", "tractor"); err == nil {
		t.Error("unknown marketplace did not error")
	}
	if err := f.runner.RunSearch(context.Background(), "local", "nosuch"); err == nil {
		t.Error("unknown item did not error")
	}
}

func TestPrepareItem(t *testing.T) {
	t.Run("compiles both expressions", func(t *testing.T) {
		item, err := PrepareItem(&domain.ItemSpec{
			Name:         "tractor",
			Keywords:     "Kubota",
			Antikeywords: "toy OR model",
		})
		if err != nil {
			t.Fatalf("PrepareItem failed: %v", err)
		}
		if !item.MatchesKeywords("Kubota B2601") {
			t.Error("matching listing rejected")
		}
		if item.MatchesKeywords("Kubota toy replica") {
			t.Error("antikeyword listing accepted")
		}
	})

	t.Run("no expressions accepts everything", func(t *testing.T) {
		item, err := PrepareItem(&domain.ItemSpec{Name: "anything"})
		if err != nil {
			t.Fatal(err)
		}
		if !item.MatchesKeywords("whatever text") {
			t.Error("unfiltered item rejected a listing")
		}
	})

	t.Run("bad expression names the item", func(t *testing.T) {
		_, err := PrepareItem(&domain.ItemSpec{Name: "broken", Keywords: "(Kubota"})
		if err == nil {
			t.Fatal("malformed expression accepted")
		}
	})
}
