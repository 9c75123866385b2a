// Package runner orchestrates one search tick: resolve the configuration,
// drain the adapter's listing stream, classify against the cache, filter,
// dispatch qualifying listings to the AI and notification collaborators, and
// commit every observed listing back to the cache.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/cache"
	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/logger"
	"github.com/calebh/marketscout/internal/marketplace"
	"github.com/calebh/marketscout/internal/notify"
	"github.com/calebh/marketscout/internal/resolver"
)

// Runner executes search ticks. It implements the scheduler's Runner
// contract.
type Runner struct {
	instances map[string]*marketplace.Instance
	items     map[string]*PreparedItem
	resolver  *resolver.Resolver
	cache     *cache.ListingCache
	evaluator ai.Evaluator // nil disables AI evaluation
	notifiers []notify.Notifier
	log       *logger.Logger
	now       func() time.Time
}

// New creates a Runner.
// Parameters:
//   - instances: configured marketplace instances.
//   - items: prepared item specs.
//   - res: config resolver.
//   - listingCache: shared listing cache.
//   - evaluator: optional AI evaluator, nil to disable.
//   - notifiers: notification channels.
//   - log: logger; nil uses the default.
// Returns:
//   - *Runner: runner instance.
func New(
	instances []*marketplace.Instance,
	items []*PreparedItem,
	res *resolver.Resolver,
	listingCache *cache.ListingCache,
	evaluator ai.Evaluator,
	notifiers []notify.Notifier,
	log *logger.Logger,
) *Runner {
	if log == nil {
		log = logger.GetDefault()
	}
	r := &Runner{
		instances: make(map[string]*marketplace.Instance, len(instances)),
		items:     make(map[string]*PreparedItem, len(items)),
		resolver:  res,
		cache:     listingCache,
		evaluator: evaluator,
		notifiers: notifiers,
		log:       log,
		now:       time.Now,
	}
	for _, inst := range instances {
		r.instances[inst.Name] = inst
	}
	for _, item := range items {
		r.items[item.Spec.Name] = item
	}
	return r
}

type tickStats struct {
	observed int
	fresh    int
	changed  int
	filtered int
	notified int
}

// RunSearch performs one search pass for an (item, marketplace) pair.
// Parameters:
//   - ctx: canceled on shutdown; the pass stops at the next listing boundary.
//   - marketplaceName: marketplace instance name.
//   - itemName: item spec name.
// Returns:
//   - error: non-nil on adapter failure; puts the owning job into backoff.
func (r *Runner) RunSearch(ctx context.Context, marketplaceName, itemName string) error {
	inst, ok := r.instances[marketplaceName]
	if !ok {
		return fmt.Errorf("unknown marketplace instance %q", marketplaceName)
	}
	item, ok := r.items[itemName]
	if !ok {
		return fmt.Errorf("unknown item %q", itemName)
	}

	ctx = logger.SetRunID(ctx, uuid.New().String())
	ctx = logger.SetMarketplace(ctx, marketplaceName)
	ctx = logger.SetItem(ctx, itemName)
	log := logger.FromContext(ctx)
	start := r.now()

	// configuration is a pure function of its sources, recomputed per tick
	result, err := r.resolver.Resolve(item.Spec, []*marketplace.Instance{inst})
	if err != nil {
		return err
	}
	if len(result.Configs) == 0 {
		log.Debug("Marketplace not in item scope, nothing to do")
		return nil
	}
	cfg := result.Configs[0]

	stream, err := inst.Descriptor.Adapter.Search(ctx, cfg)
	if err != nil {
		return err
	}

	var stats tickStats
	for {
		listing, err := stream.Next(ctx)
		if errors.Is(err, marketplace.ErrEndOfResults) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// shutdown: the current listing is already committed, stop
				// cleanly at the boundary
				log.Info("Search interrupted by shutdown")
				return nil
			}
			return err
		}
		if listing.Marketplace == "" {
			listing.Marketplace = inst.Name
		}

		stats.observed++
		r.processListing(ctx, cfg, item, inst, listing, &stats)

		if ctx.Err() != nil {
			log.Info("Search interrupted by shutdown")
			return nil
		}
	}

	log.WithFields(logger.Fields{
		"observed":              stats.observed,
		"new":                   stats.fresh,
		"changed":               stats.changed,
		"filtered":              stats.filtered,
		"notified":              stats.notified,
		logger.FieldDurationMs: r.now().Sub(start).Milliseconds(),
	}).Info("Search pass completed")
	return nil
}

func (r *Runner) processListing(
	ctx context.Context,
	cfg *domain.ResolvedSearchConfig,
	item *PreparedItem,
	inst *marketplace.Instance,
	listing *domain.Listing,
	stats *tickStats,
) {
	log := logger.FromContext(ctx).WithField(logger.FieldListing, listing.ID)

	classification, _ := r.cache.Classify(ctx, listing)
	switch classification {
	case cache.ClassNew:
		stats.fresh++
	case cache.ClassChanged, cache.ClassChangedPriceOnly:
		stats.changed++
	}

	searchDescription := item.Spec.SearchDescription || cfg.BoolField("search_description")
	passes := item.MatchesKeywords(listing.SearchText(searchDescription)) &&
		item.Spec.PriceAllowed(listing.Price)
	if !passes {
		stats.filtered++
	}

	var notifiedAt *time.Time
	if passes && r.shouldNotify(classification, item.Spec) {
		if r.dispatch(ctx, item, inst, listing) {
			ts := r.now()
			notifiedAt = &ts
			stats.notified++
		}
	} else {
		log.WithField(logger.FieldClassification, classification.String()).Debug("Listing not forwarded")
	}

	// every observed listing is committed so the next tick does not
	// re-evaluate it identically
	if err := r.cache.Commit(ctx, listing, notifiedAt); err != nil {
		log.WithError(err).Error("Failed to commit listing to cache")
	}
}

// shouldNotify applies the dedup policy: new and changed listings are
// forwarded; price-only changes are forwarded unless the item ignores them.
func (r *Runner) shouldNotify(classification cache.Classification, spec *domain.ItemSpec) bool {
	switch classification {
	case cache.ClassNew, cache.ClassChanged:
		return true
	case cache.ClassChangedPriceOnly:
		return !spec.CacheIgnorePriceChanges
	}
	return false
}

// dispatch runs AI evaluation and delivers the listing to every notifier.
// Collaborator failures are logged and never abort the run. Returns true when
// at least one channel accepted the notification.
func (r *Runner) dispatch(ctx context.Context, item *PreparedItem, inst *marketplace.Instance, listing *domain.Listing) bool {
	log := logger.FromContext(ctx).WithField(logger.FieldListing, listing.ID)

	if fetcher, ok := inst.Descriptor.Adapter.(marketplace.DetailFetcher); ok {
		if enriched, err := fetcher.FetchDetails(ctx, listing); err != nil {
			log.WithError(err).Warn("Detail fetch failed, using search result as-is")
		} else if enriched != nil {
			*listing = *enriched
		}
	}

	var eval *ai.Evaluation
	if r.evaluator != nil {
		var err error
		eval, err = r.evaluator.Evaluate(ctx, listing, item.Spec)
		if err != nil {
			log.WithError(err).Warn("AI evaluation failed, notifying without rating")
			eval = nil
		}
	}

	if len(r.notifiers) == 0 {
		// nothing to deliver to; treat the listing as handled so it is not
		// re-forwarded every tick
		return true
	}

	delivered := false
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, listing, eval); err != nil {
			log.WithField("channel", n.Name()).WithError(err).Error("Notification failed")
			continue
		}
		delivered = true
	}
	return delivered
}
