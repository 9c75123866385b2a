// Package resolver merges item specifications with marketplace schemas into
// per-(item, marketplace) search configurations. Resolution is a pure function
// of its inputs: identical item specs, marketplace instances and schemas
// always produce identical configurations, so it is recomputed on every
// schedule build instead of being persisted.
package resolver

import (
	"fmt"
	"sort"

	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/marketplace"
)

// ConfigError reports an invalid item configuration. It is fatal for the
// offending item at startup or reload; the item is not scheduled.
type ConfigError struct {
	Item        string
	Marketplace string
	Field       string
	Reason      string
}

// Error returns a description naming the item, marketplace and field.
// Parameters: none.
// Returns:
//   - string: formatted error message.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("item %q, marketplace %q: %s", e.Item, e.Marketplace, e.Reason)
	}
	return fmt.Sprintf("item %q, marketplace %q, field %q: %s", e.Item, e.Marketplace, e.Field, e.Reason)
}

// Resolver validates and merges item configurations against the marketplace
// registry.
type Resolver struct {
	registry *marketplace.Registry
}

// New creates a Resolver bound to the given registry.
// Parameters:
//   - registry: read-only marketplace type registry.
// Returns:
//   - *Resolver: resolver instance.
func New(registry *marketplace.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Result is the outcome of resolving one item: one configuration per
// marketplace instance in scope, plus non-fatal warnings for the caller to
// log.
type Result struct {
	Configs  []*domain.ResolvedSearchConfig
	Warnings []string
}

// Resolve materializes one configuration per enabled marketplace instance in
// the item's scope. The instance list may be any subset of the configured
// marketplaces; scope names without a matching instance are simply skipped, so
// a per-tick resolve against one instance works for items scoped to several.
// ValidateScope covers unknown scope names at configuration load.
//
// Merge precedence per field, low to high: schema default, item common block,
// marketplace-level default, item per-marketplace override block. An override
// field outside the target marketplace's schema is a ConfigError; a
// marketplace-specific field in the item's common block is skipped with a
// warning for marketplaces that do not recognize it.
//
// Parameters:
//   - item: item specification.
//   - instances: marketplace instances to resolve against.
// Returns:
//   - *Result: resolved configurations and warnings.
//   - error: *ConfigError on the first fatal validation failure.
func (r *Resolver) Resolve(item *domain.ItemSpec, instances []*marketplace.Instance) (*Result, error) {
	if len(item.SearchPhrases) == 0 {
		return nil, &ConfigError{Item: item.Name, Reason: "no search phrases configured"}
	}

	result := &Result{}
	for _, inst := range instances {
		if !inst.Enabled || !item.InScope(inst.Name) {
			continue
		}
		cfg, warnings, err := r.resolveOne(item, inst)
		if err != nil {
			return nil, err
		}
		result.Configs = append(result.Configs, cfg)
		result.Warnings = append(result.Warnings, warnings...)
	}
	return result, nil
}

// ValidateScope checks the item's marketplace scope against the full instance
// set. It runs once at configuration load, where the complete set is known;
// Resolve itself accepts subsets and must not second-guess scope names.
// Parameters:
//   - item: item specification.
//   - instances: every configured marketplace instance.
// Returns:
//   - error: *ConfigError when the scope names a marketplace that does not
//     exist.
func (r *Resolver) ValidateScope(item *domain.ItemSpec, instances []*marketplace.Instance) error {
	known := make(map[string]bool, len(instances))
	for _, inst := range instances {
		known[inst.Name] = true
	}
	for _, name := range item.Marketplaces {
		if !known[name] {
			return &ConfigError{Item: item.Name, Marketplace: name, Reason: "scope names an unknown marketplace"}
		}
	}
	return nil
}

func (r *Resolver) resolveOne(item *domain.ItemSpec, inst *marketplace.Instance) (*domain.ResolvedSearchConfig, []string, error) {
	desc := inst.Descriptor
	cfg := &domain.ResolvedSearchConfig{
		ItemName:        item.Name,
		Marketplace:     inst.Name,
		MarketplaceType: desc.TypeName,
		SearchPhrases:   append([]string(nil), item.SearchPhrases...),
		Fields:          make(map[string]any),
		Provenance:      make(map[string]domain.FieldOrigin),
	}

	// 1. schema defaults, common first
	for _, name := range sortedFields(marketplace.CommonSchema) {
		if def := marketplace.CommonSchema[name].Default; def != nil {
			cfg.Fields[name] = def
			cfg.Provenance[name] = domain.OriginSchemaDefault
		}
	}
	for _, name := range sortedFields(desc.Schema) {
		if def := desc.Schema[name].Default; def != nil {
			cfg.Fields[name] = def
			cfg.Provenance[name] = domain.OriginSchemaDefault
		}
	}

	// 2. item common block; fields belonging to some other marketplace's
	// schema are skipped with a warning, preserving configs written for a
	// mixed marketplace set
	var warnings []string
	for _, name := range sortedKeys(item.Common) {
		if desc.KnowsField(name) {
			cfg.Fields[name] = item.Common[name]
			cfg.Provenance[name] = domain.OriginItemCommon
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"item %q: common field %q is not in the %s schema (%s), ignored for marketplace %q",
			item.Name, name, desc.TypeName, r.fieldHome(name), inst.Name))
	}

	// 3. marketplace-level defaults, validated at instance build time
	for _, name := range sortedKeys(inst.Fields) {
		cfg.Fields[name] = inst.Fields[name]
		cfg.Provenance[name] = domain.OriginMarketplaceDefault
	}

	// 4. item override block for this marketplace type
	for _, name := range sortedKeys(item.Overrides[desc.TypeName]) {
		if !desc.KnowsField(name) {
			return nil, nil, &ConfigError{
				Item:        item.Name,
				Marketplace: inst.Name,
				Field:       name,
				Reason:      fmt.Sprintf("override field is not in the %s schema", desc.TypeName),
			}
		}
		cfg.Fields[name] = item.Overrides[desc.TypeName][name]
		cfg.Provenance[name] = domain.OriginItemOverride
	}

	if err := r.validate(item, inst, cfg); err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}

func (r *Resolver) validate(item *domain.ItemSpec, inst *marketplace.Instance, cfg *domain.ResolvedSearchConfig) error {
	desc := inst.Descriptor
	for _, name := range sortedFields(desc.Schema) {
		if desc.Schema[name].Required && cfg.Fields[name] == nil {
			return &ConfigError{
				Item:        item.Name,
				Marketplace: inst.Name,
				Field:       name,
				Reason:      "required field is not set",
			}
		}
	}
	if cfg.Fields["radius"] != nil && !desc.Capabilities.RadiusSearch {
		return &ConfigError{
			Item:        item.Name,
			Marketplace: inst.Name,
			Field:       "radius",
			Reason:      fmt.Sprintf("marketplace type %s does not support radius search", desc.TypeName),
		}
	}
	if cfg.Fields["region"] != nil && !desc.Capabilities.RegionFilter {
		return &ConfigError{
			Item:        item.Name,
			Marketplace: inst.Name,
			Field:       "region",
			Reason:      fmt.Sprintf("marketplace type %s does not support region filtering", desc.TypeName),
		}
	}
	return nil
}

// fieldHome names the marketplace type whose schema recognizes the field, for
// warning messages.
func (r *Resolver) fieldHome(name string) string {
	for _, t := range r.registry.Types() {
		if d, ok := r.registry.Get(t); ok && d.Schema.Has(name) {
			return fmt.Sprintf("belongs to %s", t)
		}
	}
	return "unknown to every schema"
}

func sortedFields(schema marketplace.FieldSchema) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
