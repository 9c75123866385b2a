package resolver

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/marketplace"
)

type nopAdapter struct{}

func (nopAdapter) Search(ctx context.Context, cfg *domain.ResolvedSearchConfig) (marketplace.ListingStream, error) {
	return marketplace.NewSliceStream(nil), nil
}

func testRegistry(t *testing.T) *marketplace.Registry {
	t.Helper()
	reg, err := marketplace.NewRegistry(
		&marketplace.Descriptor{
			TypeName: "classifieds",
			Schema: marketplace.FieldSchema{
				"zipcode": {Required: true},
				"radius":  {Default: 25},
				"sort":    {Default: "newest"},
			},
			Capabilities: marketplace.Capabilities{RadiusSearch: true},
			Adapter:      nopAdapter{},
		},
		&marketplace.Descriptor{
			TypeName: "auctions",
			Schema: marketplace.FieldSchema{
				"region":   {Default: "all"},
				"category": {},
			},
			Capabilities: marketplace.Capabilities{RegionFilter: true},
			Adapter:      nopAdapter{},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

func testInstances(t *testing.T, reg *marketplace.Registry) []*marketplace.Instance {
	t.Helper()
	instances, err := reg.BuildInstances([]marketplace.InstanceConfig{
		{Name: "local", Type: "classifieds", Interval: 10 * time.Minute, Enabled: true,
			Fields: map[string]any{"zipcode": "98039"}},
		{Name: "gov", Type: "auctions", Interval: time.Hour, Enabled: true},
		{Name: "disabled", Type: "auctions", Interval: time.Hour, Enabled: false},
	})
	if err != nil {
		t.Fatalf("BuildInstances failed: %v", err)
	}
	return instances
}

func configFor(t *testing.T, result *Result, name string) *domain.ResolvedSearchConfig {
	t.Helper()
	for _, cfg := range result.Configs {
		if cfg.Marketplace == name {
			return cfg
		}
	}
	t.Fatalf("no resolved config for marketplace %q", name)
	return nil
}

func TestResolveMergePrecedence(t *testing.T) {
	reg := testRegistry(t)
	instances := testInstances(t, reg)
	res := New(reg)

	item := &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota tractor"},
		Common:        map[string]any{"max_results": 20, "sort": "price_asc"},
		Overrides: map[string]map[string]any{
			"classifieds": {"sort": "closest", "radius": 50},
		},
	}

	result, err := res.Resolve(item, instances)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result.Configs) != 2 {
		t.Fatalf("got %d configs, want 2 (disabled instance must be skipped)", len(result.Configs))
	}

	local := configFor(t, result, "local")
	checks := []struct {
		field  string
		want   any
		origin domain.FieldOrigin
	}{
		{"radius", 50, domain.OriginItemOverride},           // override beats schema default
		{"sort", "closest", domain.OriginItemOverride},      // override beats common block
		{"zipcode", "98039", domain.OriginMarketplaceDefault},
		{"max_results", 20, domain.OriginItemCommon},        // common beats schema default
		{"search_description", false, domain.OriginSchemaDefault},
	}
	for _, c := range checks {
		if got := local.Field(c.field); !reflect.DeepEqual(got, c.want) {
			t.Errorf("field %q = %v, want %v", c.field, got, c.want)
		}
		if got := local.Provenance[c.field]; got != c.origin {
			t.Errorf("field %q origin = %v, want %v", c.field, got, c.origin)
		}
	}

	// the auctions instance must not see the classifieds override
	gov := configFor(t, result, "gov")
	if got := gov.Field("region"); got != "all" {
		t.Errorf("gov region = %v, want schema default %q", got, "all")
	}
	if _, ok := gov.Fields["radius"]; ok {
		t.Error("gov config leaked the classifieds radius field")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	reg := testRegistry(t)
	instances := testInstances(t, reg)
	res := New(reg)

	item := &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota"},
		Common:        map[string]any{"max_results": 5, "sort": "price_asc", "search_description": true},
	}

	first, err := res.Resolve(item, instances)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := res.Resolve(item, instances)
		if err != nil {
			t.Fatalf("Resolve failed on pass %d: %v", i, err)
		}
		if !reflect.DeepEqual(first.Configs, again.Configs) {
			t.Fatalf("pass %d produced different configs", i)
		}
		if !reflect.DeepEqual(first.Warnings, again.Warnings) {
			t.Fatalf("pass %d produced different warnings", i)
		}
	}
}

func TestResolveUnknownOverrideFieldIsFatal(t *testing.T) {
	reg := testRegistry(t)
	instances := testInstances(t, reg)
	res := New(reg)

	item := &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota"},
		Overrides: map[string]map[string]any{
			"classifieds": {"colour": "orange"},
		},
	}

	_, err := res.Resolve(item, instances)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Resolve returned %v, want *ConfigError", err)
	}
	if cfgErr.Field != "colour" {
		t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, "colour")
	}
}

func TestResolveForeignCommonFieldIsWarning(t *testing.T) {
	reg := testRegistry(t)
	instances := testInstances(t, reg)
	res := New(reg)

	// zipcode belongs to the classifieds schema only; the auctions instance
	// must skip it with a warning, not fail.
	item := &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota"},
		Common:        map[string]any{"zipcode": "98039"},
	}

	result, err := res.Resolve(item, instances)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(result.Warnings), result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "zipcode") {
		t.Errorf("warning does not name the field: %q", result.Warnings[0])
	}
	gov := configFor(t, result, "gov")
	if _, ok := gov.Fields["zipcode"]; ok {
		t.Error("foreign common field was applied instead of skipped")
	}
}

func TestResolveMissingRequiredField(t *testing.T) {
	reg := testRegistry(t)
	instances, err := reg.BuildInstances([]marketplace.InstanceConfig{
		{Name: "local", Type: "classifieds", Interval: time.Minute, Enabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := New(reg)

	item := &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota"},
	}

	_, err = res.Resolve(item, instances)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Resolve returned %v, want *ConfigError", err)
	}
	if cfgErr.Field != "zipcode" {
		t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, "zipcode")
	}
}

func TestResolveCapabilityViolation(t *testing.T) {
	reg := testRegistry(t)
	instances := testInstances(t, reg)
	res := New(reg)

	// auctions has no radius search; an explicit radius override must fail
	item := &domain.ItemSpec{
		Name:          "tractor",
		Enabled:       true,
		SearchPhrases: []string{"kubota"},
		Marketplaces:  []string{"gov"},
		Overrides: map[string]map[string]any{
			"auctions": {"category": "farm equipment"},
		},
		Common: map[string]any{},
	}
	if _, err := res.Resolve(item, instances); err != nil {
		t.Fatalf("control resolve failed: %v", err)
	}

	item.Overrides["auctions"]["radius"] = 10
	_, err := res.Resolve(item, instances)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Resolve returned %v, want *ConfigError", err)
	}
}

func TestResolveScopeAndErrors(t *testing.T) {
	reg := testRegistry(t)
	instances := testInstances(t, reg)
	res := New(reg)

	t.Run("scoped to one marketplace", func(t *testing.T) {
		item := &domain.ItemSpec{
			Name:          "tractor",
			Enabled:       true,
			SearchPhrases: []string{"kubota"},
			Marketplaces:  []string{"gov"},
		}
		result, err := res.Resolve(item, instances)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(result.Configs) != 1 || result.Configs[0].Marketplace != "gov" {
			t.Errorf("got %d configs, want exactly the gov config", len(result.Configs))
		}
	})

	t.Run("scope naming unknown marketplace", func(t *testing.T) {
		item := &domain.ItemSpec{
			Name:          "tractor",
			Enabled:       true,
			SearchPhrases: []string{"kubota"},
			Marketplaces:  []string{"gov", "nosuch"},
		}
		err := res.ValidateScope(item, instances)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("ValidateScope returned %v, want *ConfigError", err)
		}
		if cfgErr.Marketplace != "nosuch" {
			t.Errorf("ConfigError.Marketplace = %q, want %q", cfgErr.Marketplace, "nosuch")
		}
		if err := res.ValidateScope(item, instances[:2]); err == nil {
			t.Error("ValidateScope accepted a scope name outside the full set")
		}
	})

	t.Run("multi-marketplace scope resolves against a subset", func(t *testing.T) {
		// per-tick resolution passes only the ticking instance; the other
		// scope entries must not be treated as unknown
		item := &domain.ItemSpec{
			Name:          "tractor",
			Enabled:       true,
			SearchPhrases: []string{"kubota"},
			Marketplaces:  []string{"local", "gov"},
		}
		if err := res.ValidateScope(item, instances); err != nil {
			t.Fatalf("ValidateScope failed on a valid scope: %v", err)
		}
		for _, inst := range instances[:2] {
			result, err := res.Resolve(item, []*marketplace.Instance{inst})
			if err != nil {
				t.Fatalf("Resolve against only %q failed: %v", inst.Name, err)
			}
			if len(result.Configs) != 1 || result.Configs[0].Marketplace != inst.Name {
				t.Fatalf("Resolve against only %q produced %d configs, want 1 for it", inst.Name, len(result.Configs))
			}
		}
	})

	t.Run("no search phrases", func(t *testing.T) {
		item := &domain.ItemSpec{Name: "tractor", Enabled: true}
		_, err := res.Resolve(item, instances)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("Resolve returned %v, want *ConfigError", err)
		}
	})
}
