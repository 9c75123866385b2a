package domain

// FieldOrigin records where a resolved field value came from, in ascending
// precedence order.
type FieldOrigin int

const (
	OriginSchemaDefault FieldOrigin = iota
	OriginItemCommon
	OriginMarketplaceDefault
	OriginItemOverride
)

// String returns a human-readable origin name.
func (o FieldOrigin) String() string {
	switch o {
	case OriginSchemaDefault:
		return "schema default"
	case OriginItemCommon:
		return "item common block"
	case OriginMarketplaceDefault:
		return "marketplace default"
	case OriginItemOverride:
		return "item override block"
	}
	return "unknown"
}

// ResolvedSearchConfig is the fully merged, schema-validated configuration for
// one (item, marketplace) pair. It is recomputed from its sources on every
// schedule build and never persisted.
type ResolvedSearchConfig struct {
	ItemName        string
	Marketplace     string // marketplace instance name
	MarketplaceType string
	SearchPhrases   []string
	Fields          map[string]any
	Provenance      map[string]FieldOrigin
}

// Field returns a resolved field value.
// Parameters:
//   - name: schema field name.
// Returns:
//   - any: resolved value, nil when unset.
func (c *ResolvedSearchConfig) Field(name string) any {
	return c.Fields[name]
}

// StringField returns a resolved field as a string, or empty when unset or of
// another type.
func (c *ResolvedSearchConfig) StringField(name string) string {
	s, _ := c.Fields[name].(string)
	return s
}

// BoolField returns a resolved field as a bool, false when unset or of
// another type.
func (c *ResolvedSearchConfig) BoolField(name string) bool {
	b, _ := c.Fields[name].(bool)
	return b
}

// IntField returns a resolved field as an int. Values decoded from YAML or
// defaults may arrive as int or float64.
func (c *ResolvedSearchConfig) IntField(name string) int {
	switch v := c.Fields[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
