// Package marketplace defines the marketplace type registry and the adapter
// contract. The registry is built once at startup and read-only afterwards;
// core logic receives it explicitly rather than looking it up ambiently.
package marketplace

import "fmt"

// FieldSpec describes one recognized schema field of a marketplace type.
type FieldSpec struct {
	Required bool
	Default  any
}

// FieldSchema maps recognized field names to their specs.
type FieldSchema map[string]FieldSpec

// Has reports whether the schema recognizes the field.
func (s FieldSchema) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Capabilities are the optional search features a marketplace type declares.
type Capabilities struct {
	RadiusSearch bool // supports distance-from-location search
	RegionFilter bool // supports region/area filtering
}

// CommonSchema holds the fields every marketplace type accepts. Items may set
// these in their common block without triggering marketplace-specific
// validation.
var CommonSchema = FieldSchema{
	"max_results":        {Default: 50},
	"search_description": {Default: false},
}

// Descriptor describes one marketplace type: its field schema, capability
// flags and adapter. Descriptors are immutable after registry construction.
type Descriptor struct {
	TypeName     string
	Schema       FieldSchema
	Capabilities Capabilities
	Adapter      Adapter
}

// KnowsField reports whether the field belongs to this marketplace's schema
// or to the common schema.
func (d *Descriptor) KnowsField(name string) bool {
	return d.Schema.Has(name) || CommonSchema.Has(name)
}

// Validate checks descriptor integrity at registration time.
// Parameters: none.
// Returns:
//   - error: non-nil when the descriptor is incomplete.
func (d *Descriptor) Validate() error {
	if d.TypeName == "" {
		return fmt.Errorf("marketplace descriptor has no type name")
	}
	if d.Adapter == nil {
		return fmt.Errorf("marketplace type %q has no adapter", d.TypeName)
	}
	return nil
}
