package marketplace

import (
	"fmt"
	"sort"
	"time"
)

// Registry maps marketplace type names to their descriptors. It is built once
// at startup and read-only afterwards.
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry builds a registry from the given descriptors.
// Parameters:
//   - descriptors: one descriptor per marketplace type.
// Returns:
//   - *Registry: immutable registry.
//   - error: non-nil on duplicate or invalid descriptors.
func NewRegistry(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.descriptors[d.TypeName]; exists {
			return nil, fmt.Errorf("duplicate marketplace type %q", d.TypeName)
		}
		r.descriptors[d.TypeName] = d
	}
	return r, nil
}

// Get returns the descriptor for a marketplace type.
// Parameters:
//   - typeName: marketplace type name.
// Returns:
//   - *Descriptor: descriptor if registered.
//   - bool: true when found.
func (r *Registry) Get(typeName string) (*Descriptor, bool) {
	d, ok := r.descriptors[typeName]
	return d, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.descriptors))
	for t := range r.descriptors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Instance is one configured marketplace: a named instantiation of a
// registered type with its polling interval and marketplace-level field
// defaults.
type Instance struct {
	Name          string
	Interval      time.Duration
	Enabled       bool
	AllowParallel bool // allow concurrent jobs on this instance
	Fields        map[string]any
	Descriptor    *Descriptor
}

// BuildInstances resolves configured marketplace entries against the registry.
// An unknown type name or a default field outside the type's schema is fatal
// at startup.
func (r *Registry) BuildInstances(entries []InstanceConfig) ([]*Instance, error) {
	instances := make([]*Instance, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate marketplace instance %q", e.Name)
		}
		seen[e.Name] = true

		desc, ok := r.Get(e.Type)
		if !ok {
			return nil, fmt.Errorf("marketplace %q: unknown type %q (known: %v)", e.Name, e.Type, r.Types())
		}
		for field := range e.Fields {
			if !desc.KnowsField(field) {
				return nil, fmt.Errorf("marketplace %q: field %q is not in the %s schema", e.Name, field, e.Type)
			}
		}
		instances = append(instances, &Instance{
			Name:          e.Name,
			Interval:      e.Interval,
			Enabled:       e.Enabled,
			AllowParallel: e.AllowParallel,
			Fields:        e.Fields,
			Descriptor:    desc,
		})
	}
	return instances, nil
}

// InstanceConfig is the structurally-parsed form of one marketplace entry in
// the configuration file.
type InstanceConfig struct {
	Name          string
	Type          string
	Interval      time.Duration
	Enabled       bool
	AllowParallel bool
	Fields        map[string]any
}
