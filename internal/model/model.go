// Package model holds field values for a Schema.
//
// An Instance is transient when its Schema is a plain schema and
// persistable when the Schema was built with schema.NewIdent. Both kinds
// share the same update, evaluate and serialization rules:
//
//   - Update resolves each field as data[name], else the current value,
//     else a fresh copy of the default, and coerces nested model values.
//     It never fails; invalid values are stored as-is and surface through
//     Evaluate.
//   - Evaluate returns the schema's Violations for the current values.
//   - ToSerializable is the single conversion used for JSON export and
//     for backend write payloads.
//
// Persistable instances also carry an identifier and a revision
// timestamp, both materialized lazily on first access.
package model

import (
	"fmt"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/schema"
)

// Resolver loads persistable records referenced by identifier.
// Resolve reports false when no record with that identifier exists.
type Resolver interface {
	Resolve(s *schema.Schema, id string) (*Instance, bool)
}

// Option configures an Instance.
type Option func(*Instance)

// WithResolver sets the resolver used for {"$id": ...} references.
func WithResolver(r Resolver) Option {
	return func(i *Instance) { i.resolver = r }
}

// WithIDs sets the identifier generator.
func WithIDs(g IDGenerator) Option {
	return func(i *Instance) { i.ids = g }
}

// WithClock sets the clock used for revision timestamps.
func WithClock(c Clock) Option {
	return func(i *Instance) { i.clock = c }
}

// Instance is a value bag keyed by its Schema's field names.
//
// Instances are single-owner: they are not safe for concurrent mutation.
type Instance struct {
	schema   *schema.Schema
	values   map[string]any
	resolver Resolver
	ids      IDGenerator
	clock    Clock
}

// New creates an instance of s populated from data.
func New(s *schema.Schema, data map[string]any, opts ...Option) *Instance {
	inst := &Instance{
		schema: s,
		values: make(map[string]any, s.Len()),
		ids:    UUIDGenerator{},
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(inst)
	}
	inst.Update(data)
	return inst
}

// options reproduces the instance's collaborators for nested instances.
func (i *Instance) options() []Option {
	return []Option{WithResolver(i.resolver), WithIDs(i.ids), WithClock(i.clock)}
}

// Schema returns the instance's schema.
func (i *Instance) Schema() *schema.Schema { return i.schema }

// Values returns a shallow copy of the current field values.
func (i *Instance) Values() map[string]any {
	out := make(map[string]any, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// Get returns the current value of a field, or nil.
func (i *Instance) Get(name string) any {
	return i.values[name]
}

// Set assigns one field, applying the same coercion as Update.
func (i *Instance) Set(name string, value any) error {
	f, ok := i.schema.Field(name)
	if !ok {
		return fmt.Errorf("%s has no field %q", i.schema.Name(), name)
	}
	i.values[name] = i.coerce(f.Type, f.Constraint.ItemType, value)
	return nil
}

// Update re-resolves every field from data, the current value and the
// default, in that order. A null in data counts as absent.
func (i *Instance) Update(data map[string]any) {
	for _, f := range i.schema.Fields() {
		value, ok := data[f.Name()]
		if !ok || value == nil {
			value, ok = i.values[f.Name()]
		}
		if !ok || value == nil {
			value = f.DefaultValue()
		}
		i.values[f.Name()] = i.coerce(f.Type, f.Constraint.ItemType, value)
	}
}

// coerce converts a raw value toward the field type. Values that cannot be
// converted are returned unchanged.
func (i *Instance) coerce(t, item schema.Type, value any) any {
	value = doc.Normalize(value)

	switch t.Kind() {
	case schema.KindFloat:
		if n, ok := value.(int64); ok {
			return float64(n)
		}
	case schema.KindModel:
		return i.coerceModel(t.Model(), value)
	case schema.KindList:
		items, ok := value.([]any)
		if !ok || item.IsZero() {
			return value
		}
		out := make([]any, len(items))
		for idx, v := range items {
			out[idx] = i.coerce(item, schema.Type{}, v)
		}
		return out
	}
	return value
}

func (i *Instance) coerceModel(s *schema.Schema, value any) any {
	switch v := value.(type) {
	case schema.Ref:
		return i.resolve(s, v)
	case map[string]any:
		if ref, ok := schema.RefFromValue(v); ok {
			return i.resolve(s, ref)
		}
		return New(s, v, i.options()...)
	}
	return value
}

func (i *Instance) resolve(s *schema.Schema, ref schema.Ref) any {
	if i.resolver == nil {
		return ref
	}
	if found, ok := i.resolver.Resolve(s, ref.ID); ok && found != nil {
		return found
	}
	return ref
}

// Evaluate validates the current values, descending into nested models.
// An empty result means the instance is valid.
func (i *Instance) Evaluate() schema.Violations {
	return i.schema.EvaluateAll(i.values)
}

// IsSubmittable reports whether the instance validates completely.
func (i *Instance) IsSubmittable() bool {
	return i.schema.IsSubmittable(i.values)
}

// Persistable reports whether the instance carries an identity.
func (i *Instance) Persistable() bool {
	return i.schema.Identity()
}

// ID returns the identifier, generating and caching one on first access.
// Transient instances have no identifier and return "".
func (i *Instance) ID() string {
	if !i.Persistable() {
		return ""
	}
	if id, ok := i.values[schema.IDField].(string); ok && id != "" {
		return id
	}
	id := i.ids.Generate()
	i.values[schema.IDField] = id
	return id
}

// HasID reports whether an identifier has been assigned.
func (i *Instance) HasID() bool {
	id, ok := i.values[schema.IDField].(string)
	return ok && id != ""
}

// UpdatedAt returns the revision timestamp, materializing it on first
// access.
func (i *Instance) UpdatedAt() string {
	if !i.Persistable() {
		return ""
	}
	if ts, ok := i.values[schema.UpdatedAtField].(string); ok && ts != "" {
		return ts
	}
	return i.Touch()
}

// Touch sets the revision timestamp to the current time.
func (i *Instance) Touch() string {
	if !i.Persistable() {
		return ""
	}
	ts := FormatTimestamp(i.clock.Now())
	i.values[schema.UpdatedAtField] = ts
	return ts
}

// Nested returns the persistable instances held directly by this one,
// in field order, including those inside list fields.
func (i *Instance) Nested() []*Instance {
	var out []*Instance
	for _, f := range i.schema.Fields() {
		switch v := i.values[f.Name()].(type) {
		case *Instance:
			if v.Persistable() {
				out = append(out, v)
			}
		case []any:
			for _, item := range v {
				if nested, ok := item.(*Instance); ok && nested.Persistable() {
					out = append(out, nested)
				}
			}
		}
	}
	return out
}

// String implements fmt.Stringer.
func (i *Instance) String() string {
	if i.Persistable() && i.HasID() {
		return fmt.Sprintf("%s(%s)", i.schema.Name(), i.ID())
	}
	return i.schema.Name()
}
