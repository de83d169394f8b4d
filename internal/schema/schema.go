package schema

import (
	"github.com/roach88/flexschema/internal/doc"
)

// Reserved identity fields injected by NewIdent.
const (
	IDField        = "_id"
	UpdatedAtField = "_updated_at"
)

// Schema is an insertion-ordered registry of uniquely named Fields.
type Schema struct {
	name     string
	identity bool
	fields   []*Field
	index    map[string]*Field
}

// New builds a Schema from fields, in order. The first illegal field stops
// construction with a *DefinitionError.
func New(name string, fields ...*Field) (*Schema, error) {
	s := &Schema{name: name, index: make(map[string]*Field)}
	for _, f := range fields {
		if err := s.AddField(f.name, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewIdent builds a persistable Schema: "_id" and "_updated_at" are
// registered first, then fields.
func NewIdent(name string, fields ...*Field) (*Schema, error) {
	s := &Schema{name: name, identity: true, index: make(map[string]*Field)}
	for _, f := range identityFields() {
		if err := s.AddField(f.name, f); err != nil {
			return nil, err
		}
	}
	for _, f := range fields {
		if err := s.AddField(f.name, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is New that panics on a definition error. Use it for
// package-level schema declarations.
func MustNew(name string, fields ...*Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// MustNewIdent is NewIdent that panics on a definition error.
func MustNewIdent(name string, fields ...*Field) *Schema {
	s, err := NewIdent(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func identityFields() []*Field {
	return []*Field{
		NewField(IDField, String),
		NewField(UpdatedAtField, String),
	}
}

// AddField validates f and registers it under name. The field is copied;
// later changes to f do not affect the Schema.
func (s *Schema) AddField(name string, f *Field) error {
	cp := *f
	cp.name = name
	cp.pattern = nil

	if _, exists := s.index[name]; exists {
		return &DefinitionError{Schema: s.name, Field: name, Code: ErrDuplicateField, Message: "field is already defined"}
	}
	if code, msg := cp.compile(); code != "" {
		return &DefinitionError{Schema: s.name, Field: name, Code: code, Message: msg}
	}

	s.fields = append(s.fields, &cp)
	s.index[name] = &cp
	return nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Identity reports whether the schema was built by NewIdent.
func (s *Schema) Identity() bool { return s.identity }

// Fields returns the fields in registration order.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.index[name]
	return f, ok
}

// Names returns field names in registration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// DefaultValue returns a fresh copy of the field's default.
func (f *Field) DefaultValue() any {
	return doc.Clone(f.Default)
}

// resolve returns data[name] when present and non-null, else the default.
func (f *Field) resolve(data map[string]any) any {
	if v, ok := data[f.name]; ok && v != nil {
		return v
	}
	return f.DefaultValue()
}
