package schema

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of field type tags.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindObject
	KindModel
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindList:   "list",
	KindObject: "object",
	KindModel:  "model",
}

// String returns the kind's lowercase name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Type is a field type: a Kind plus, for KindModel, the nested Schema.
// The zero Type is invalid.
type Type struct {
	kind  Kind
	model *Schema
}

// Scalar and container types.
var (
	String = Type{kind: KindString}
	Int    = Type{kind: KindInt}
	Float  = Type{kind: KindFloat}
	Bool   = Type{kind: KindBool}
	List   = Type{kind: KindList}
	Object = Type{kind: KindObject}
)

// ModelOf returns the type of a field holding a nested model of s.
func ModelOf(s *Schema) Type {
	return Type{kind: KindModel, model: s}
}

// ParseType maps a declarative type name to a scalar or container Type.
// Model types are declared by reference and cannot be parsed by name.
func ParseType(name string) (Type, bool) {
	switch name {
	case "string", "str":
		return String, true
	case "int", "integer":
		return Int, true
	case "float", "number":
		return Float, true
	case "bool", "boolean":
		return Bool, true
	case "list", "array":
		return List, true
	case "object", "dict":
		return Object, true
	}
	return Type{}, false
}

// Kind returns the type tag.
func (t Type) Kind() Kind { return t.kind }

// Model returns the nested Schema of a KindModel type, nil otherwise.
func (t Type) Model() *Schema { return t.model }

// IsZero reports whether the type was never set.
func (t Type) IsZero() bool { return t.kind == KindInvalid }

// Valid reports whether the type is a legal field type.
func (t Type) Valid() bool {
	if t.kind == KindModel {
		return t.model != nil
	}
	_, ok := kindNames[t.kind]
	return ok && t.kind != KindModel
}

// String names the type in messages; model types use the schema name.
func (t Type) String() string {
	if t.kind == KindModel && t.model != nil {
		return t.model.Name()
	}
	return t.kind.String()
}

// Record is a value that carries its own Schema, such as a model instance.
// Nested model fields accept Records of the referenced Schema.
type Record interface {
	Schema() *Schema
	Values() map[string]any
}

// Ref is an unresolved by-identifier link to a persistable record.
// It serializes as {"$id": "<id>"}.
type Ref struct {
	ID string
}

// RefKey is the reserved key of the by-reference shape.
const RefKey = "$id"

// MarshalJSON implements json.Marshaler.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{RefKey: r.ID})
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	return fmt.Sprintf("Ref(%s)", r.ID)
}

// RefFromValue recognizes the {"$id": "<id>"} shape.
func RefFromValue(v any) (Ref, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return Ref{}, false
	}
	id, ok := m[RefKey].(string)
	if !ok {
		return Ref{}, false
	}
	return Ref{ID: id}, true
}
