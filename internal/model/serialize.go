package model

import (
	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/schema"
)

// ToSerializable converts the instance into a document.
//
// CRITICAL: JSON export and backend writes both go through this function
// so the two representations stay byte-identical.
//
// Nested persistable instances collapse to {"$id": ...} only in persist
// mode and only once they have an identifier; otherwise they are inlined.
// Unresolved references always serialize as {"$id": ...}. Each field's
// transform, when set, receives the field's serialized value.
func (i *Instance) ToSerializable(persist bool) map[string]any {
	out := make(map[string]any, len(i.values))
	for _, f := range i.schema.Fields() {
		v := serializeValue(i.values[f.Name()], persist)
		if f.Transform != nil && v != nil {
			v = doc.Normalize(f.Transform(v))
		}
		out[f.Name()] = v
	}
	return out
}

func serializeValue(v any, persist bool) any {
	switch val := v.(type) {
	case *Instance:
		if persist && val.Persistable() && val.HasID() {
			return map[string]any{schema.RefKey: val.ID()}
		}
		return val.ToSerializable(persist)
	case schema.Ref:
		return map[string]any{schema.RefKey: val.ID}
	case []any:
		out := make([]any, len(val))
		for idx, item := range val {
			out[idx] = serializeValue(item, persist)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = serializeValue(item, persist)
		}
		return out
	default:
		return val
	}
}

// ToJSON renders the serialized instance as canonical JSON. A non-empty
// indent pretty-prints the output.
func (i *Instance) ToJSON(persist bool, indent string) ([]byte, error) {
	return doc.MarshalCanonicalIndent(i.ToSerializable(persist), indent)
}

// MarshalJSON implements json.Marshaler with the non-persist form.
func (i *Instance) MarshalJSON() ([]byte, error) {
	return doc.MarshalCanonical(i.ToSerializable(false))
}
