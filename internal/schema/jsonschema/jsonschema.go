// Package jsonschema exports flexschema Schemas as JSON Schema (draft-07)
// documents and validates raw stored documents against them.
//
// The export describes the stored shape of a record: nested transient
// models are inline objects, nested persistable models are either inline
// objects or {"$id": "..."} references, and every field is present.
// Nested model schemas are emitted once under "definitions" and referenced
// with "$ref", so self-referencing schemas export without recursion.
package jsonschema

import (
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/flexschema/internal/schema"
)

// Draft is the JSON Schema dialect emitted by Export.
const Draft = "http://json-schema.org/draft-07/schema#"

// Export renders s as a JSON Schema document.
func Export(s *schema.Schema) map[string]any {
	e := &exporter{root: s, definitions: map[string]any{}, names: map[*schema.Schema]string{}}

	root := e.object(s)
	root["$schema"] = Draft
	root["title"] = s.Name()
	if len(e.definitions) > 0 {
		root["definitions"] = e.definitions
	}
	return root
}

type exporter struct {
	root        *schema.Schema
	definitions map[string]any
	names       map[*schema.Schema]string
}

func (e *exporter) object(s *schema.Schema) map[string]any {
	props := make(map[string]any, s.Len())
	var required []any
	for _, f := range s.Fields() {
		props[f.Name()] = e.field(f)
		if !f.Nullable {
			required = append(required, f.Name())
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func (e *exporter) field(f *schema.Field) map[string]any {
	out := e.typed(f.Type, f.Constraint.ItemType)
	c := f.Constraint

	switch f.Type.Kind() {
	case schema.KindString:
		if c.MinLength > 0 {
			out["minLength"] = int64(math.Ceil(c.MinLength))
		}
		if c.MaxLength > 0 {
			out["maxLength"] = int64(math.Floor(c.MaxLength))
		}
		if c.Pattern != "" {
			out["pattern"] = "^(?:" + c.Pattern + ")"
		}
	case schema.KindInt, schema.KindFloat:
		if c.MinLength > 0 {
			out["minimum"] = c.MinLength
		}
		if c.MaxLength > 0 {
			out["maximum"] = c.MaxLength
		}
	case schema.KindList:
		if c.MinLength > 0 {
			out["minItems"] = int64(math.Ceil(c.MinLength))
		}
		if c.MaxLength > 0 {
			out["maxItems"] = int64(math.Floor(c.MaxLength))
		}
		if f.MinOccurs > 0 {
			out["x-min-occurs"] = int64(f.MinOccurs)
		}
	}

	if f.Default != nil {
		out["default"] = f.Default
	}
	if f.Nullable {
		return nullable(out)
	}
	return out
}

// typed returns the bare type description for t.
func (e *exporter) typed(t, item schema.Type) map[string]any {
	switch t.Kind() {
	case schema.KindString:
		return map[string]any{"type": "string"}
	case schema.KindInt:
		return map[string]any{"type": "integer"}
	case schema.KindFloat:
		return map[string]any{"type": "number"}
	case schema.KindBool:
		return map[string]any{"type": "boolean"}
	case schema.KindObject:
		return map[string]any{"type": "object"}
	case schema.KindList:
		out := map[string]any{"type": "array"}
		if !item.IsZero() {
			out["items"] = nullable(e.typed(item, schema.Type{}))
		}
		return out
	case schema.KindModel:
		return e.model(t.Model())
	}
	return map[string]any{}
}

func (e *exporter) model(s *schema.Schema) map[string]any {
	ref := "#"
	if s != e.root {
		name, ok := e.names[s]
		if !ok {
			name = e.definitionName(s)
			e.names[s] = name
			e.definitions[name] = map[string]any{}
			e.definitions[name] = e.object(s)
		}
		ref = "#/definitions/" + name
	}

	target := map[string]any{"$ref": ref}
	if !s.Identity() {
		return target
	}
	return map[string]any{"anyOf": []any{refShape(), target}}
}

// definitionName picks a unique definitions key for s.
func (e *exporter) definitionName(s *schema.Schema) string {
	base := s.Name()
	if base == "" {
		base = "Model"
	}
	name := base
	for i := 2; ; i++ {
		if _, taken := e.definitions[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
}

func refShape() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{schema.RefKey: map[string]any{"type": "string"}},
		"required":             []any{schema.RefKey},
		"additionalProperties": false,
	}
}

// nullable widens a description to also accept null.
func nullable(desc map[string]any) map[string]any {
	if t, ok := desc["type"].(string); ok {
		desc["type"] = []any{t, "null"}
		return desc
	}
	if anyOf, ok := desc["anyOf"].([]any); ok {
		desc["anyOf"] = append(anyOf, map[string]any{"type": "null"})
		return desc
	}
	return map[string]any{"anyOf": []any{desc, map[string]any{"type": "null"}}}
}

// Validator checks stored documents against a compiled export.
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile exports s and compiles it for validation.
func Compile(s *schema.Schema) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(Export(s)))
	if err != nil {
		return nil, fmt.Errorf("compile json schema for %s: %w", s.Name(), err)
	}
	return &Validator{name: s.Name(), schema: compiled}, nil
}

// Validate returns nil when the document conforms, or an error listing
// every failure.
func (v *Validator) Validate(document map[string]any) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("json schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("document does not conform to %s: %s", v.name, strings.Join(msgs, "; "))
}
