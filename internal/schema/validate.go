package schema

import (
	"encoding/json"
	"sort"

	"github.com/roach88/flexschema/internal/doc"
)

// Violation is the failure recorded for one path: either a scalar error or
// the violations of a nested record.
type Violation struct {
	Err    *ValidationError
	Nested Violations
}

// Violations maps field paths to their failures. An empty map means valid.
type Violations map[string]Violation

// MarshalJSON renders scalar failures as their message and nested failures
// as objects.
func (v Violations) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v))
	for path, viol := range v {
		if len(viol.Nested) > 0 {
			out[path] = viol.Nested
			continue
		}
		if viol.Err != nil {
			out[path] = viol.Err.Error()
		}
	}
	return json.Marshal(out)
}

// Paths returns every failing path, with nested paths dot-joined, sorted.
func (v Violations) Paths() []string {
	var paths []string
	v.walk("", func(path string, _ *ValidationError) {
		paths = append(paths, path)
	})
	sort.Strings(paths)
	return paths
}

// Errors returns every scalar error, keyed by its full path.
func (v Violations) Errors() map[string]*ValidationError {
	out := make(map[string]*ValidationError)
	v.walk("", func(path string, err *ValidationError) {
		out[path] = err
	})
	return out
}

func (v Violations) walk(prefix string, fn func(string, *ValidationError)) {
	for key, viol := range v {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if len(viol.Nested) > 0 {
			viol.Nested.walk(path, fn)
			continue
		}
		fn(path, viol.Err)
	}
}

// EvaluateAll validates the resolved value (explicit or default) of every
// field and aggregates every failure. Nested model values, given either as
// Records or as raw objects, are validated recursively against their
// Schema; the failures of a nested record are keyed under its field.
func (s *Schema) EvaluateAll(data map[string]any) Violations {
	out := Violations{}
	s.evaluate(data, func(path string, viol Violation) bool {
		out[path] = viol
		return true
	})
	return out
}

// IsSubmittable reports whether data validates completely. It stops at
// the first failure.
func (s *Schema) IsSubmittable(data map[string]any) bool {
	ok := true
	s.evaluate(data, func(string, Violation) bool {
		ok = false
		return false
	})
	return ok
}

// evaluate visits every failure; visit returns false to stop.
func (s *Schema) evaluate(data map[string]any, visit func(string, Violation) bool) bool {
	for _, f := range s.fields {
		value := doc.Normalize(f.resolve(data))

		if err := f.evaluate(f.name, value); err != nil {
			if !visit(f.name, Violation{Err: err}) {
				return false
			}
			continue
		}

		if !f.evaluateNested(value, visit) {
			return false
		}
	}
	return true
}

// evaluateNested descends into nested model values and model list items.
func (f *Field) evaluateNested(value any, visit func(string, Violation) bool) bool {
	switch f.Type.Kind() {
	case KindModel:
		return visitNested(f.Type.Model(), f.name, value, visit)
	case KindList:
		item := f.Constraint.ItemType
		items, _ := value.([]any)
		if item.Kind() != KindModel {
			return true
		}
		for i, v := range items {
			if !visitNested(item.Model(), indexPath(f.name, i), v, visit) {
				return false
			}
		}
	}
	return true
}

func visitNested(s *Schema, path string, value any, visit func(string, Violation) bool) bool {
	values, ok := nestedValues(value)
	if !ok {
		return true
	}
	nested := s.EvaluateAll(values)
	if len(nested) == 0 {
		return true
	}
	return visit(path, Violation{Nested: nested})
}

func nestedValues(v any) (map[string]any, bool) {
	switch rv := v.(type) {
	case Record:
		return rv.Values(), true
	case map[string]any:
		return rv, true
	}
	return nil, false
}
