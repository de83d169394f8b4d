package translate

import (
	"fmt"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
)

// Native renders n as a document-store filter document.
//
// Field predicates render as {field: {op: value}}; regex flags go in a
// sibling $options. Negation of a single field predicate renders as a
// field-level $not; negation of anything else renders as $nor. The inert
// filter renders as {}.
func Native(n filter.Node) (map[string]any, error) {
	switch node := n.(type) {
	case nil:
		return map[string]any{}, nil
	case filter.Predicate:
		return map[string]any{node.Field: operatorObject(node)}, nil
	case filter.And:
		if len(node.Nodes) == 0 {
			return map[string]any{}, nil
		}
		children, err := nativeList(node.Nodes)
		if err != nil {
			return nil, err
		}
		return map[string]any{filter.KeyAnd: children}, nil
	case filter.Or:
		if len(node.Nodes) == 0 {
			// An empty OR matches nothing: the negation of match-all.
			return map[string]any{filter.KeyNor: []any{map[string]any{}}}, nil
		}
		children, err := nativeList(node.Nodes)
		if err != nil {
			return nil, err
		}
		return map[string]any{filter.KeyOr: children}, nil
	case filter.Not:
		if pred, ok := node.Node.(filter.Predicate); ok {
			return map[string]any{pred.Field: map[string]any{filter.KeyNot: operatorObject(pred)}}, nil
		}
		inner, err := Native(node.Node)
		if err != nil {
			return nil, err
		}
		return map[string]any{filter.KeyNor: []any{inner}}, nil
	case filter.Computed:
		return nil, fmt.Errorf("native filter: computed predicate on %q: %w", node.Field, ErrUnsupported)
	}
	return nil, fmt.Errorf("native filter: %T: %w", n, ErrUnsupported)
}

func nativeList(nodes []filter.Node) ([]any, error) {
	out := make([]any, 0, len(nodes))
	for _, child := range nodes {
		m, err := Native(child)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func operatorObject(p filter.Predicate) map[string]any {
	obj := map[string]any{string(p.Op): doc.Clone(p.Value)}
	if p.Op == filter.OpRegex && p.Options != "" {
		obj[filter.KeyOptions] = p.Options
	}
	return obj
}

// NativeJSON renders the native filter as canonical JSON.
func NativeJSON(n filter.Node) (string, error) {
	m, err := Native(n)
	if err != nil {
		return "", err
	}
	data, err := doc.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("native filter: %w", err)
	}
	return string(data), nil
}
