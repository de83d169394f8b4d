package filter

import (
	"fmt"
	"strings"

	"github.com/roach88/flexschema/internal/doc"
)

// ParseError reports a malformed wire filter.
type ParseError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return "invalid filter: " + e.Message
	}
	return fmt.Sprintf("invalid filter at %s: %s", e.Path, e.Message)
}

// Parse reads a document-store filter into a Node.
//
// Keys are processed in canonical order so the result is deterministic.
// Every operator given for one field is kept: {"price": {"$gte": 50,
// "$lte": 300}} parses to an And of two predicates, never to the last
// operator alone.
func Parse(native map[string]any) (Node, error) {
	m, _ := doc.Normalize(native).(map[string]any)
	return parseObject("", m)
}

func parseObject(path string, m map[string]any) (Node, error) {
	var nodes []Node
	for _, key := range doc.SortedKeys(m) {
		n, err := parseEntry(joinPath(path, key), key, m[key])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return And{Nodes: nodes}, nil
}

func parseEntry(path, key string, value any) (Node, error) {
	switch key {
	case KeyAnd, KeyOr, KeyNor:
		children, err := parseList(path, value)
		if err != nil {
			return nil, err
		}
		switch key {
		case KeyAnd:
			return And{Nodes: children}, nil
		case KeyOr:
			return Or{Nodes: children}, nil
		}
		return Not{Node: Or{Nodes: children}}, nil
	case KeyNot:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, &ParseError{Path: path, Message: "$not requires an object"}
		}
		inner, err := parseObject(path, m)
		if err != nil {
			return nil, err
		}
		return Not{Node: inner}, nil
	}

	if strings.HasPrefix(key, "$") {
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("unknown top-level operator %q", key)}
	}
	if m, ok := value.(map[string]any); ok && isOperatorObject(m) {
		return parseField(path, key, m)
	}
	return Predicate{Field: key, Op: OpEq, Value: value}, nil
}

func parseList(path string, value any) ([]Node, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, &ParseError{Path: path, Message: "expected a list of filters"}
	}
	nodes := make([]Node, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &ParseError{Path: fmt.Sprintf("%s[%d]", path, i), Message: "expected an object"}
		}
		n, err := parseObject(fmt.Sprintf("%s[%d]", path, i), m)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// isOperatorObject reports whether every key of m is an operator.
func isOperatorObject(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// parseField folds every operator applied to one field into a conjunction.
func parseField(path, field string, ops map[string]any) (Node, error) {
	options, hasOptions := ops[KeyOptions]
	if hasOptions {
		if _, ok := ops[string(OpRegex)]; !ok {
			return nil, &ParseError{Path: path, Message: "$options requires $regex"}
		}
	}

	var nodes []Node
	for _, key := range doc.SortedKeys(ops) {
		value := ops[key]
		opPath := joinPath(path, key)

		switch {
		case key == KeyOptions:
			continue
		case key == KeyNot:
			m, ok := value.(map[string]any)
			if !ok || !isOperatorObject(m) {
				return nil, &ParseError{Path: opPath, Message: "field-level $not requires an operator object"}
			}
			inner, err := parseField(opPath, field, m)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, Not{Node: inner})
			continue
		case key == "$__function__":
			return nil, &ParseError{Path: opPath, Message: "computed predicates cannot be parsed from a wire filter"}
		}

		op := Op(key)
		if !op.Valid() {
			return nil, &ParseError{Path: opPath, Message: fmt.Sprintf("unknown operator %q", key)}
		}
		pred, err := parseOperand(opPath, field, op, value, options)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, pred)
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return And{Nodes: nodes}, nil
}

func parseOperand(path, field string, op Op, value, options any) (Node, error) {
	pred := Predicate{Field: field, Op: op, Value: value}
	switch op {
	case OpIn, OpNin, OpAll:
		if _, ok := value.([]any); !ok {
			return nil, &ParseError{Path: path, Message: fmt.Sprintf("%s requires a list", op)}
		}
	case OpExists:
		b, ok := value.(bool)
		if !ok {
			n, isNum := doc.ToFloat(value)
			if !isNum {
				return nil, &ParseError{Path: path, Message: "$exists requires a boolean"}
			}
			b = n != 0
		}
		pred.Value = b
	case OpRegex:
		pattern, ok := value.(string)
		if !ok {
			return nil, &ParseError{Path: path, Message: "$regex requires a string"}
		}
		if options != nil {
			opts, ok := options.(string)
			if !ok {
				return nil, &ParseError{Path: path, Message: "$options requires a string"}
			}
			pred.Options = opts
		}
		if _, err := Regexp(pattern, pred.Options); err != nil {
			return nil, &ParseError{Path: path, Message: err.Error()}
		}
	}
	return pred, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
