package filter

import (
	"github.com/roach88/flexschema/internal/doc"
)

// Matches evaluates n against a normalized document in process.
// Computed leaves receive the document itself as their subject.
func Matches(n Node, document map[string]any) bool {
	return MatchesWith(n, document, document)
}

// MatchesWith is Matches with an explicit subject for Computed leaves,
// typically the model instance the document was loaded into.
func MatchesWith(n Node, document map[string]any, subject any) bool {
	switch node := n.(type) {
	case nil:
		return true
	case Predicate:
		value, present := doc.Lookup(document, node.Field)
		return matchLeaf(node.Op, node.Value, node.Options, value, present)
	case Computed:
		result := Compute(node, subject)
		return matchLeaf(node.Op, node.Value, node.Options, result, result != nil)
	case And:
		for _, child := range node.Nodes {
			if !MatchesWith(child, document, subject) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range node.Nodes {
			if MatchesWith(child, document, subject) {
				return true
			}
		}
		return false
	case Not:
		return !MatchesWith(node.Node, document, subject)
	}
	return false
}

// Compute runs a computed chain over subject and returns the normalized
// result.
func Compute(c Computed, subject any) any {
	value := subject
	for _, f := range c.Funcs {
		value = f.Fn(value, f.Args...)
	}
	return doc.Normalize(value)
}

func matchLeaf(op Op, operand any, options string, value any, present bool) bool {
	switch op {
	case OpEq:
		return equalsMatch(value, present, operand)
	case OpNe:
		return !equalsMatch(value, present, operand)
	case OpIn:
		return inMatch(value, present, operand)
	case OpNin:
		return !inMatch(value, present, operand)
	case OpLt, OpLte, OpGt, OpGte:
		return orderMatch(op, value, present, operand)
	case OpExists:
		want, _ := operand.(bool)
		return present == want
	case OpRegex:
		return regexMatch(value, present, operand, options)
	case OpAll:
		return allMatch(value, present, operand)
	}
	return false
}

// candidates returns the value and, for arrays, its elements.
func candidates(value any) []any {
	if arr, ok := value.([]any); ok {
		return arr
	}
	return []any{value}
}

func isCompound(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}

func equalsMatch(value any, present bool, operand any) bool {
	if operand == nil {
		if !present || value == nil {
			return true
		}
		for _, c := range candidates(value) {
			if c == nil {
				return true
			}
		}
		return false
	}
	if !present {
		return false
	}
	if isCompound(operand) {
		if doc.Equal(value, operand) {
			return true
		}
		arr, _ := value.([]any)
		for _, c := range arr {
			if doc.Equal(c, operand) {
				return true
			}
		}
		return false
	}
	for _, c := range candidates(value) {
		if !isCompound(c) && doc.Equal(c, operand) {
			return true
		}
	}
	return false
}

func inMatch(value any, present bool, operand any) bool {
	items, _ := operand.([]any)
	for _, item := range items {
		if equalsMatch(value, present, item) {
			return true
		}
	}
	return false
}

func orderMatch(op Op, value any, present bool, operand any) bool {
	if !present || operand == nil || isCompound(operand) {
		return false
	}
	for _, c := range candidates(value) {
		cmp, ok := doc.Compare(c, operand)
		if !ok {
			continue
		}
		switch op {
		case OpLt:
			if cmp < 0 {
				return true
			}
		case OpLte:
			if cmp <= 0 {
				return true
			}
		case OpGt:
			if cmp > 0 {
				return true
			}
		case OpGte:
			if cmp >= 0 {
				return true
			}
		}
	}
	return false
}

func regexMatch(value any, present bool, operand any, options string) bool {
	pattern, ok := operand.(string)
	if !present || !ok {
		return false
	}
	re, err := Regexp(pattern, options)
	if err != nil {
		return false
	}
	for _, c := range candidates(value) {
		if s, ok := c.(string); ok && re.MatchString(s) {
			return true
		}
	}
	return false
}

func allMatch(value any, present bool, operand any) bool {
	items, _ := operand.([]any)
	if len(items) == 0 || !present {
		return false
	}
	for _, item := range items {
		if !equalsMatch(value, present, item) {
			return false
		}
	}
	return true
}
