package filter

import "github.com/roach88/flexschema/internal/doc"

// Statement builds predicates for one field path.
//
// A Statement with functions attached (see Func) builds Computed leaves
// instead of Predicates.
type Statement struct {
	field string
	funcs []Func
}

// On starts a statement for a field path ("price", "address.city").
func On(field string) Statement {
	return Statement{field: field}
}

// Field returns the statement's field path.
func (s Statement) Field() string { return s.field }

// Func appends a client-side function to the statement's chain.
func (s Statement) Func(name string, fn Fn, args ...any) Statement {
	funcs := make([]Func, len(s.funcs), len(s.funcs)+1)
	copy(funcs, s.funcs)
	s.funcs = append(funcs, Func{Name: name, Fn: fn, Args: args})
	return s
}

func (s Statement) leaf(op Op, value any) Node {
	value = doc.Normalize(value)
	if len(s.funcs) > 0 {
		return Computed{Field: s.field, Funcs: s.funcs, Op: op, Value: value}
	}
	return Predicate{Field: s.field, Op: op, Value: value}
}

// Eq matches values equal to v.
func (s Statement) Eq(v any) Node { return s.leaf(OpEq, v) }

// Ne matches values not equal to v, including missing ones.
func (s Statement) Ne(v any) Node { return s.leaf(OpNe, v) }

// Lt matches values less than v.
func (s Statement) Lt(v any) Node { return s.leaf(OpLt, v) }

// Lte matches values less than or equal to v.
func (s Statement) Lte(v any) Node { return s.leaf(OpLte, v) }

// Gt matches values greater than v.
func (s Statement) Gt(v any) Node { return s.leaf(OpGt, v) }

// Gte matches values greater than or equal to v.
func (s Statement) Gte(v any) Node { return s.leaf(OpGte, v) }

// Exists matches documents that contain the field, even when null.
func (s Statement) Exists() Node { return s.leaf(OpExists, true) }

// NotExists matches documents without the field.
func (s Statement) NotExists() Node { return s.leaf(OpExists, false) }

// IsTrue matches true.
func (s Statement) IsTrue() Node { return s.Eq(true) }

// IsFalse matches false.
func (s Statement) IsFalse() Node { return s.Eq(false) }

// IsNull matches null or missing values.
func (s Statement) IsNull() Node { return s.Eq(nil) }

// IsNotNull matches present, non-null values.
func (s Statement) IsNotNull() Node { return s.Ne(nil) }

// IsEmpty matches null, missing or empty-string values.
func (s Statement) IsEmpty() Node { return s.leaf(OpIn, []any{nil, ""}) }

// IsNotEmpty is the negation of IsEmpty.
func (s Statement) IsNotEmpty() Node { return s.leaf(OpNin, []any{nil, ""}) }

// IsBetween matches the inclusive range [start, end].
func (s Statement) IsBetween(start, end any) Node {
	return And{Nodes: []Node{s.Gte(start), s.Lte(end)}}
}

// IsNotBetween is the negation of IsBetween.
func (s Statement) IsNotBetween(start, end any) Node {
	return Not{Node: s.IsBetween(start, end)}
}

// IsIn matches values equal to one of items.
func (s Statement) IsIn(items ...any) Node { return s.leaf(OpIn, items) }

// IsNotIn matches values equal to none of items.
func (s Statement) IsNotIn(items ...any) Node { return s.leaf(OpNin, items) }

// Match matches strings containing pattern, ignoring case.
func (s Statement) Match(pattern string) Node { return s.regex(pattern, "i") }

// MatchCase matches strings containing pattern, respecting case.
func (s Statement) MatchCase(pattern string) Node { return s.regex(pattern, "") }

// NotMatch is the negation of Match.
func (s Statement) NotMatch(pattern string) Node { return Not{Node: s.Match(pattern)} }

// NotMatchCase is the negation of MatchCase.
func (s Statement) NotMatchCase(pattern string) Node { return Not{Node: s.MatchCase(pattern)} }

func (s Statement) regex(pattern, options string) Node {
	if len(s.funcs) > 0 {
		return Computed{Field: s.field, Funcs: s.funcs, Op: OpRegex, Value: pattern, Options: options}
	}
	return Predicate{Field: s.field, Op: OpRegex, Value: pattern, Options: options}
}

// Subset matches lists containing every one of items.
func (s Statement) Subset(items ...any) Node { return s.leaf(OpAll, items) }

// NotSubset is the negation of Subset.
func (s Statement) NotSubset(items ...any) Node { return Not{Node: s.Subset(items...)} }

// Asc sorts ascending by the statement's field.
func (s Statement) Asc() SortKey { return SortKey{Field: s.field, Dir: Ascending} }

// Desc sorts descending by the statement's field.
func (s Statement) Desc() SortKey { return SortKey{Field: s.field, Dir: Descending} }

// Match wraps nodes in AND. With no nodes it is the inert filter.
func Match(nodes ...Node) Node {
	if len(nodes) == 0 {
		return And{}
	}
	return And{Nodes: nodes}
}

// AtLeast wraps nodes in OR. With no nodes it is the inert filter.
func AtLeast(nodes ...Node) Node {
	if len(nodes) == 0 {
		return And{}
	}
	return Or{Nodes: nodes}
}

// NotMatch negates Match. With no nodes it is the inert filter.
func NotMatch(nodes ...Node) Node {
	if len(nodes) == 0 {
		return And{}
	}
	return Not{Node: Match(nodes...)}
}

// NotAtLeast negates AtLeast. With no nodes it is the inert filter.
func NotAtLeast(nodes ...Node) Node {
	if len(nodes) == 0 {
		return And{}
	}
	return Not{Node: AtLeast(nodes...)}
}
