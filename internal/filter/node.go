package filter

import "fmt"

// Op is a field-level filter operator.
type Op string

// Field operators of the wire vocabulary.
const (
	OpEq     Op = "$eq"
	OpNe     Op = "$ne"
	OpLt     Op = "$lt"
	OpLte    Op = "$lte"
	OpGt     Op = "$gt"
	OpGte    Op = "$gte"
	OpIn     Op = "$in"
	OpNin    Op = "$nin"
	OpExists Op = "$exists"
	OpRegex  Op = "$regex"
	OpAll    Op = "$all"
)

// Logical operators of the wire vocabulary.
const (
	KeyAnd     = "$and"
	KeyOr      = "$or"
	KeyNor     = "$nor"
	KeyNot     = "$not"
	KeyOptions = "$options"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpIn: true, OpNin: true, OpExists: true, OpRegex: true, OpAll: true,
}

// Valid reports whether op belongs to the vocabulary.
func (op Op) Valid() bool { return knownOps[op] }

// Node is a filter tree node.
//
// This is a sealed interface: Predicate, And, Or, Not and Computed are the
// only implementations.
type Node interface {
	filterNode()
}

// Predicate compares one field path with an operand.
//
// Value holds the normalized operand: a list for $in, $nin and $all, a
// bool for $exists and a pattern string for $regex. Options carries regex
// flags ("i" for case-insensitive).
type Predicate struct {
	Field   string
	Op      Op
	Value   any
	Options string
}

func (Predicate) filterNode() {}

// And matches when every node matches. An empty And matches everything.
type And struct {
	Nodes []Node
}

func (And) filterNode() {}

// Or matches when at least one node matches. An empty Or matches nothing.
type Or struct {
	Nodes []Node
}

func (Or) filterNode() {}

// Not inverts a node.
type Not struct {
	Node Node
}

func (Not) filterNode() {}

// Fn is a client-side function over a record. The first function of a
// chain receives the record; each following one receives the previous
// result.
type Fn func(subject any, args ...any) any

// Func is one step of a computed chain.
type Func struct {
	Name string
	Fn   Fn
	Args []any
}

// Computed compares the result of a function chain with an operand.
// Field names the field the chain was started from.
type Computed struct {
	Field   string
	Funcs   []Func
	Op      Op
	Value   any
	Options string
}

func (Computed) filterNode() {}

// IsInert reports whether n matches every document without constraint.
func IsInert(n Node) bool {
	switch node := n.(type) {
	case nil:
		return true
	case And:
		for _, child := range node.Nodes {
			if !IsInert(child) {
				return false
			}
		}
		return true
	}
	return false
}

// HasComputed reports whether any leaf of n is a Computed node.
func HasComputed(n Node) bool {
	switch node := n.(type) {
	case Computed:
		return true
	case And:
		return anyComputed(node.Nodes)
	case Or:
		return anyComputed(node.Nodes)
	case Not:
		return HasComputed(node.Node)
	}
	return false
}

func anyComputed(nodes []Node) bool {
	for _, child := range nodes {
		if HasComputed(child) {
			return true
		}
	}
	return false
}

// Conjoin merges nodes into one conjunction, dropping nils and inert
// nodes and flattening nested Ands. A single remaining node is returned
// as-is; none yields the inert And{}.
func Conjoin(nodes ...Node) Node {
	var out []Node
	for _, n := range nodes {
		switch node := n.(type) {
		case nil:
		case And:
			for _, child := range node.Nodes {
				if !IsInert(child) {
					out = append(out, child)
				}
			}
		default:
			out = append(out, node)
		}
	}
	switch len(out) {
	case 0:
		return And{}
	case 1:
		return out[0]
	}
	return And{Nodes: out}
}

// Fields returns the distinct leaf field paths of n in first-seen order.
func Fields(n Node) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case Predicate:
			if !seen[node.Field] {
				seen[node.Field] = true
				out = append(out, node.Field)
			}
		case Computed:
			if !seen[node.Field] {
				seen[node.Field] = true
				out = append(out, node.Field)
			}
		case And:
			for _, child := range node.Nodes {
				walk(child)
			}
		case Or:
			for _, child := range node.Nodes {
				walk(child)
			}
		case Not:
			walk(node.Node)
		}
	}
	walk(n)
	return out
}

// String renders a compact description of n for logs.
func String(n Node) string {
	switch node := n.(type) {
	case nil:
		return "<nil>"
	case Predicate:
		return fmt.Sprintf("%s %s %v", node.Field, node.Op, node.Value)
	case Computed:
		return fmt.Sprintf("%s|%d fn %s %v", node.Field, len(node.Funcs), node.Op, node.Value)
	case And:
		return joinNodes("AND", node.Nodes)
	case Or:
		return joinNodes("OR", node.Nodes)
	case Not:
		return "NOT(" + String(node.Node) + ")"
	}
	return fmt.Sprintf("%T", n)
}

func joinNodes(op string, nodes []Node) string {
	s := op + "("
	for i, child := range nodes {
		if i > 0 {
			s += ", "
		}
		s += String(child)
	}
	return s + ")"
}
