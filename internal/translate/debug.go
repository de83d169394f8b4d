package translate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
)

// DebugSQL renders n as an SQL-like WHERE expression.
//
// CRITICAL: Literals are interpolated. The output is a debug aid for logs
// and the CLI and must never be sent to a database.
func DebugSQL(n filter.Node) (string, error) {
	switch node := n.(type) {
	case nil:
		return "1 = 1", nil
	case filter.Predicate:
		return debugPredicate(node)
	case filter.And:
		return debugJoin(node.Nodes, "AND", "1 = 1")
	case filter.Or:
		return debugJoin(node.Nodes, "OR", "1 = 0")
	case filter.Not:
		inner, err := DebugSQL(node.Node)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.Computed:
		return "", fmt.Errorf("debug sql: computed predicate on %q: %w", node.Field, ErrUnsupported)
	}
	return "", fmt.Errorf("debug sql: %T: %w", n, ErrUnsupported)
}

// DebugQuery renders a full SELECT statement for a collection, in the
// same debug-only form as DebugSQL.
func DebugQuery(collection string, n filter.Node, sort filter.Sort) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(collection)
	if !filter.IsInert(n) {
		where, err := DebugSQL(n)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if sort.Len() > 0 {
		parts := make([]string, 0, sort.Len())
		for _, k := range sort.Keys() {
			parts = append(parts, k.Field+" "+k.Dir.String())
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String(), nil
}

func debugJoin(nodes []filter.Node, op, empty string) (string, error) {
	switch len(nodes) {
	case 0:
		return empty, nil
	case 1:
		return DebugSQL(nodes[0])
	}
	parts := make([]string, 0, len(nodes))
	for _, child := range nodes {
		s, err := DebugSQL(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", nil
}

var debugOperators = map[filter.Op]string{
	filter.OpEq:  "=",
	filter.OpNe:  "!=",
	filter.OpLt:  "<",
	filter.OpLte: "<=",
	filter.OpGt:  ">",
	filter.OpGte: ">=",
}

func debugPredicate(p filter.Predicate) (string, error) {
	field := p.Field
	switch p.Op {
	case filter.OpEq:
		if p.Value == nil {
			return field + " IS NULL", nil
		}
	case filter.OpNe:
		if p.Value == nil {
			return field + " IS NOT NULL", nil
		}
	case filter.OpIn, filter.OpNin, filter.OpAll:
		list, err := debugList(p.Value)
		if err != nil {
			return "", err
		}
		switch p.Op {
		case filter.OpIn:
			return field + " IN " + list, nil
		case filter.OpNin:
			return field + " NOT IN " + list, nil
		}
		return field + " CONTAINS ALL " + list, nil
	case filter.OpExists:
		if exists, _ := p.Value.(bool); exists {
			return field + " IS NOT NULL", nil
		}
		return field + " IS NULL", nil
	case filter.OpRegex:
		pattern, _ := p.Value.(string)
		if strings.Contains(p.Options, "i") {
			pattern = "(?i)" + pattern
		}
		return field + " REGEXP " + quote(pattern), nil
	}

	sqlOp, ok := debugOperators[p.Op]
	if !ok {
		return "", fmt.Errorf("debug sql: operator %s: %w", p.Op, ErrUnsupported)
	}
	lit, err := debugLiteral(p.Value)
	if err != nil {
		return "", err
	}
	return field + " " + sqlOp + " " + lit, nil
}

func debugList(v any) (string, error) {
	items, _ := v.([]any)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		lit, err := debugLiteral(item)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

func debugLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return quote(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	}
	data, err := doc.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("debug sql: %w", err)
	}
	if _, isFloat := v.(float64); isFloat {
		return string(data), nil
	}
	return quote(string(data)), nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
