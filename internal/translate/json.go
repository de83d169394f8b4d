package translate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
)

// DefaultColumn holds the serialized record in relational tables.
const DefaultColumn = "document"

// RegexpFunc is the SQL function the relational backend registers for
// $regex: flex_regexp(pattern, options, value) returns 1 on a match.
const RegexpFunc = "flex_regexp"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a table or column
// name. Table names are still double-quoted so SQL keywords are safe.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// JSONCompiler compiles filter trees to SQLite predicates over a JSON
// document column.
//
// CRITICAL: All operands and JSON paths are parameterized (never
// interpolated). Only the validated table and column names are written
// into the SQL text.
//
// Each field predicate has document-store semantics. json_each yields the
// value itself for scalars and the elements for arrays, so one EXISTS
// subquery tests "the value or any element". Objects are excluded from
// element matching by a json_type guard. Comparisons test the element's
// JSON type first, which keeps them type-bracketed.
type JSONCompiler struct {
	Column string
}

// NewJSONCompiler creates a compiler for the default document column.
func NewJSONCompiler() *JSONCompiler {
	return &JSONCompiler{Column: DefaultColumn}
}

// FindQuery describes a bounded, sorted read.
type FindQuery struct {
	Table  string
	Filter filter.Node
	Sort   []filter.SortKey
	Skip   int
	Limit  int
}

// Select compiles a SELECT of the document column.
//
// MANDATORY: Every query ends its ORDER BY with "_id COLLATE BINARY ASC"
// so ties and unsorted reads come back in a deterministic order.
func (c *JSONCompiler) Select(q FindQuery) (string, []any, error) {
	if !ValidIdentifier(q.Table) {
		return "", nil, fmt.Errorf("invalid table name %q", q.Table)
	}
	where, params, err := c.Predicate(q.Filter)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %q WHERE %s ORDER BY ", c.column(), q.Table, where)
	for _, k := range q.Sort {
		path, err := jsonPath(k.Field)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, "json_extract(%s, ?) %s, ", c.column(), k.Dir)
		params = append(params, path)
	}
	b.WriteString("_id COLLATE BINARY ASC")

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	case q.Skip > 0:
		b.WriteString(" LIMIT -1")
	}
	if q.Skip > 0 {
		b.WriteString(" OFFSET ?")
		params = append(params, int64(q.Skip))
	}
	return b.String(), params, nil
}

// Count compiles a COUNT over the rows matching n.
func (c *JSONCompiler) Count(table string, n filter.Node) (string, []any, error) {
	if !ValidIdentifier(table) {
		return "", nil, fmt.Errorf("invalid table name %q", table)
	}
	where, params, err := c.Predicate(n)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE %s", table, where), params, nil
}

// Predicate compiles n to a boolean SQL expression. The expression never
// evaluates to NULL, so it can be negated safely.
func (c *JSONCompiler) Predicate(n filter.Node) (string, []any, error) {
	switch node := n.(type) {
	case nil:
		return "1 = 1", nil, nil
	case filter.Predicate:
		return c.predicate(node)
	case filter.And:
		return c.join(node.Nodes, "AND", "1 = 1")
	case filter.Or:
		return c.join(node.Nodes, "OR", "0 = 1")
	case filter.Not:
		inner, params, err := c.Predicate(node.Node)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", params, nil
	case filter.Computed:
		return "", nil, fmt.Errorf("json predicate: computed predicate on %q: %w", node.Field, ErrUnsupported)
	}
	return "", nil, fmt.Errorf("json predicate: %T: %w", n, ErrUnsupported)
}

func (c *JSONCompiler) column() string {
	if c.Column == "" {
		return DefaultColumn
	}
	return c.Column
}

func (c *JSONCompiler) join(nodes []filter.Node, op, empty string) (string, []any, error) {
	switch len(nodes) {
	case 0:
		return empty, nil, nil
	case 1:
		return c.Predicate(nodes[0])
	}
	parts := make([]string, 0, len(nodes))
	var params []any
	for _, child := range nodes {
		s, p, err := c.Predicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", params, nil
}

func (c *JSONCompiler) predicate(p filter.Predicate) (string, []any, error) {
	path, err := jsonPath(p.Field)
	if err != nil {
		return "", nil, err
	}

	switch p.Op {
	case filter.OpEq:
		return c.equals(path, p.Value)
	case filter.OpNe:
		s, params, err := c.equals(path, p.Value)
		return "NOT (" + s + ")", params, err
	case filter.OpIn:
		return c.in(path, p.Value)
	case filter.OpNin:
		s, params, err := c.in(path, p.Value)
		return "NOT (" + s + ")", params, err
	case filter.OpLt, filter.OpLte, filter.OpGt, filter.OpGte:
		return c.order(path, p.Op, p.Value)
	case filter.OpExists:
		if exists, _ := p.Value.(bool); exists {
			return fmt.Sprintf("json_type(%s, ?) IS NOT NULL", c.column()), []any{path}, nil
		}
		return fmt.Sprintf("json_type(%s, ?) IS NULL", c.column()), []any{path}, nil
	case filter.OpRegex:
		pattern, ok := p.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("json predicate: $regex on %q requires a string", p.Field)
		}
		if _, err := filter.Regexp(pattern, p.Options); err != nil {
			return "", nil, fmt.Errorf("json predicate: %w", err)
		}
		return c.anyElement(path, "e.type = 'text' AND "+RegexpFunc+"(?, ?, e.value)", pattern, p.Options)
	case filter.OpAll:
		items, _ := p.Value.([]any)
		if len(items) == 0 {
			return "0 = 1", nil, nil
		}
		return c.eachEquals(path, items, "AND")
	}
	return "", nil, fmt.Errorf("json predicate: operator %s: %w", p.Op, ErrUnsupported)
}

// anyElement tests cond against the value at path or any of its elements.
func (c *JSONCompiler) anyElement(path, cond string, condParams ...any) (string, []any, error) {
	col := c.column()
	sql := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM json_each(%s, ?) AS e WHERE json_type(%s, ?) <> 'object' AND %s)",
		col, col, cond)
	params := append([]any{path, path}, condParams...)
	return sql, params, nil
}

func (c *JSONCompiler) equals(path string, operand any) (string, []any, error) {
	col := c.column()
	switch v := operand.(type) {
	case nil:
		s, params, _ := c.anyElement(path, "e.type = 'null'")
		return fmt.Sprintf("(json_type(%s, ?) IS NULL OR %s)", col, s), append([]any{path}, params...), nil
	case []any, map[string]any:
		data, err := doc.MarshalCanonical(v)
		if err != nil {
			return "", nil, fmt.Errorf("json predicate: %w", err)
		}
		// The whole value, or one compound element of an array value.
		elem, elemParams, _ := c.anyElement(path, "e.type IN ('array', 'object') AND e.value = json(?)", string(data))
		sql := fmt.Sprintf(
			"(COALESCE(json_type(%s, ?) IN ('array', 'object') AND json_extract(%s, ?) = json(?), 0) OR %s)",
			col, col, elem)
		return sql, append([]any{path, path, string(data)}, elemParams...), nil
	}
	return c.scalar(path, "=", operand)
}

// scalar compares elements with a scalar operand of the same JSON type.
func (c *JSONCompiler) scalar(path, op string, operand any) (string, []any, error) {
	switch v := operand.(type) {
	case bool:
		param := int64(0)
		if v {
			param = 1
		}
		return c.anyElement(path, "e.type IN ('true', 'false') AND (e.type = 'true') "+op+" ?", param)
	case string:
		return c.anyElement(path, "e.type = 'text' AND e.value "+op+" ?", v)
	case int64, float64:
		return c.anyElement(path, "e.type IN ('integer', 'real') AND e.value "+op+" ?", v)
	}
	return "", nil, fmt.Errorf("json predicate: unsupported operand %T", operand)
}

var sqlOperators = map[filter.Op]string{
	filter.OpLt:  "<",
	filter.OpLte: "<=",
	filter.OpGt:  ">",
	filter.OpGte: ">=",
}

func (c *JSONCompiler) order(path string, op filter.Op, operand any) (string, []any, error) {
	switch operand.(type) {
	case nil, []any, map[string]any:
		return "0 = 1", nil, nil
	}
	return c.scalar(path, sqlOperators[op], operand)
}

func (c *JSONCompiler) in(path string, operand any) (string, []any, error) {
	items, _ := operand.([]any)
	if len(items) == 0 {
		return "0 = 1", nil, nil
	}
	return c.eachEquals(path, items, "OR")
}

func (c *JSONCompiler) eachEquals(path string, items []any, op string) (string, []any, error) {
	parts := make([]string, 0, len(items))
	var params []any
	for _, item := range items {
		s, p, err := c.equals(path, item)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		params = append(params, p...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", params, nil
}

// jsonPath converts a dotted field path to a quoted SQLite JSON path:
// "address.city" → `$."address"."city"`.
func jsonPath(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("json predicate: empty field path")
	}
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		if part == "" || strings.ContainsAny(part, `"\`) {
			return "", fmt.Errorf("json predicate: invalid field path %q", field)
		}
		b.WriteString(`."`)
		b.WriteString(part)
		b.WriteString(`"`)
	}
	return b.String(), nil
}
