package translate

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/filter"
)

const priceElement = "EXISTS (SELECT 1 FROM json_each(document, ?) AS e WHERE json_type(document, ?) <> 'object' AND "

func TestJSONPredicateScalars(t *testing.T) {
	c := NewJSONCompiler()
	price := `$."price"`

	tests := []struct {
		name   string
		node   filter.Node
		sql    string
		params []any
	}{
		{
			name:   "gt number",
			node:   filter.On("price").Gt(100),
			sql:    priceElement + "e.type IN ('integer', 'real') AND e.value > ?)",
			params: []any{price, price, int64(100)},
		},
		{
			name:   "eq string",
			node:   filter.On("price").Eq("free"),
			sql:    priceElement + "e.type = 'text' AND e.value = ?)",
			params: []any{price, price, "free"},
		},
		{
			name:   "eq bool",
			node:   filter.On("price").IsTrue(),
			sql:    priceElement + "e.type IN ('true', 'false') AND (e.type = 'true') = ?)",
			params: []any{price, price, int64(1)},
		},
		{
			name:   "ne number",
			node:   filter.On("price").Ne(0),
			sql:    "NOT (" + priceElement + "e.type IN ('integer', 'real') AND e.value = ?))",
			params: []any{price, price, int64(0)},
		},
		{
			name:   "exists",
			node:   filter.On("price").Exists(),
			sql:    "json_type(document, ?) IS NOT NULL",
			params: []any{price},
		},
		{
			name:   "order against null",
			node:   filter.On("price").Lt(nil),
			sql:    "0 = 1",
			params: nil,
		},
		{
			name:   "empty in",
			node:   filter.On("price").IsIn(),
			sql:    "0 = 1",
			params: nil,
		},
		{
			name:   "inert",
			node:   filter.Match(),
			sql:    "1 = 1",
			params: nil,
		},
		{
			name:   "empty or",
			node:   filter.Or{},
			sql:    "0 = 1",
			params: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := c.Predicate(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestJSONPredicateNullAndCompound(t *testing.T) {
	c := NewJSONCompiler()
	path := `$."tags"`

	sql, params, err := c.Predicate(filter.On("tags").IsNull())
	require.NoError(t, err)
	assert.Equal(t, "(json_type(document, ?) IS NULL OR "+
		"EXISTS (SELECT 1 FROM json_each(document, ?) AS e WHERE json_type(document, ?) <> 'object' AND e.type = 'null'))", sql)
	assert.Equal(t, []any{path, path, path}, params)

	sql, params, err = c.Predicate(filter.On("tags").Eq([]any{"a", 1}))
	require.NoError(t, err)
	assert.Equal(t, "(COALESCE(json_type(document, ?) IN ('array', 'object') AND json_extract(document, ?) = json(?), 0) OR "+
		"EXISTS (SELECT 1 FROM json_each(document, ?) AS e WHERE json_type(document, ?) <> 'object' AND "+
		"e.type IN ('array', 'object') AND e.value = json(?)))", sql)
	assert.Equal(t, []any{path, path, `["a",1]`, path, path, `["a",1]`}, params)
}

func TestJSONPredicateRegex(t *testing.T) {
	c := NewJSONCompiler()

	sql, params, err := c.Predicate(filter.On("name").Match("^lap"))
	require.NoError(t, err)
	assert.Equal(t, "EXISTS (SELECT 1 FROM json_each(document, ?) AS e WHERE json_type(document, ?) <> 'object' AND "+
		"e.type = 'text' AND flex_regexp(?, ?, e.value))", sql)
	assert.Equal(t, []any{`$."name"`, `$."name"`, "^lap", "i"}, params)

	_, _, err = c.Predicate(filter.On("name").Match("("))
	require.Error(t, err)
}

func TestJSONPredicateNestedPath(t *testing.T) {
	_, params, err := NewJSONCompiler().Predicate(filter.On("address.city").Eq("Oslo"))
	require.NoError(t, err)
	assert.Equal(t, `$."address"."city"`, params[0])

	_, _, err = NewJSONCompiler().Predicate(filter.On(`a."b`).Eq(1))
	require.Error(t, err)
	_, _, err = NewJSONCompiler().Predicate(filter.On("a..b").Eq(1))
	require.Error(t, err)
}

func TestJSONSelectGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	c := NewJSONCompiler()

	sql, params, err := c.Select(FindQuery{
		Table:  "products",
		Filter: filter.Match(filter.On("price").Gt(100), filter.On("tags").IsIn("sale", "new")),
		Sort:   []filter.SortKey{filter.On("price").Desc()},
		Skip:   20,
		Limit:  10,
	})
	require.NoError(t, err)
	g.Assert(t, "json_select", []byte(sql))
	assert.Equal(t, []any{
		`$."price"`, `$."price"`, int64(100),
		`$."tags"`, `$."tags"`, "sale",
		`$."tags"`, `$."tags"`, "new",
		`$."price"`, int64(10), int64(20),
	}, params)
}

func TestJSONSelectPaging(t *testing.T) {
	c := NewJSONCompiler()

	sql, params, err := c.Select(FindQuery{Table: "t"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT document FROM \"t\" WHERE 1 = 1 ORDER BY _id COLLATE BINARY ASC", sql)
	assert.Empty(t, params)

	sql, params, err = c.Select(FindQuery{Table: "t", Skip: 5})
	require.NoError(t, err)
	assert.Equal(t, "SELECT document FROM \"t\" WHERE 1 = 1 ORDER BY _id COLLATE BINARY ASC LIMIT -1 OFFSET ?", sql)
	assert.Equal(t, []any{int64(5)}, params)

	_, _, err = c.Select(FindQuery{Table: "t; DROP TABLE t"})
	require.Error(t, err)
}

func TestJSONCount(t *testing.T) {
	sql, params, err := NewJSONCompiler().Count("products", filter.On("stock").NotExists())
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM \"products\" WHERE json_type(document, ?) IS NULL", sql)
	assert.Equal(t, []any{`$."stock"`}, params)
}

func TestJSONRejectsComputed(t *testing.T) {
	n := filter.On("x").Func("f", func(s any, _ ...any) any { return s }).Eq(1)
	_, _, err := NewJSONCompiler().Predicate(filter.AtLeast(n))
	assert.True(t, errors.Is(err, ErrUnsupported))
}
