// Package backendtest is a conformance suite shared by every backend.
//
// The in-process matcher (filter.Matches) is the reference: each filter in
// the suite must select exactly the documents the matcher selects, and the
// suite also pins the expected identifiers so a matcher regression cannot
// hide behind an agreeing backend.
package backendtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/filter"
)

// Suite configures Run.
type Suite struct {
	// Open returns an empty backend. It is called once per subtest.
	Open func(t *testing.T) backend.Backend

	// BSONOrder marks backends that sort booleans after strings, as
	// document stores with BSON comparison order do.
	BSONOrder bool
}

// Collection is the collection the suite writes to.
const Collection = "products"

// Seed returns the documents every subtest starts from.
func Seed() []map[string]any {
	return []map[string]any{
		{"_id": "a", "_updated_at": "t1", "name": "Laptop", "price": int64(1200), "tags": []any{"sale", "new"},
			"stock": int64(5), "active": true, "dims": map[string]any{"w": int64(30)}},
		{"_id": "b", "_updated_at": "t1", "name": "lamp", "price": 45.5, "tags": []any{"home"},
			"stock": int64(0), "active": false, "note": nil},
		{"_id": "c", "_updated_at": "t1", "name": "Desk", "price": int64(300), "tags": []any{},
			"active": true, "address": map[string]any{"city": "Oslo"}, "label": "Caf\u00e9"},
		{"_id": "d", "_updated_at": "t1", "name": "Pen", "price": "n/a", "tags": "sale", "stock": nil},
		{"_id": "e", "_updated_at": "t1", "name": "Chair", "label": "Cafe\u0301",
			"pairs": []any{[]any{"x"}, "y"}},
	}
}

// FilterCase is one filter and the identifiers it selects from Seed.
type FilterCase struct {
	Name string
	Node filter.Node
	Want []string
}

func mustParse(native map[string]any) filter.Node {
	n, err := filter.Parse(native)
	if err != nil {
		panic(err)
	}
	return n
}

// FilterCases covers every operator against the Seed documents.
func FilterCases() []FilterCase {
	price, tags, stock := filter.On("price"), filter.On("tags"), filter.On("stock")
	name, active := filter.On("name"), filter.On("active")
	label, pairs := filter.On("label"), filter.On("pairs")

	return []FilterCase{
		{"inert", filter.Match(), []string{"a", "b", "c", "d", "e"}},
		{"gt number", price.Gt(100), []string{"a", "c"}},
		{"gt string", price.Gt("m"), []string{"d"}},
		{"eq float", price.Eq(45.5), []string{"b"}},
		{"eq int as float", price.Eq(1200.0), []string{"a"}},
		{"between", price.IsBetween(50, 300), []string{"c"}},
		{"folded operators", mustParse(map[string]any{"price": map[string]any{"$gte": 50, "$lte": 300}}), []string{"c"}},
		{"not between", price.IsNotBetween(50, 300), []string{"a", "b", "d", "e"}},
		{"in mixed", price.IsIn(300, "n/a"), []string{"c", "d"}},
		{"in empty", price.IsIn(), nil},
		{"lt null", price.Lt(nil), nil},
		{"array element eq", tags.Eq("sale"), []string{"a", "d"}},
		{"array element in", tags.IsIn("home", "new"), []string{"a", "b"}},
		{"array all", tags.Subset("sale", "new"), []string{"a"}},
		{"array not all", tags.NotSubset("sale", "new"), []string{"b", "c", "d", "e"}},
		{"array whole value", tags.Eq([]any{}), []string{"c"}},
		{"object whole value", filter.On("dims").Eq(map[string]any{"w": 30}), []string{"a"}},
		{"is null", stock.IsNull(), []string{"c", "d", "e"}},
		{"is not null", stock.IsNotNull(), []string{"a", "b"}},
		{"null field present", filter.On("note").IsNull(), []string{"a", "b", "c", "d", "e"}},
		{"exists", stock.Exists(), []string{"a", "b", "d"}},
		{"not exists", stock.NotExists(), []string{"c", "e"}},
		{"ne", stock.Ne(0), []string{"a", "c", "d", "e"}},
		{"nin", stock.IsNotIn(0, 5), []string{"c", "d", "e"}},
		{"is true", active.IsTrue(), []string{"a", "c"}},
		{"is false", active.IsFalse(), []string{"b"}},
		{"is empty", filter.On("note").IsEmpty(), []string{"a", "b", "c", "d", "e"}},
		{"regex insensitive", name.Match("^la"), []string{"a", "b"}},
		{"regex sensitive", name.MatchCase("^La"), []string{"a"}},
		{"regex search", name.Match("a"), []string{"a", "b", "e"}},
		{"not regex", name.NotMatch("a"), []string{"c", "d"}},
		{"composed text", label.Eq("Caf\u00e9"), []string{"c"}},
		{"decomposed text", label.Eq("Cafe\u0301"), []string{"e"}},
		{"compound element eq", pairs.Eq([]any{"x"}), []string{"e"}},
		{"compound element in", pairs.IsIn([]any{"x"}, "z"), []string{"e"}},
		{"compound whole value", pairs.Eq([]any{[]any{"x"}, "y"}), []string{"e"}},
		{"compound element ne", pairs.Ne([]any{"x"}), []string{"a", "b", "c", "d"}},
		{"compound element all", pairs.Subset([]any{"x"}, "y"), []string{"e"}},
		{"nested path", filter.On("address.city").Eq("Oslo"), []string{"c"}},
		{"or", filter.AtLeast(price.Lt(50), name.Eq("Pen")), []string{"b", "d"}},
		{"empty or", filter.Or{}, nil},
		{"not or", filter.NotAtLeast(active.IsTrue(), stock.Exists()), []string{"e"}},
		{"and", filter.Match(active.IsTrue(), price.Gt(500)), []string{"a"}},
		{"not and", filter.NotMatch(active.IsTrue(), price.Gt(500)), []string{"b", "c", "d", "e"}},
	}
}

// Run executes the suite.
func Run(t *testing.T, s Suite) {
	t.Run("filters", func(t *testing.T) {
		b := seeded(t, s)
		for _, tc := range FilterCases() {
			t.Run(tc.Name, func(t *testing.T) {
				assert.Equal(t, tc.Want, reference(tc.Node), "reference matcher")

				docs, err := b.Find(context.Background(), Collection, tc.Node, backend.FindOptions{})
				require.NoError(t, err)
				assert.Equal(t, tc.Want, ids(docs))

				n, err := b.Count(context.Background(), Collection, tc.Node)
				require.NoError(t, err)
				assert.Equal(t, len(tc.Want), n)
			})
		}
	})

	t.Run("sort", func(t *testing.T) {
		b := seeded(t, s)
		ctx := context.Background()

		docs, err := b.Find(ctx, Collection, nil, backend.FindOptions{Sort: []filter.SortKey{filter.On("price").Asc()}})
		require.NoError(t, err)
		assert.Equal(t, []string{"e", "b", "c", "a", "d"}, ids(docs))

		docs, err = b.Find(ctx, Collection, nil, backend.FindOptions{Sort: []filter.SortKey{filter.On("price").Desc()}})
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "a", "c", "b", "e"}, ids(docs))

		docs, err = b.Find(ctx, Collection, nil, backend.FindOptions{
			Sort:  []filter.SortKey{filter.On("price").Desc()},
			Skip:  1,
			Limit: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(docs))

		docs, err = b.Find(ctx, Collection, nil, backend.FindOptions{Skip: 4})
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, ids(docs))

		if !s.BSONOrder {
			docs, err = b.Find(ctx, Collection, nil, backend.FindOptions{Sort: []filter.SortKey{filter.On("active").Asc()}})
			require.NoError(t, err)
			assert.Equal(t, []string{"d", "e", "b", "a", "c"}, ids(docs))
		}
	})

	t.Run("round trip", func(t *testing.T) {
		b := seeded(t, s)
		docs, err := b.Find(context.Background(), Collection, filter.On("_id").Eq("a"), backend.FindOptions{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, Seed()[0], docs[0])

		docs, err = b.Find(context.Background(), Collection, filter.On("_id").Eq("e"), backend.FindOptions{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, Seed()[4], docs[0], "decomposed text and nested arrays read back as stored")
	})

	t.Run("replace upserts", func(t *testing.T) {
		b := seeded(t, s)
		ctx := context.Background()

		ok, err := b.Replace(ctx, Collection, "b", map[string]any{"_id": "b", "_updated_at": "t2", "name": "Lamp XL"})
		require.NoError(t, err)
		assert.True(t, ok)

		n, err := b.Count(ctx, Collection, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		docs, err := b.Find(ctx, Collection, filter.On("_id").Eq("b"), backend.FindOptions{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, map[string]any{"_id": "b", "_updated_at": "t2", "name": "Lamp XL"}, docs[0])

		ok, err = b.Replace(ctx, Collection, "", map[string]any{"name": "orphan"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		b := seeded(t, s)
		ctx := context.Background()

		ok, err := b.Delete(ctx, Collection, "c")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.Delete(ctx, Collection, "c")
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := b.Count(ctx, Collection, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("drop", func(t *testing.T) {
		b := seeded(t, s)
		ctx := context.Background()

		require.NoError(t, b.Drop(ctx, Collection))
		n, err := b.Count(ctx, Collection, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		docs, err := b.Find(ctx, "untouched", nil, backend.FindOptions{})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("invalid collection", func(t *testing.T) {
		b := s.Open(t)
		_, err := b.Count(context.Background(), "bad name;", nil)
		assert.Error(t, err)
	})
}

func seeded(t *testing.T, s Suite) backend.Backend {
	t.Helper()
	b := s.Open(t)
	for _, d := range Seed() {
		ok, err := b.Replace(context.Background(), Collection, d["_id"].(string), d)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return b
}

func reference(n filter.Node) []string {
	var out []string
	for _, d := range Seed() {
		if filter.Matches(n, d) {
			out = append(out, d["_id"].(string))
		}
	}
	return out
}

func ids(docs []map[string]any) []string {
	var out []string
	for _, d := range docs {
		id, _ := d["_id"].(string)
		out = append(out, id)
	}
	return out
}
