package orm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/backend/memory"
	"github.com/roach88/flexschema/internal/backend/sqlite"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/model"
)

func fruitProducts() []map[string]any {
	return []map[string]any{
		{"name": "Apple", "price": 1.5},
		{"name": "Banana", "price": 2},
		{"name": "Cherry", "price": 3.25, "stock": 7},
	}
}

func TestFetchAllTenThousandRecords(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")

	for i := 0; i < 10000; i++ {
		price := float64(i % 100)
		if i < 37 {
			price = float64(101 + i)
		}
		seedProducts(t, products, map[string]any{"name": fmt.Sprintf("product %d", i), "price": price})
	}

	page, err := products.Select().
		WhereNative(map[string]any{"price": map[string]any{"$gt": 100}}).
		Sort(filter.On("price").Desc()).
		FetchAll(ctx, 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 37, page.TotalItems)
	assert.Equal(t, 4, page.TotalPages())
	require.Len(t, page.Items, 10)
	for i, inst := range page.Items {
		assert.Equal(t, float64(137-i), inst.Get("price"))
	}
}

func TestFetchAllPagingBoundaries(t *testing.T) {
	ctx := context.Background()
	counting := &countingBackend{Backend: memory.New()}
	db := newTestDB(counting)
	products := db.MustAttach(productSchema, "")
	seedProducts(t, products, fruitProducts()...)
	q := products.Select().Sort(filter.On("name").Asc())

	page, err := q.FetchAll(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page, "page 0 behaves as page 1")
	assert.Equal(t, []string{"Apple", "Banana"}, names(t, page))

	page, err = q.FetchAll(ctx, -3, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)

	page, err = q.FetchAll(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Equal(t, []string{"Apple", "Banana", "Cherry"}, names(t, page))

	page, err = q.FetchAll(ctx, 1, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = q.FetchAll(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Empty(t, page.Items)

	counting.finds, counting.counts = 0, 0
	empty, err := products.Select().Where(filter.On("price").Gt(1000)).FetchAll(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalItems)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 1, counting.counts)
	assert.Zero(t, counting.finds, "an empty result must not issue a fetch")

	counting.finds, counting.counts = 0, 0
	_, err = q.FetchAll(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.counts)
	assert.Equal(t, 1, counting.finds)
}

func TestPaginationJSON(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")
	seedProducts(t, products, fruitProducts()...)

	page, err := products.Select().Sort(filter.On("name").Asc()).FetchAll(ctx, 2, 2)
	require.NoError(t, err)

	data, err := page.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"items":[{"_id":"id-000003","_updated_at":"2026-01-01T00:00:02.000000+00:00",`+
		`"name":"Cherry","price":3.25,"stock":7}],`+
		`"metadata":{"page":2,"page_size":2,"total_items":3,"total_pages":2}}`, string(data))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, (&Pagination{PageSize: 10}).TotalPages())
	assert.Equal(t, 1, (&Pagination{PageSize: 10, TotalItems: 10}).TotalPages())
	assert.Equal(t, 2, (&Pagination{PageSize: 10, TotalItems: 11}).TotalPages())
}

func TestFetchReturnsFirstInSortOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")
	seedProducts(t, products, fruitProducts()...)

	top, err := products.Select().Sort(filter.On("price").Desc()).Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "Cherry", top.Get("name"))

	none, err := products.Fetch(ctx, map[string]any{"name": "Durian"})
	require.NoError(t, err)
	assert.Nil(t, none)

	banana, err := products.Fetch(ctx, map[string]any{"name": "Banana"})
	require.NoError(t, err)
	require.NotNil(t, banana)
	assert.Equal(t, 2.0, banana.Get("price"))
}

func TestWhereAccumulates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")
	seedProducts(t, products, fruitProducts()...)

	q := products.Select().
		WhereNative(map[string]any{"$and": []any{map[string]any{"price": map[string]any{"$gt": 1}}}}).
		WhereNative(map[string]any{"$and": []any{map[string]any{"name": map[string]any{"$ne": "Cherry"}}}}).
		WhereNative(map[string]any{"$or": []any{map[string]any{"name": "Banana"}, map[string]any{"stock": 7}}})

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	native, err := q.Native()
	require.NoError(t, err)
	clauses, ok := native["$and"].([]any)
	require.True(t, ok)
	assert.Len(t, clauses, 3)
}

func TestSelectCombinators(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")
	seedProducts(t, products, fruitProducts()...)

	tests := []struct {
		name  string
		build func(q *Select) *Select
		want  []string
	}{
		{"match", func(q *Select) *Select { return q.Match(q.Field("price").Gt(1.5), q.Field("stock").Eq(0)) }, []string{"Banana"}},
		{"at least", func(q *Select) *Select { return q.AtLeast(q.Field("name").Eq("Apple"), q.Field("stock").Gt(0)) }, []string{"Apple", "Cherry"}},
		{"not match", func(q *Select) *Select { return q.NotMatch(q.Field("name").Match("an")) }, []string{"Apple", "Cherry"}},
		{"not at least", func(q *Select) *Select {
			return q.NotAtLeast(q.Field("name").Eq("Apple"), q.Field("stock").Gt(0))
		}, []string{"Banana"}},
		{"empty combinator", func(q *Select) *Select { return q.Match().AtLeast() }, []string{"Apple", "Banana", "Cherry"}},
		{"between", func(q *Select) *Select { return q.Where(q.Field("price").IsBetween(1.5, 2)) }, []string{"Apple", "Banana"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.build(products.Select()).Sort(filter.On("name").Asc())
			page, err := q.FetchAll(ctx, 1, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(t, page))
		})
	}
}

func TestSelectInvalidInput(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")

	q := products.Select()
	q.Where(q.Field("colour").Eq("red"))
	_, err := q.FetchAll(ctx, 1, 10)
	assert.True(t, HasCode(err, ErrCodeInvalidQuery))

	_, err = q.Discard().Count(ctx)
	assert.NoError(t, err, "Discard clears the remembered error")

	_, err = products.Select().WhereNative(map[string]any{"$and": "nope"}).Count(ctx)
	assert.True(t, HasCode(err, ErrCodeInvalidQuery))

	_, err = products.FetchAll(ctx, map[string]any{"price": map[string]any{"$near": 1}}, 1, 10)
	assert.True(t, HasCode(err, ErrCodeInvalidQuery))
}

func TestSelectRenderings(t *testing.T) {
	db := newTestDB(memory.New())
	products := db.MustAttach(productSchema, "")

	q := products.Select()
	q.Match(q.Field("price").Gt(100), q.Field("name").Match("lap")).Sort(filter.On("price").Desc())

	native, err := q.Native()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"$and": []any{
		map[string]any{"price": map[string]any{"$gt": int64(100)}},
		map[string]any{"name": map[string]any{"$regex": "lap", "$options": "i"}},
	}}, native)

	sql, err := q.SQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products WHERE (price > 100 AND name REGEXP '(?i)lap') ORDER BY price DESC", sql)

	q.Discard()
	native, err = q.Native()
	require.NoError(t, err)
	assert.Empty(t, native)
}

func upperName(subject any, _ ...any) any {
	inst, ok := subject.(*model.Instance)
	if !ok {
		return nil
	}
	name, _ := inst.Get("name").(string)
	return strings.ToUpper(name)
}

func TestComputedPredicates(t *testing.T) {
	ctx := context.Background()
	counting := &countingBackend{Backend: memory.New()}
	db := newTestDB(counting)
	products := db.MustAttach(productSchema, "")
	seedProducts(t, products, fruitProducts()...)

	q := products.Select()
	q.Match(
		q.Field("name").Func("upper", upperName).Match("^[AB]"),
		q.Field("price").Gte(1.5),
	).Sort(filter.On("price").Desc())

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := q.FetchAll(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, []string{"Banana"}, names(t, page))

	first, err := q.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Banana", first.Get("name"))

	_, err = q.Native()
	assert.Error(t, err, "computed predicates cannot be sent to a backend")
	assert.Zero(t, counting.counts, "computed queries count in process")
}

func TestPushdownKeepsTranslatableConjuncts(t *testing.T) {
	computed := filter.On("name").Func("upper", upperName).Eq("X")
	plain := filter.On("price").Gt(1)

	assert.Equal(t, plain, pushdown(filter.And{Nodes: []filter.Node{computed, plain}}))
	assert.Equal(t, filter.And{}, pushdown(computed))
	assert.Equal(t, filter.And{}, pushdown(filter.Or{Nodes: []filter.Node{computed, plain}}))
	assert.Equal(t, plain, pushdown(plain))
}

// TestBackendsAgree runs identical queries through the memory and SQLite
// backends.
func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "agree.db"))
	require.NoError(t, err)
	defer store.Close()

	backends := map[string]backend.Backend{"memory": memory.New(), "sqlite": store}
	collections := map[string]*Collection{}
	for name, b := range backends {
		c := newTestDB(b).MustAttach(productSchema, "")
		seedProducts(t, c, fruitProducts()...)
		seedProducts(t, c,
			map[string]any{"name": "apricot", "price": 2, "stock": 3},
			map[string]any{"name": "Date", "price": 10},
		)
		collections[name] = c
	}

	queries := []map[string]any{
		{},
		{"price": map[string]any{"$gte": 2, "$lte": 3.25}},
		{"name": map[string]any{"$regex": "^a", "$options": "i"}},
		{"name": map[string]any{"$not": map[string]any{"$regex": "an"}}},
		{"$or": []any{map[string]any{"stock": map[string]any{"$gt": 0}}, map[string]any{"price": 10}}},
		{"$nor": []any{map[string]any{"stock": 0}}},
		{"stock": map[string]any{"$in": []any{0, 7}}},
		{"stock": map[string]any{"$exists": true}},
	}

	for i, native := range queries {
		t.Run(fmt.Sprintf("query %d", i), func(t *testing.T) {
			results := map[string][]string{}
			for name, c := range collections {
				page, err := c.FetchAll(ctx, native, 1, 100)
				require.NoError(t, err)
				results[name] = names(t, page)
			}
			assert.Equal(t, results["memory"], results["sqlite"])
		})
	}

	for name, c := range collections {
		page, err := c.Select().Sort(filter.On("price").Desc(), filter.On("name").Asc()).FetchAll(ctx, 1, 3)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"Date", "Cherry", "Banana"}, names(t, page), name)
	}
}
