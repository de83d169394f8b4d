package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/filter"
)

func TestNativeLeaves(t *testing.T) {
	tests := []struct {
		name string
		node filter.Node
		want map[string]any
	}{
		{"eq", filter.On("name").Eq("Lamp"), map[string]any{"name": map[string]any{"$eq": "Lamp"}}},
		{"gt", filter.On("price").Gt(100), map[string]any{"price": map[string]any{"$gt": int64(100)}}},
		{"in", filter.On("tags").IsIn("a", "b"), map[string]any{"tags": map[string]any{"$in": []any{"a", "b"}}}},
		{"exists", filter.On("x").NotExists(), map[string]any{"x": map[string]any{"$exists": false}}},
		{"regex", filter.On("name").Match("^lap"), map[string]any{"name": map[string]any{"$regex": "^lap", "$options": "i"}}},
		{"regex case", filter.On("name").MatchCase("^Lap"), map[string]any{"name": map[string]any{"$regex": "^Lap"}}},
		{"all", filter.On("tags").Subset("x"), map[string]any{"tags": map[string]any{"$all": []any{"x"}}}},
		{"inert", filter.Match(), map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Native(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNativeLogical(t *testing.T) {
	got, err := Native(filter.Match(
		filter.On("price").IsBetween(50, 300),
		filter.NotMatch(filter.On("a").Eq(1), filter.On("b").Eq(2)),
		filter.On("name").NotMatch("x"),
	))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"$and": []any{
		map[string]any{"$and": []any{
			map[string]any{"price": map[string]any{"$gte": int64(50)}},
			map[string]any{"price": map[string]any{"$lte": int64(300)}},
		}},
		map[string]any{"$nor": []any{
			map[string]any{"$and": []any{
				map[string]any{"a": map[string]any{"$eq": int64(1)}},
				map[string]any{"b": map[string]any{"$eq": int64(2)}},
			}},
		}},
		map[string]any{"name": map[string]any{"$not": map[string]any{"$regex": "x", "$options": "i"}}},
	}}, got)
}

func TestNativeEmptyOrMatchesNothing(t *testing.T) {
	got, err := Native(filter.Or{})
	require.NoError(t, err)

	parsed, err := filter.Parse(got)
	require.NoError(t, err)
	assert.False(t, filter.Matches(parsed, map[string]any{"a": int64(1)}))
}

func TestNativeRoundTripsThroughParse(t *testing.T) {
	nodes := []filter.Node{
		filter.On("price").IsBetween(50, 300),
		filter.AtLeast(filter.On("a").IsNull(), filter.On("tags").Subset("x", "y")),
		filter.NotAtLeast(filter.On("a").Gt(1), filter.On("b").Lt(0)),
		filter.On("name").NotMatch("^x"),
		filter.On("v").IsNotIn(1, "1", nil),
	}
	docs := []map[string]any{
		{"price": int64(100), "a": nil, "tags": []any{"x", "y"}, "name": "abc", "v": int64(2)},
		{"price": int64(10), "a": int64(2), "b": int64(-1), "name": "xyz", "v": "1"},
		{},
	}

	for _, n := range nodes {
		native, err := Native(n)
		require.NoError(t, err)
		parsed, err := filter.Parse(native)
		require.NoError(t, err)
		for _, d := range docs {
			assert.Equal(t, filter.Matches(n, d), filter.Matches(parsed, d), filter.String(n))
		}
	}
}

func TestNativeRejectsComputed(t *testing.T) {
	n := filter.On("price").Func("double", func(s any, _ ...any) any { return s }).Gt(1)
	_, err := Native(filter.Match(n))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestNativeJSON(t *testing.T) {
	s, err := NativeJSON(filter.On("price").Gt(100))
	require.NoError(t, err)
	assert.Equal(t, `{"price":{"$gt":100}}`, s)
}
