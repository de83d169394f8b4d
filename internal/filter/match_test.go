package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDoc = map[string]any{
	"name":    "Laptop Pro",
	"price":   1200.5,
	"stock":   int64(3),
	"active":  true,
	"tags":    []any{"electronics", "sale"},
	"note":    nil,
	"empty":   "",
	"address": map[string]any{"city": "Lisbon"},
	"scores":  []any{int64(4), int64(9)},
	"pairs":   []any{[]any{"x"}, "y"},
}

func TestMatchesOperators(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want bool
	}{
		{"eq string", On("name").Eq("Laptop Pro"), true},
		{"eq number across types", On("stock").Eq(3.0), true},
		{"eq type bracketed", On("stock").Eq("3"), false},
		{"eq nested path", On("address.city").Eq("Lisbon"), true},
		{"eq array element", On("tags").Eq("sale"), true},
		{"eq whole array", On("tags").Eq([]any{"electronics", "sale"}), true},
		{"eq compound array element", On("pairs").Eq([]any{"x"}), true},
		{"eq compound not an element", On("pairs").Eq([]any{"y"}), false},
		{"in compound array element", On("pairs").IsIn([]any{"x"}, "z"), true},
		{"ne compound array element", On("pairs").Ne([]any{"x"}), false},
		{"subset with compound item", On("pairs").Subset([]any{"x"}, "y"), true},
		{"eq null matches null", On("note").IsNull(), true},
		{"eq null matches missing", On("missing").IsNull(), true},
		{"eq null on value", On("name").IsNull(), false},
		{"ne matches missing", On("missing").Ne("x"), true},
		{"ne array element", On("tags").Ne("sale"), false},
		{"is not null", On("name").IsNotNull(), true},
		{"is not null on null", On("note").IsNotNull(), false},
		{"gt", On("price").Gt(1000), true},
		{"gte boundary", On("stock").Gte(3), true},
		{"lt", On("price").Lt(1000), false},
		{"lte", On("stock").Lte(3), true},
		{"gt string vs number", On("name").Gt(1), false},
		{"gt missing", On("missing").Gt(1), false},
		{"gt null operand", On("price").Gt(nil), false},
		{"gt array element", On("scores").Gt(8), true},
		{"lt string", On("name").Lt("M"), true},
		{"bool compare", On("active").Gt(false), true},
		{"in", On("stock").IsIn(1, 2, 3), true},
		{"in array element", On("tags").IsIn("books", "sale"), true},
		{"nin", On("stock").IsNotIn(1, 2), true},
		{"nin missing", On("missing").IsNotIn(1), true},
		{"exists null", On("note").Exists(), true},
		{"exists missing", On("missing").Exists(), false},
		{"not exists", On("missing").NotExists(), true},
		{"is true", On("active").IsTrue(), true},
		{"is false", On("active").IsFalse(), false},
		{"is empty string", On("empty").IsEmpty(), true},
		{"is empty null", On("note").IsEmpty(), true},
		{"is empty missing", On("missing").IsEmpty(), true},
		{"is not empty", On("name").IsNotEmpty(), true},
		{"between", On("price").IsBetween(1000, 1300), true},
		{"not between", On("price").IsNotBetween(1000, 1300), false},
		{"match case insensitive", On("name").Match("laptop"), true},
		{"match case sensitive", On("name").MatchCase("laptop"), false},
		{"match unanchored", On("name").Match("pro$"), true},
		{"match array element", On("tags").Match("^ele"), true},
		{"match number", On("price").Match("1200"), false},
		{"not match", On("name").NotMatch("phone"), true},
		{"subset", On("tags").Subset("sale", "electronics"), true},
		{"subset partial", On("tags").Subset("sale", "books"), false},
		{"subset empty", On("tags").Subset(), false},
		{"not subset", On("tags").NotSubset("books"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.node, sampleDoc))
		})
	}
}

func TestMatchesCombinators(t *testing.T) {
	cheap := On("price").Lt(100)
	active := On("active").IsTrue()

	assert.False(t, Matches(Match(cheap, active), sampleDoc))
	assert.True(t, Matches(AtLeast(cheap, active), sampleDoc))
	assert.True(t, Matches(NotMatch(cheap, active), sampleDoc))
	assert.False(t, Matches(NotAtLeast(cheap, active), sampleDoc))
	assert.False(t, Matches(Or{}, sampleDoc), "an empty OR matches nothing")
}

func TestMatchesParsedEqualsBuilt(t *testing.T) {
	parsed, err := Parse(map[string]any{
		"$or": []any{
			map[string]any{"price": map[string]any{"$gt": 1000, "$lt": 2000}},
			map[string]any{"tags": map[string]any{"$all": []any{"books"}}},
		},
		"name": map[string]any{"$regex": "laptop", "$options": "i"},
	})
	require.NoError(t, err)

	built := Match(
		AtLeast(Match(On("price").Gt(1000), On("price").Lt(2000)), On("tags").Subset("books")),
		On("name").Match("laptop"),
	)

	for _, d := range []map[string]any{
		sampleDoc,
		{"name": "laptop", "price": int64(10), "tags": []any{"books"}},
		{"name": "Desk", "price": int64(1500)},
		{},
	} {
		assert.Equal(t, Matches(built, d), Matches(parsed, d))
	}
}

func TestRegexpOptions(t *testing.T) {
	re, err := Regexp("^a.b$", "is")
	require.NoError(t, err)
	assert.True(t, re.MatchString("A\nB"))

	_, err = Regexp("x", "q")
	require.Error(t, err)

	extended, err := Regexp("^a b  # letters\n [ ]c\\ d$", "x")
	require.NoError(t, err)
	assert.True(t, extended.MatchString("ab c d"))
	assert.False(t, extended.MatchString("a b c d"))

	again, err := Regexp("^a.b$", "is")
	require.NoError(t, err)
	assert.Same(t, re, again)
}
