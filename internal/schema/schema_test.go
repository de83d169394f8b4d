package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Definition Tests
// =============================================================================

func TestNewPreservesOrder(t *testing.T) {
	s, err := New("Article",
		NewField("title", String),
		NewField("content", String),
		NewField("views", Int),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "content", "views"}, s.Names())
	assert.False(t, s.Identity())
}

func TestNewIdentInjectsIdentityFields(t *testing.T) {
	s, err := NewIdent("Product", NewField("name", String))
	require.NoError(t, err)
	assert.Equal(t, []string{IDField, UpdatedAtField, "name"}, s.Names())
	assert.True(t, s.Identity())

	id, ok := s.Field(IDField)
	require.True(t, ok)
	assert.True(t, id.Nullable)
	assert.Nil(t, id.Default, "identity fields have no static default")
}

func TestDefinitionErrors(t *testing.T) {
	tests := []struct {
		name  string
		field *Field
		code  string
	}{
		{"invalid type", NewField("x", Type{}), ErrInvalidType},
		{"model without schema", NewField("x", ModelOf(nil)), ErrInvalidType},
		{"list without item type", NewField("tags", List), ErrMissingItemType},
		{"default type mismatch", NewField("n", Int, Default("ten")), ErrDefaultType},
		{"negative min occurrence", NewField("tags", List, Items(String), MinOccurs(-1)), ErrNegativeOccurrence},
		{"pattern on bool", NewField("b", Bool, Pattern("x")), ErrPatternType},
		{"invalid pattern", NewField("s", String, Pattern("[a-")), ErrInvalidPattern},
		{"default violates bound", NewField("s", String, MinLength(5), Default("abc")), ErrDefaultConstraint},
		{"empty name", NewField("", String), ErrInvalidFieldName},
		{"dotted name", NewField("a.b", String), ErrInvalidFieldName},
		{"operator name", NewField("$gt", String), ErrInvalidFieldName},
		{"inverted bounds", NewField("s", String, Length(10, 5)), ErrInvertedBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("Bad", tt.field)
			require.Error(t, err)
			require.True(t, IsDefinitionError(err))

			var de *DefinitionError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, "Bad", de.Schema)
		})
	}
}

func TestDuplicateField(t *testing.T) {
	_, err := New("Dup", NewField("a", String), NewField("a", Int))
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrDuplicateField, de.Code)

	_, err = NewIdent("Dup", NewField(IDField, String))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrDuplicateField, de.Code)
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew("Bad", NewField("tags", List))
	})
}

func TestAddFieldCopiesField(t *testing.T) {
	f := NewField("title", String)
	s := MustNew("Article", f)
	f.Nullable = false

	got, ok := s.Field("title")
	require.True(t, ok)
	assert.True(t, got.Nullable)
}

func TestDefaultsSatisfyTheirField(t *testing.T) {
	s := MustNew("Defaults",
		NewField("a", String, Default("hello"), Length(1, 10)),
		NewField("b", Int, Default(3), MinLength(1)),
		NewField("c", Float, Default(2)),
		NewField("d", List, Items(String), Default([]string{"x"})),
		NewField("e", String, Required()),
	)
	for _, f := range s.Fields() {
		if f.Default == nil && !f.Nullable {
			continue
		}
		assert.Nil(t, f.Evaluate(f.Default), f.Name())
	}
}

// =============================================================================
// Field Evaluation Tests
// =============================================================================

func field(t *testing.T, f *Field) *Field {
	t.Helper()
	s, err := New("T", f)
	require.NoError(t, err)
	got, _ := s.Field(f.Name())
	return got
}

func TestFieldNullability(t *testing.T) {
	assert.Nil(t, field(t, NewField("a", String)).Evaluate(nil))

	err := field(t, NewField("a", String, Required())).Evaluate(nil)
	require.NotNil(t, err)
	assert.Equal(t, ErrRequired, err.Code)
	assert.Equal(t, "Field 'a': is required and cannot be null.", err.Error())
}

func TestFieldTypeMismatch(t *testing.T) {
	err := field(t, NewField("age", Int)).Evaluate("ten")
	require.NotNil(t, err)
	assert.Equal(t, ErrTypeMismatch, err.Code)
	assert.Equal(t, "Field 'age': must be of type int, got 'string' instead.", err.Error())

	assert.NotNil(t, field(t, NewField("age", Int)).Evaluate(1.5))
	assert.Nil(t, field(t, NewField("price", Float)).Evaluate(10), "float fields accept integers")
	assert.NotNil(t, field(t, NewField("ok", Bool)).Evaluate(1))
}

func TestFieldStringLength(t *testing.T) {
	f := field(t, NewField("title", String, Length(5, 100)))

	err := f.Evaluate("Hi")
	require.NotNil(t, err)
	assert.Equal(t, ErrTooShort, err.Code)
	assert.Equal(t, "must have at least: 5 characters", err.Message)

	err = f.Evaluate(strings.Repeat("x", 101))
	require.NotNil(t, err)
	assert.Equal(t, ErrTooLong, err.Code)

	assert.Nil(t, f.Evaluate("Hello"))
	assert.Nil(t, f.Evaluate("héllo"), "length counts code points")
}

func TestFieldNumericBounds(t *testing.T) {
	f := field(t, NewField("price", Float, Length(1, 500)))

	err := f.Evaluate(0.5)
	require.NotNil(t, err)
	assert.Equal(t, ErrBelowMinimum, err.Code)
	assert.Equal(t, "must be greater than or equal to: 1", err.Message)

	err = f.Evaluate(500.01)
	require.NotNil(t, err)
	assert.Equal(t, ErrAboveMaximum, err.Code)

	assert.Nil(t, f.Evaluate(1))
	assert.Nil(t, f.Evaluate(500))
}

func TestFieldZeroBoundsAreInert(t *testing.T) {
	f := field(t, NewField("delta", Int))
	assert.Nil(t, f.Evaluate(-1000))
	assert.Nil(t, f.Evaluate(0))
}

func TestFieldPatternAnchoredAtStart(t *testing.T) {
	f := field(t, NewField("sku", String, Pattern(`[A-Z]{3}-\d+`)))
	assert.Nil(t, f.Evaluate("ABC-123"))
	assert.Nil(t, f.Evaluate("ABC-123-extra"), "prefix match")

	err := f.Evaluate("xABC-123")
	require.NotNil(t, err)
	assert.Equal(t, ErrPatternMismatch, err.Code)
	assert.Equal(t, `must match the pattern: '[A-Z]{3}-\d+'`, err.Message)
}

func TestFieldPatternIgnoresNumbers(t *testing.T) {
	f := field(t, NewField("code", Int, Pattern(`\d{3}`)))
	assert.Nil(t, f.Evaluate(7))
}

func TestFieldListItems(t *testing.T) {
	f := field(t, NewField("tags", List, Items(String), Length(1, 3)))

	assert.Nil(t, f.Evaluate([]any{"a", "b"}))

	err := f.Evaluate([]any{"a", "b", 3, 4})
	require.NotNil(t, err)
	assert.Equal(t, ErrTooLong, err.Code, "length is checked before items")
	assert.Equal(t, "must have at most: 3 items", err.Message)

	err = f.Evaluate([]any{"a", "b", 3})
	require.NotNil(t, err)
	assert.Equal(t, ErrItemType, err.Code)
	assert.Equal(t, "tags[2]", err.Path)
	assert.Equal(t, "Field 'tags[2]': must be of type string, got 'int' instead.", err.Error())

	err = f.Evaluate([]any{})
	require.NotNil(t, err)
	assert.Equal(t, "must have at least: 1 items", err.Message)
}

func TestFieldUnresolvedReference(t *testing.T) {
	author := MustNewIdent("Author", NewField("name", String))

	optional := field(t, NewField("author", ModelOf(author)))
	assert.Nil(t, optional.Evaluate(Ref{ID: "missing"}))

	required := field(t, NewField("author", ModelOf(author), Required()))
	err := required.Evaluate(Ref{ID: "missing"})
	require.NotNil(t, err)
	assert.Equal(t, ErrUnresolvedRecord, err.Code)
	assert.Equal(t, "references a missing 'Author' record: missing", err.Message)
}

func TestRefFromValue(t *testing.T) {
	ref, ok := RefFromValue(map[string]any{"$id": "X"})
	require.True(t, ok)
	assert.Equal(t, "X", ref.ID)

	_, ok = RefFromValue(map[string]any{"$id": "X", "name": "inline"})
	assert.False(t, ok)
	_, ok = RefFromValue(map[string]any{"$id": 1})
	assert.False(t, ok)

	data, err := ref.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"$id":"X"}`, string(data))
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("float")
	require.True(t, ok)
	assert.Equal(t, KindFloat, typ.Kind())

	_, ok = ParseType("decimal")
	assert.False(t, ok)
}
