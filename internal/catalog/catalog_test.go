package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/backend/memory"
	"github.com/roach88/flexschema/internal/model"
	"github.com/roach88/flexschema/internal/orm"
	"github.com/roach88/flexschema/internal/schema"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireCode(t *testing.T, err error, code string) *Error {
	t.Helper()
	require.Error(t, err)
	var ce *Error
	require.True(t, errors.As(err, &ce), "expected *catalog.Error, got %T: %v", err, err)
	assert.Equal(t, code, ce.Code, ce.Error())
	return ce
}

// checkBlog asserts the shape shared by the CUE and YAML blog fixtures.
func checkBlog(t *testing.T, c *Catalog) {
	t.Helper()
	assert.Equal(t, []string{"Author", "Post", "Address"}, c.Names())
	assert.Empty(t, c.Warnings)

	post, ok := c.Schema("Post")
	require.True(t, ok)
	assert.True(t, post.Identity())
	assert.Equal(t, []string{"_id", "_updated_at", "title", "content", "author", "tags", "views", "address"}, post.Names())
	assert.Equal(t, "articles", c.CollectionName(post))

	title, _ := post.Field("title")
	assert.Equal(t, schema.KindString, title.Type.Kind())
	assert.False(t, title.Nullable)
	assert.Equal(t, 5.0, title.Constraint.MinLength)
	assert.Equal(t, 100.0, title.Constraint.MaxLength)

	author, _ := post.Field("author")
	authorSchema, _ := c.Schema("Author")
	assert.Equal(t, schema.KindModel, author.Type.Kind())
	assert.Same(t, authorSchema, author.Type.Model())
	assert.Equal(t, "authors", c.CollectionName(authorSchema))

	tags, _ := post.Field("tags")
	assert.Equal(t, schema.KindString, tags.Constraint.ItemType.Kind())
	assert.True(t, tags.Nullable)
	assert.Equal(t, 1, tags.MinOccurs)
	assert.Equal(t, []any{}, tags.Default)

	views, _ := post.Field("views")
	assert.Equal(t, int64(0), views.Default)

	address, _ := post.Field("address")
	addressSchema, _ := c.Schema("Address")
	assert.Same(t, addressSchema, address.Type.Model(), "forward references resolve")
	assert.False(t, addressSchema.Identity())

	country, _ := addressSchema.Field("country")
	assert.Equal(t, "NO", country.Default)

	email, _ := authorSchema.Field("email")
	assert.Nil(t, email.Evaluate("ann@example.com"))
	assert.NotNil(t, email.Evaluate("nobody"))
}

func TestLoadCUE(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "blog.cue"))
	require.NoError(t, err)
	checkBlog(t, c)
}

func TestLoadYAML(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	checkBlog(t, c)
}

func TestLoadDirectory(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "split"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Customer", "Order", "LineItem"}, c.Names())

	order, ok := c.Schema("Order")
	require.True(t, ok)
	customer, _ := order.Field("customer")
	customerSchema, _ := c.Schema("Customer")
	assert.Same(t, customerSchema, customer.Type.Model(), "references resolve across files")

	item, _ := c.Schema("LineItem")
	quantity, _ := item.Field("quantity")
	assert.Equal(t, int64(1), quantity.Default)
}

func TestCycleWarnings(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "cycle.yaml"))
	require.NoError(t, err)

	require.Len(t, c.Warnings, 3)
	byStart := map[string]CycleWarning{}
	for _, w := range c.Warnings {
		byStart[w.Path[0]] = w
	}

	category := byStart["Category"]
	assert.Equal(t, []string{"Category", "Category"}, category.Path)
	assert.Equal(t, LevelInfo, category.Level)

	staff := byStart["Person"]
	assert.Equal(t, []string{"Person", "Company", "Person"}, staff.Path)
	assert.Equal(t, LevelInfo, staff.Level)
	assert.Contains(t, staff.Message, "Person → Company → Person")

	node := byStart["Node"]
	assert.Equal(t, LevelWarning, node.Level, "transient cycles embed")
}

func TestAnalyzeCyclesAcyclic(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	assert.Empty(t, AnalyzeCycles(c.Schemas()))
	assert.Empty(t, AnalyzeCycles(nil))
}

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		src  string
		code string
		line int
	}{
		{"unknown type", "a.yaml", "schema:\n  A:\n    fields:\n      x: Widget\n", ErrUnknownType, 4},
		{"unknown item type", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: list, items: Widget}\n", ErrUnknownType, 4},
		{"unknown field attribute", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: string, colour: red}\n", ErrUnknownAttribute, 4},
		{"unknown schema attribute", "a.yaml", "schema:\n  A:\n    indexes: []\n", ErrUnknownAttribute, 3},
		{"unknown top level", "a.yaml", "models: {}\n", ErrUnknownAttribute, 1},
		{"attribute kind", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: string, min_length: many}\n", ErrAttributeValue, 4},
		{"missing type", "a.yaml", "schema:\n  A:\n    fields:\n      x: {required: true}\n", ErrAttributeValue, 4},
		{"contradiction", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: string, required: true, nullable: true}\n", ErrAttributeValue, 4},
		{"decomposed field name", "a.yaml", "schema:\n  A:\n    fields:\n      cafe\u0301: string\n", ErrAttributeValue, 4},
		{"decomposed schema name", "a.yaml", "schema:\n  Cafe\u0301:\n    fields: {x: string}\n", ErrAttributeValue, 0},
		{"list without items", "a.yaml", "schema:\n  A:\n    fields:\n      x: list\n", schema.ErrMissingItemType, 4},
		{"default type", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: int, default: seven}\n", schema.ErrDefaultType, 4},
		{"negative occurrence", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: list, items: int, nullable: -1}\n", schema.ErrNegativeOccurrence, 4},
		{"invalid pattern", "a.yaml", "schema:\n  A:\n    fields:\n      x: {type: string, pattern: \"(\"}\n", schema.ErrInvalidPattern, 4},
		{"yaml syntax", "a.yaml", "schema: [\n", ErrSyntax, 0},
		{"cue syntax", "a.cue", "schema: A: {\n", ErrSyntax, 0},
		{"cue incomplete", "a.cue", "schema: A: fields: x: {type: string}\n", ErrAttributeValue, 0},
		{"cue unknown type", "a.cue", "schema: A: fields: x: \"Widget\"\n", ErrUnknownType, 1},
		{"unsupported file", "a.json", "{}", ErrUnsupportedFile, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.src))
			ce := requireCode(t, err, tt.code)
			if tt.line > 0 {
				assert.Equal(t, tt.line, ce.Pos.Line, ce.Error())
			}
		})
	}
}

func TestDefinitionErrorsUnwrap(t *testing.T) {
	_, err := Load(writeFile(t, "a.yaml", "schema:\n  A:\n    fields:\n      x: list\n"))
	require.Error(t, err)
	assert.True(t, schema.IsDefinitionError(err))
	assert.Contains(t, err.Error(), "schema.A.fields.x")
}

func TestDuplicateSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("schema:\n  A:\n    fields: {x: string}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("schema:\n  A:\n    fields: {y: string}\n"), 0o644))

	_, err := Load(dir)
	requireCode(t, err, ErrDuplicateSchema)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	requireCode(t, err, ErrNotFound)

	_, err = Load(t.TempDir())
	requireCode(t, err, ErrNotFound)
}

func TestAttach(t *testing.T) {
	ctx := context.Background()
	c, err := Load(filepath.Join("testdata", "blog.cue"))
	require.NoError(t, err)

	db := orm.Open(memory.New())
	colls, err := c.Attach(db)
	require.NoError(t, err)
	require.Len(t, colls, 2, "transient schemas are not attached")
	assert.Equal(t, "authors", colls[0].Name())
	assert.Equal(t, "articles", colls[1].Name())

	authors, posts := colls[0], colls[1]
	ann := authors.New(ctx, map[string]any{"name": "Ann"})
	post := posts.New(ctx, map[string]any{
		"title":   "Declared",
		"content": "Content that is long enough to pass the minimum of fifty characters.",
		"author":  ann,
		"address": map[string]any{"city": "Oslo"},
	})
	ok, err := posts.Commit(ctx, post, true)
	require.NoError(t, err)
	require.True(t, ok, "violations: %v", post.Evaluate())

	n, err := authors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := posts.Load(ctx, post.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	loadedAuthor, ok := loaded.Get("author").(*model.Instance)
	require.True(t, ok)
	assert.Equal(t, "Ann", loadedAuthor.Get("name"))
	assert.Equal(t, int64(0), loaded.Get("views"))
}
