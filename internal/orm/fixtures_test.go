package orm

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/schema"
	"github.com/roach88/flexschema/internal/testutil"
)

var (
	authorSchema = schema.MustNewIdent("Author",
		schema.NewField("name", schema.String, schema.Length(2, 50), schema.Required()),
	)
	postSchema = schema.MustNewIdent("Post",
		schema.NewField("title", schema.String, schema.Length(5, 100), schema.Required()),
		schema.NewField("content", schema.String, schema.MinLength(50), schema.Required()),
		schema.NewField("author", schema.ModelOf(authorSchema)),
		schema.NewField("tags", schema.List, schema.Items(schema.String)),
	)
	productSchema = schema.MustNewIdent("Product",
		schema.NewField("name", schema.String, schema.Required()),
		schema.NewField("price", schema.Float, schema.Required()),
		schema.NewField("stock", schema.Int, schema.Default(0)),
	)
)

const longContent = "This content is comfortably longer than fifty characters in total."

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestDB(b backend.Backend, opts ...Option) *DB {
	base := []Option{
		WithIDs(testutil.NewSequenceIDs("id")),
		WithClock(testutil.NewFixedClock(time.Time{}, time.Second)),
		WithLogger(quietLogger()),
	}
	return Open(b, append(base, opts...)...)
}

// countingBackend records how often reads reach the wrapped backend.
type countingBackend struct {
	backend.Backend
	finds  int
	counts int
}

func (c *countingBackend) Find(ctx context.Context, coll string, n filter.Node, opts backend.FindOptions) ([]map[string]any, error) {
	c.finds++
	return c.Backend.Find(ctx, coll, n, opts)
}

func (c *countingBackend) Count(ctx context.Context, coll string, n filter.Node) (int, error) {
	c.counts++
	return c.Backend.Count(ctx, coll, n)
}

// refusingBackend never acknowledges writes to one collection.
type refusingBackend struct {
	backend.Backend
	collection string
}

func (r *refusingBackend) Replace(ctx context.Context, coll, id string, document map[string]any) (bool, error) {
	if coll == r.collection {
		return false, nil
	}
	return r.Backend.Replace(ctx, coll, id, document)
}

func seedProducts(t *testing.T, c *Collection, products ...map[string]any) {
	t.Helper()
	ctx := context.Background()
	for _, p := range products {
		ok, err := c.Commit(ctx, c.New(ctx, p), true)
		require.NoError(t, err)
		require.True(t, ok, "commit %v", p)
	}
}

func names(t *testing.T, p *Pagination) []string {
	t.Helper()
	out := []string{}
	for _, inst := range p.Items {
		out = append(out, inst.Get("name").(string))
	}
	return out
}
