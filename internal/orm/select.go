package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/model"
	"github.com/roach88/flexschema/internal/translate"
)

// Select accumulates a filter and a sort order against one collection.
//
// Conditions added by Where and the combinator methods are conjoined with
// everything registered before; nothing is ever replaced. The first
// invalid input is remembered and returned by every executing method.
//
// Filters containing computed predicates cannot be translated. Their
// computed-free top-level conjuncts are sent to the backend and the whole
// filter is then evaluated in process, with each loaded instance as the
// subject of the computed chains. Sorting and paging follow in process.
type Select struct {
	coll  *Collection
	where []filter.Node
	sort  filter.Sort
	err   error
}

// Field returns the condition builder for a field path. The first path
// segment must name a field of the collection's schema.
func (q *Select) Field(path string) filter.Statement {
	head, _, _ := strings.Cut(path, ".")
	if _, ok := q.coll.schema.Field(head); !ok && q.err == nil {
		q.err = invalidQuery(q.coll.name, fmt.Errorf("%s has no field %q", q.coll.schema.Name(), head))
	}
	return filter.On(path)
}

// Where conjoins nodes with the current filter.
func (q *Select) Where(nodes ...filter.Node) *Select {
	for _, n := range nodes {
		if !filter.IsInert(n) {
			q.where = append(q.where, n)
		}
	}
	return q
}

// WhereNative parses a native filter document and conjoins it.
func (q *Select) WhereNative(native map[string]any) *Select {
	n, err := filter.Parse(native)
	if err != nil {
		if q.err == nil {
			q.err = invalidQuery(q.coll.name, err)
		}
		return q
	}
	return q.Where(n)
}

// Match conjoins the AND of nodes.
func (q *Select) Match(nodes ...filter.Node) *Select { return q.Where(filter.Match(nodes...)) }

// AtLeast conjoins the OR of nodes.
func (q *Select) AtLeast(nodes ...filter.Node) *Select { return q.Where(filter.AtLeast(nodes...)) }

// NotMatch conjoins the negated AND of nodes.
func (q *Select) NotMatch(nodes ...filter.Node) *Select { return q.Where(filter.NotMatch(nodes...)) }

// NotAtLeast conjoins the negated OR of nodes.
func (q *Select) NotAtLeast(nodes ...filter.Node) *Select {
	return q.Where(filter.NotAtLeast(nodes...))
}

// Sort adds sort keys. Re-adding a field changes its direction in place.
func (q *Select) Sort(keys ...filter.SortKey) *Select {
	q.sort.Add(keys...)
	return q
}

// Discard clears the filter, the sort order and any remembered error.
func (q *Select) Discard() *Select {
	q.where = nil
	q.sort.Clear()
	q.err = nil
	return q
}

// Filter returns the accumulated filter tree.
func (q *Select) Filter() filter.Node {
	return filter.Conjoin(q.where...)
}

// Native returns the filter as a native document-store filter.
func (q *Select) Native() (map[string]any, error) {
	if q.err != nil {
		return nil, q.err
	}
	return translate.Native(q.Filter())
}

// SQL returns a debug rendering of the query. It is never executed.
func (q *Select) SQL() (string, error) {
	if q.err != nil {
		return "", q.err
	}
	return translate.DebugQuery(q.coll.name, q.Filter(), q.sort)
}

// Count returns the number of matching records, without paging.
func (q *Select) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	n := q.Filter()
	if filter.HasComputed(n) {
		matched, err := q.computed(ctx, n)
		if err != nil {
			return 0, err
		}
		return len(matched), nil
	}
	return q.coll.count(ctx, n)
}

// Fetch returns the first matching record in sort order, or nil.
func (q *Select) Fetch(ctx context.Context) (*model.Instance, error) {
	items, err := q.fetch(ctx, 0, 1)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// FetchAll returns one page of matching records.
//
// A page below 1 is treated as 1 and a page size below 1 as
// DefaultPageSize. The total is counted first; when nothing matches, no
// fetch is issued.
func (q *Select) FetchAll(ctx context.Context, page, pageSize int) (*Pagination, error) {
	if q.err != nil {
		return nil, q.err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	p := &Pagination{Page: page, PageSize: pageSize, Items: []*model.Instance{}}

	n := q.Filter()
	if filter.HasComputed(n) {
		matched, err := q.computed(ctx, n)
		if err != nil {
			return nil, err
		}
		p.TotalItems = len(matched)
		p.Items = append(p.Items, window(matched, (page-1)*pageSize, pageSize)...)
		return p, nil
	}

	total, err := q.coll.count(ctx, n)
	if err != nil {
		return nil, err
	}
	p.TotalItems = total
	if total == 0 {
		return p, nil
	}

	items, err := q.fetch(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (q *Select) fetch(ctx context.Context, skip, limit int) ([]*model.Instance, error) {
	if q.err != nil {
		return nil, q.err
	}
	n := q.Filter()
	if filter.HasComputed(n) {
		matched, err := q.computed(ctx, n)
		if err != nil {
			return nil, err
		}
		return window(matched, skip, limit), nil
	}

	docs, err := q.coll.find(ctx, n, backend.FindOptions{Sort: q.sort.Keys(), Skip: skip, Limit: limit})
	if err != nil {
		return nil, err
	}
	r := q.coll.db.newResolver(ctx)
	out := make([]*model.Instance, 0, len(docs))
	for _, d := range docs {
		out = append(out, q.coll.materialize(d, r))
	}
	return out, nil
}

// computed evaluates a filter with computed predicates in process and
// returns the matching instances in sort order.
func (q *Select) computed(ctx context.Context, n filter.Node) ([]*model.Instance, error) {
	docs, err := q.coll.find(ctx, pushdown(n), backend.FindOptions{})
	if err != nil {
		return nil, err
	}
	backend.SortDocuments(docs, q.sort.Keys())

	r := q.coll.db.newResolver(ctx)
	var out []*model.Instance
	for _, d := range docs {
		inst := q.coll.materialize(d, r)
		if filter.MatchesWith(n, d, inst) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// window applies skip and limit to an ordered slice.
func window(items []*model.Instance, skip, limit int) []*model.Instance {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// pushdown keeps the top-level conjuncts a backend can evaluate.
func pushdown(n filter.Node) filter.Node {
	and, ok := n.(filter.And)
	if !ok {
		if filter.HasComputed(n) {
			return filter.And{}
		}
		return n
	}
	var kept []filter.Node
	for _, child := range and.Nodes {
		if !filter.HasComputed(child) {
			kept = append(kept, child)
		}
	}
	return filter.Conjoin(kept...)
}

// Pagination is one page of a query result plus the total match count.
type Pagination struct {
	Page       int
	PageSize   int
	TotalItems int
	Items      []*model.Instance
}

// TotalPages returns the number of pages of PageSize needed for
// TotalItems.
func (p *Pagination) TotalPages() int {
	if p.PageSize < 1 || p.TotalItems == 0 {
		return 0
	}
	return (p.TotalItems + p.PageSize - 1) / p.PageSize
}

// Len returns the number of items on this page.
func (p *Pagination) Len() int { return len(p.Items) }

// ToSerializable renders the page as a document.
func (p *Pagination) ToSerializable() map[string]any {
	items := make([]any, len(p.Items))
	for i, inst := range p.Items {
		items[i] = inst.ToSerializable(false)
	}
	return map[string]any{
		"metadata": map[string]any{
			"page":        int64(p.Page),
			"page_size":   int64(p.PageSize),
			"total_items": int64(p.TotalItems),
			"total_pages": int64(p.TotalPages()),
		},
		"items": items,
	}
}

// MarshalJSON implements json.Marshaler with canonical output.
func (p *Pagination) MarshalJSON() ([]byte, error) {
	return doc.MarshalCanonical(p.ToSerializable())
}
