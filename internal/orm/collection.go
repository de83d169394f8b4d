package orm

import (
	"context"
	"fmt"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/model"
	"github.com/roach88/flexschema/internal/schema"
	"github.com/roach88/flexschema/internal/schema/jsonschema"
)

// Collection is a persistable schema attached to a DB.
type Collection struct {
	db     *DB
	schema *schema.Schema
	name   string
	guard  *jsonschema.Validator
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Schema returns the attached schema.
func (c *Collection) Schema() *schema.Schema { return c.schema }

// New creates an instance of the collection's schema. References in data
// are resolved through the DB.
func (c *Collection) New(ctx context.Context, data map[string]any) *model.Instance {
	return c.db.New(ctx, c.schema, data)
}

// ready checks the collection can reach storage.
func (c *Collection) ready() (backend.Backend, error) {
	if !c.db.attached(c) {
		return nil, &RuntimeError{
			Code:       ErrCodeNotAttached,
			Message:    fmt.Sprintf("schema %q is no longer attached", c.schema.Name()),
			Collection: c.name,
		}
	}
	if c.db.backend == nil {
		return nil, &RuntimeError{
			Code:       ErrCodeNoBackend,
			Message:    "DB has no backend",
			Collection: c.name,
		}
	}
	return c.db.backend, nil
}

// Commit writes inst and reports whether the backend acknowledged it.
//
// The write is refused (false, nil) unless inst is submittable. With
// cascade set, every persistable instance held directly by inst is
// committed first, and the first failure aborts the parent write. Nested
// records are then written as {"$id": ...} references; without cascade
// they are inlined.
//
// CRITICAL: A cascade is not atomic. Records committed before a failure
// stay committed.
func (c *Collection) Commit(ctx context.Context, inst *model.Instance, cascade bool) (bool, error) {
	return c.commit(ctx, inst, cascade, make(map[*model.Instance]bool))
}

func (c *Collection) commit(ctx context.Context, inst *model.Instance, cascade bool, visiting map[*model.Instance]bool) (bool, error) {
	if inst.Schema() != c.schema {
		return false, fmt.Errorf("commit: %s instance given to %s collection", inst.Schema().Name(), c.schema.Name())
	}
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if visiting[inst] {
		// Already being committed further up the cascade.
		return true, nil
	}
	visiting[inst] = true

	if violations := inst.Evaluate(); len(violations) > 0 {
		c.db.logger.Info("commit refused: record is not submittable",
			"collection", c.name,
			"violations", violations.Paths(),
		)
		return false, nil
	}

	if cascade {
		for _, nested := range inst.Nested() {
			nc, err := c.db.Collection(nested.Schema())
			if err != nil {
				return false, err
			}
			ok, err := nc.commit(ctx, nested, true, visiting)
			if err != nil {
				return false, err
			}
			if !ok {
				c.db.logger.Warn("cascade aborted",
					"collection", c.name,
					"nested", nested.String(),
				)
				return false, nil
			}
		}
	}

	id := inst.ID()
	inst.Touch()
	ok, err := b.Replace(ctx, c.name, id, inst.ToSerializable(cascade))
	if err != nil {
		return false, backendFailure(c.name, "replace", err)
	}
	if !ok {
		c.db.logger.Warn("write not acknowledged", "collection", c.name, "id", id)
	}
	return ok, nil
}

// Delete removes inst and reports whether a record was removed. An
// instance that never received an identifier cannot have been stored.
func (c *Collection) Delete(ctx context.Context, inst *model.Instance) (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if !inst.HasID() {
		return false, nil
	}
	ok, err := b.Delete(ctx, c.name, inst.ID())
	if err != nil {
		return false, backendFailure(c.name, "delete", err)
	}
	return ok, nil
}

// Load returns the record with id, or nil when there is none.
func (c *Collection) Load(ctx context.Context, id string) (*model.Instance, error) {
	return c.load(ctx, id, c.db.newResolver(ctx))
}

func (c *Collection) load(ctx context.Context, id string, r *resolver) (*model.Instance, error) {
	docs, err := c.find(ctx, filter.On(schema.IDField).Eq(id), backend.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return c.materialize(docs[0], r), nil
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.count(ctx, nil)
}

// Truncate removes every record.
func (c *Collection) Truncate(ctx context.Context) error {
	b, err := c.ready()
	if err != nil {
		return err
	}
	if err := b.Drop(ctx, c.name); err != nil {
		return backendFailure(c.name, "drop", err)
	}
	return nil
}

// Fetch returns the first record matching a native filter document, or
// nil.
func (c *Collection) Fetch(ctx context.Context, native map[string]any) (*model.Instance, error) {
	return c.Select().WhereNative(native).Fetch(ctx)
}

// FetchAll returns one page of the records matching a native filter
// document.
func (c *Collection) FetchAll(ctx context.Context, native map[string]any, page, pageSize int) (*Pagination, error) {
	return c.Select().WhereNative(native).FetchAll(ctx, page, pageSize)
}

// Select starts a query on the collection.
func (c *Collection) Select() *Select {
	return &Select{coll: c}
}

func (c *Collection) find(ctx context.Context, n filter.Node, opts backend.FindOptions) ([]map[string]any, error) {
	b, err := c.ready()
	if err != nil {
		return nil, err
	}
	docs, err := b.Find(ctx, c.name, n, opts)
	if err != nil {
		return nil, backendFailure(c.name, "find", err)
	}
	return docs, nil
}

func (c *Collection) count(ctx context.Context, n filter.Node) (int, error) {
	b, err := c.ready()
	if err != nil {
		return 0, err
	}
	count, err := b.Count(ctx, c.name, n)
	if err != nil {
		return 0, backendFailure(c.name, "count", err)
	}
	return count, nil
}

// materialize builds an instance from a stored document. The record is
// marked as being resolved while its own references are loaded.
func (c *Collection) materialize(document map[string]any, r *resolver) *model.Instance {
	key := visitKey(c, document[schema.IDField])
	r.visiting[key] = true
	defer delete(r.visiting, key)

	if c.guard != nil {
		if err := c.guard.Validate(document); err != nil {
			c.db.logger.Warn("stored document does not match schema",
				"collection", c.name,
				"id", document[schema.IDField],
				"error", err,
			)
		}
	}
	return model.New(c.schema, document, c.db.instanceOptions(r)...)
}
