// Package orm binds schemas to a storage backend.
//
// A DB is an explicit handle: it owns one backend and the set of schemas
// attached to it. Two DBs never share state, so differently-attached
// repositories of the same schema can coexist.
//
// Each attached schema gets a Collection, which implements the commit
// protocol, lookups by identifier and the Select query object.
package orm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/model"
	"github.com/roach88/flexschema/internal/schema"
	"github.com/roach88/flexschema/internal/schema/jsonschema"
)

// DefaultPageSize is used when FetchAll receives a page size below 1.
const DefaultPageSize = 10

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithIDs sets the identifier generator handed to every instance.
func WithIDs(g model.IDGenerator) Option {
	return func(db *DB) { db.ids = g }
}

// WithClock sets the clock handed to every instance.
func WithClock(c model.Clock) Option {
	return func(db *DB) { db.clock = c }
}

// WithDocumentGuard checks every loaded document against the JSON Schema
// export of its schema and logs the ones that do not conform. Such
// documents are still loaded; their problems surface through Evaluate.
func WithDocumentGuard() Option {
	return func(db *DB) { db.guard = true }
}

// DB is a handle on one backend and the collections attached to it.
//
// Thread-safety: attaching and looking up collections is safe for
// concurrent use. Instances and Selects are single-owner.
type DB struct {
	backend backend.Backend
	logger  *slog.Logger
	ids     model.IDGenerator
	clock   model.Clock
	guard   bool

	mu          sync.RWMutex
	collections map[*schema.Schema]*Collection
}

// Open creates a handle on b. A nil backend is accepted; every operation
// that needs storage then fails with ErrCodeNoBackend.
func Open(b backend.Backend, opts ...Option) *DB {
	db := &DB{
		backend:     b,
		logger:      slog.Default(),
		ids:         model.UUIDGenerator{},
		clock:       model.SystemClock{},
		collections: make(map[*schema.Schema]*Collection),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Backend returns the underlying backend, or nil.
func (db *DB) Backend() backend.Backend { return db.backend }

// Close closes the backend.
func (db *DB) Close() error {
	if db.backend == nil {
		return nil
	}
	return db.backend.Close()
}

// DefaultCollectionName derives a collection name from a schema name:
// lowercase plus "s" ("Post" → "posts").
func DefaultCollectionName(s *schema.Schema) string {
	return strings.ToLower(s.Name()) + "s"
}

// Attach binds s to a collection. An empty name uses
// DefaultCollectionName. Attaching an attached schema rebinds it.
func (db *DB) Attach(s *schema.Schema, name string) (*Collection, error) {
	if !s.Identity() {
		return nil, fmt.Errorf("attach %s: only persistable schemas can be attached", s.Name())
	}
	if name == "" {
		name = DefaultCollectionName(s)
	}
	if err := backend.ValidateCollection(name); err != nil {
		return nil, fmt.Errorf("attach %s: %w", s.Name(), err)
	}

	c := &Collection{db: db, schema: s, name: name}
	if db.guard {
		v, err := jsonschema.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", s.Name(), err)
		}
		c.guard = v
	}

	db.mu.Lock()
	db.collections[s] = c
	db.mu.Unlock()

	db.logger.Debug("collection attached", "schema", s.Name(), "collection", name)
	return c, nil
}

// MustAttach is Attach that panics on error.
func (db *DB) MustAttach(s *schema.Schema, name string) *Collection {
	c, err := db.Attach(s, name)
	if err != nil {
		panic(err)
	}
	return c
}

// Detach unbinds s. Later operations on its Collection fail with
// ErrCodeNotAttached.
func (db *DB) Detach(s *schema.Schema) {
	db.mu.Lock()
	c, ok := db.collections[s]
	delete(db.collections, s)
	db.mu.Unlock()

	if ok {
		db.logger.Debug("collection detached", "schema", s.Name(), "collection", c.name)
	}
}

// Collection returns the collection s is attached to.
func (db *DB) Collection(s *schema.Schema) (*Collection, error) {
	db.mu.RLock()
	c, ok := db.collections[s]
	db.mu.RUnlock()
	if !ok {
		return nil, &RuntimeError{
			Code:    ErrCodeNotAttached,
			Message: fmt.Sprintf("schema %q has no collection attached; use DB.Attach", s.Name()),
		}
	}
	return c, nil
}

func (db *DB) attached(c *Collection) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.collections[c.schema] == c
}

// Resolver returns a model.Resolver that loads referenced records through
// this DB. Resolution is depth-first; a record already being resolved
// higher up the chain stays an unresolved reference, which breaks cycles.
func (db *DB) Resolver(ctx context.Context) model.Resolver {
	return db.newResolver(ctx)
}

func (db *DB) newResolver(ctx context.Context) *resolver {
	return &resolver{ctx: ctx, db: db, visiting: make(map[string]bool)}
}

// New creates an instance of s with this DB's generators and resolver.
// s does not need to be attached; references to unattached schemas stay
// unresolved.
func (db *DB) New(ctx context.Context, s *schema.Schema, data map[string]any) *model.Instance {
	return model.New(s, data, db.instanceOptions(db.newResolver(ctx))...)
}

func (db *DB) instanceOptions(r model.Resolver) []model.Option {
	return []model.Option{model.WithResolver(r), model.WithIDs(db.ids), model.WithClock(db.clock)}
}

type resolver struct {
	ctx      context.Context
	db       *DB
	visiting map[string]bool
}

// Resolve implements model.Resolver.
func (r *resolver) Resolve(s *schema.Schema, id string) (*model.Instance, bool) {
	c, err := r.db.Collection(s)
	if err != nil {
		return nil, false
	}
	if r.visiting[visitKey(c, id)] {
		return nil, false
	}

	inst, err := c.load(r.ctx, id, r)
	if err != nil {
		r.db.logger.Warn("reference not resolved", "collection", c.name, "id", id, "error", err)
		return nil, false
	}
	return inst, inst != nil
}

func visitKey(c *Collection, id any) string {
	return fmt.Sprintf("%s/%v", c.name, id)
}
