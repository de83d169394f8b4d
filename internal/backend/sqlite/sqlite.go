// Package sqlite stores documents in SQLite, one table per collection.
//
// Every collection table has the same three columns:
//
//	_id          TEXT PRIMARY KEY
//	_updated_at  TEXT NOT NULL
//	document     TEXT NOT NULL   (canonical JSON of the whole record)
//
// Filters are compiled by translate.JSONCompiler into JSON1 predicates over
// the document column. $regex is served by the flex_regexp function this
// package registers on every connection.
//
// # Pragmas
//
// Connections run in WAL journal mode with synchronous=NORMAL, and wait up
// to five seconds on a locked database before failing.
//
// Collection tables are created on first use and recorded in the
// flex_collections registry table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/translate"
)

// DriverName is the database/sql driver registered by this package: the
// stock go-sqlite3 driver plus the flex_regexp function.
const DriverName = "sqlite3_flexschema"

// Database layout versions (PRAGMA user_version):
// 0 - fresh file
// 1 - flex_collections registry
const currentSchemaVersion = 1

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(translate.RegexpFunc, regexpMatch, true)
		},
	})
}

// regexpMatch implements flex_regexp(pattern, options, value). Non-text
// values never match.
func regexpMatch(pattern, options string, value any) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, nil
	}
	re, err := filter.Regexp(pattern, options)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// Store is a SQLite document backend.
type Store struct {
	db       *sql.DB
	compiler *translate.JSONCompiler

	mu     sync.Mutex
	tables map[string]bool
}

var _ backend.Backend = (*Store)(nil)

// Open opens the database file at path, creating it when missing, and
// brings its layout up to date. Opening an up-to-date file changes
// nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:       db,
		compiler: translate.NewJSONCompiler(),
		tables:   make(map[string]bool),
	}, nil
}

// Name implements backend.Backend.
func (s *Store) Name() string { return "sqlite" }

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the database handle to tests and maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// runMigrations steps the file from its recorded user_version to the current one.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 creates the collection registry.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flex_collections (
			name       TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// ensureTable creates the collection table and registers it once per Store.
func (s *Store) ensureTable(ctx context.Context, collection string) error {
	if err := backend.ValidateCollection(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[collection] {
		return nil
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			_id         TEXT PRIMARY KEY,
			_updated_at TEXT NOT NULL,
			document    TEXT NOT NULL CHECK (json_valid(document))
		)
	`, collection)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flex_collections (name, created_at)
		VALUES (?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(name) DO NOTHING
	`, collection)
	if err != nil {
		return fmt.Errorf("register collection %s: %w", collection, err)
	}

	s.tables[collection] = true
	return nil
}

// Collections returns the registered collection names in binary order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM flex_collections ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}

// Find implements backend.Backend.
func (s *Store) Find(ctx context.Context, collection string, n filter.Node, opts backend.FindOptions) ([]map[string]any, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}
	query, params, err := s.compiler.Select(translate.FindQuery{
		Table:  collection,
		Filter: n,
		Sort:   opts.Sort,
		Skip:   opts.Skip,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		d, err := doc.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

// Count implements backend.Backend.
func (s *Store) Count(ctx context.Context, collection string, n filter.Node) (int, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return 0, err
	}
	query, params, err := s.compiler.Count(collection, n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

// Replace implements backend.Backend as an upsert on _id.
func (s *Store) Replace(ctx context.Context, collection, id string, document map[string]any) (bool, error) {
	if id == "" {
		return false, nil
	}
	if err := s.ensureTable(ctx, collection); err != nil {
		return false, err
	}

	stored, ok := doc.Normalize(document).(map[string]any)
	if !ok {
		return false, fmt.Errorf("replace %s: document for %q is not an object", collection, id)
	}
	stored[backend.IDField] = id
	updatedAt, _ := stored[backend.UpdatedAtField].(string)

	data, err := doc.MarshalCanonical(stored)
	if err != nil {
		return false, fmt.Errorf("replace %s: %w", collection, err)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %q (_id, _updated_at, document)
		VALUES (?, ?, ?)
		ON CONFLICT(_id) DO UPDATE SET
			_updated_at = excluded._updated_at,
			document    = excluded.document
	`, collection), id, updatedAt, string(data))
	if err != nil {
		return false, fmt.Errorf("replace %s: %w", collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("replace %s: %w", collection, err)
	}
	return affected > 0, nil
}

// Delete implements backend.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE _id = ?`, collection), id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	return affected > 0, nil
}

// Drop implements backend.Backend. The table and its registry entry are
// removed; the next use recreates them.
func (s *Store) Drop(ctx context.Context, collection string) error {
	if err := backend.ValidateCollection(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, collection)); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flex_collections WHERE name = ?`, collection); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	delete(s.tables, collection)
	return nil
}

// verifyPragma compares a pragma's current value with expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
