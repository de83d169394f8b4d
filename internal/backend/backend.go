// Package backend defines the storage contract shared by every document
// store flexschema can persist to.
//
// A backend stores one document per identifier in named collections. The
// document is the persist-mode serialization of a model instance: its
// top-level keys are schema field names, including _id and _updated_at.
//
// CRITICAL: Write and delete outcomes are booleans. Errors are reserved for
// configuration and connectivity faults, so a caller can tell "the store
// refused" apart from "the store is unreachable".
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/translate"
)

// IDField is the document key holding the record identifier.
const IDField = "_id"

// UpdatedAtField is the document key holding the revision timestamp.
const UpdatedAtField = "_updated_at"

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("backend is closed")

// FindOptions bounds and orders a Find.
//
// Limit <= 0 means no limit. Documents are always ordered by Sort and then
// by _id ascending, so paging is deterministic.
type FindOptions struct {
	Sort  []filter.SortKey
	Skip  int
	Limit int
}

// Backend is the contract every store implements.
type Backend interface {
	// Name identifies the backend kind in logs ("memory", "sqlite", "mongo").
	Name() string

	// Find returns the documents of collection matching n.
	Find(ctx context.Context, collection string, n filter.Node, opts FindOptions) ([]map[string]any, error)

	// Count returns the number of documents of collection matching n.
	Count(ctx context.Context, collection string, n filter.Node) (int, error)

	// Replace upserts document under id and reports whether the store
	// acknowledged the write.
	Replace(ctx context.Context, collection, id string, document map[string]any) (bool, error)

	// Delete removes the document with id and reports whether one existed.
	Delete(ctx context.Context, collection, id string) (bool, error)

	// Drop removes every document of collection.
	Drop(ctx context.Context, collection string) error

	Close() error
}

// ValidateCollection rejects collection names that cannot be used as a
// table name in every backend.
func ValidateCollection(name string) error {
	if !translate.ValidIdentifier(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// SortDocuments orders docs in place by keys, then by _id ascending.
// Values compare with the cross-backend sort order: null and missing
// first, then numbers and booleans, then strings and compound values.
func SortDocuments(docs []map[string]any, keys []filter.SortKey) {
	slices.SortStableFunc(docs, func(a, b map[string]any) int {
		for _, k := range keys {
			av, _ := doc.Lookup(a, k.Field)
			bv, _ := doc.Lookup(b, k.Field)
			if c := doc.SortCompare(av, bv); c != 0 {
				return c * int(k.Dir)
			}
		}
		return doc.SortCompare(a[IDField], b[IDField])
	})
}

// Window applies skip and limit to an ordered result.
func Window(docs []map[string]any, skip, limit int) []map[string]any {
	if skip > 0 {
		if skip >= len(docs) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
