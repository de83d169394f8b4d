// Package mongo stores documents in a MongoDB database. Filters are sent as
// the native filter document produced by translate.Native.
//
// Sort order follows the server's BSON comparison order, which places
// booleans after strings and compound values. Every other ordering rule
// matches the other backends.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/translate"
)

// DisconnectTimeout bounds Close.
const DisconnectTimeout = 10 * time.Second

// Store is a MongoDB document backend.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ backend.Backend = (*Store)(nil)

// Open connects to uri and uses database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Name implements backend.Backend.
func (s *Store) Name() string { return "mongo" }

// Close implements backend.Backend.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DisconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) (*mongo.Collection, error) {
	if err := backend.ValidateCollection(name); err != nil {
		return nil, err
	}
	return s.db.Collection(name), nil
}

// Find implements backend.Backend.
func (s *Store) Find(ctx context.Context, collection string, n filter.Node, opts backend.FindOptions) ([]map[string]any, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	native, err := translate.Native(n)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	findOpts := options.Find().SetSort(sortDocument(opts.Sort))
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := coll.Find(ctx, native, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	docs := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		d, _ := fromBSON(r).(map[string]any)
		docs = append(docs, d)
	}
	return docs, nil
}

// sortDocument appends the _id tiebreak to keys.
func sortDocument(keys []filter.SortKey) bson.D {
	sort := make(bson.D, 0, len(keys)+1)
	for _, k := range keys {
		sort = append(sort, bson.E{Key: k.Field, Value: int(k.Dir)})
	}
	return append(sort, bson.E{Key: backend.IDField, Value: 1})
}

// Count implements backend.Backend.
func (s *Store) Count(ctx context.Context, collection string, n filter.Node) (int, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	native, err := translate.Native(n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	count, err := coll.CountDocuments(ctx, native)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return int(count), nil
}

// Replace implements backend.Backend as an upsert on _id.
func (s *Store) Replace(ctx context.Context, collection, id string, document map[string]any) (bool, error) {
	if id == "" {
		return false, nil
	}
	coll, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	stored, ok := doc.Normalize(document).(map[string]any)
	if !ok {
		return false, fmt.Errorf("replace %s: document for %q is not an object", collection, id)
	}
	stored[backend.IDField] = id

	res, err := coll.ReplaceOne(ctx, bson.M{backend.IDField: id}, stored, options.Replace().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("replace %s: %w", collection, err)
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

// Delete implements backend.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	res, err := coll.DeleteOne(ctx, bson.M{backend.IDField: id})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	return res.DeletedCount > 0, nil
}

// Drop implements backend.Backend.
func (s *Store) Drop(ctx context.Context, collection string) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := coll.Drop(ctx); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

// fromBSON converts decoded BSON into normalized document values.
func fromBSON(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = fromBSON(elem)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = fromBSON(elem)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	}
	return doc.Normalize(v)
}
