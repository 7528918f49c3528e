package mongoclient

import (
	"context"
	stderrors "errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/c360/mongosink/errors"
)

// Collection wraps a driver collection with the write operations the sink
// needs plus the bounded existence probe used by modifier apply-policies.
type Collection struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// Exists reports whether any document matches the query. The read is bounded
// to a single document and projects only _id.
func (c *Collection) Exists(ctx context.Context, query bson.D) (bool, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})
	err := c.coll.FindOne(ctx, query, opts).Err()
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, errors.WrapTransient(err, "Collection", "Exists", "existence probe")
}

// InsertMany writes a batch of complete documents.
func (c *Collection) InsertMany(ctx context.Context, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := c.coll.InsertMany(ctx, docs); err != nil {
		return errors.WrapTransient(err, "Collection", "InsertMany", "batch insert")
	}
	return nil
}

// Replace performs a full-document replace against the query. With upsert,
// the server creates the document from the query's equality fields merged
// with the replacement when nothing matches.
func (c *Collection) Replace(ctx context.Context, query bson.D, doc any, upsert bool) error {
	opts := options.Replace().SetUpsert(upsert)
	if _, err := c.coll.ReplaceOne(ctx, query, doc, opts); err != nil {
		return errors.WrapTransient(err, "Collection", "Replace", "replace")
	}
	return nil
}

// UpdateModifier applies a modifier update document against the query.
// With multi, every matching document updates; otherwise only the first.
func (c *Collection) UpdateModifier(ctx context.Context, query bson.D, update bson.D, upsert, multi bool) error {
	var err error
	if multi {
		opts := options.UpdateMany().SetUpsert(upsert)
		_, err = c.coll.UpdateMany(ctx, query, update, opts)
	} else {
		opts := options.UpdateOne().SetUpsert(upsert)
		_, err = c.coll.UpdateOne(ctx, query, update, opts)
	}
	if err != nil {
		return errors.WrapTransient(err, "Collection", "UpdateModifier", "modifier update")
	}
	return nil
}

// Truncate removes every document from the collection.
func (c *Collection) Truncate(ctx context.Context) error {
	if _, err := c.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return errors.WrapTransient(err, "Collection", "Truncate", "delete all")
	}
	return nil
}
