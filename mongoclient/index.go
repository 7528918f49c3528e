package mongoclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/c360/mongosink/errors"
)

// IndexSpec describes one index operation against the target collection.
// PathToFields is a comma-separated sequence of name[:dir] tokens, with
// dir 1 (ascending, the default) or -1 (descending).
type IndexSpec struct {
	PathToFields string `json:"path_to_fields"`
	Unique       bool   `json:"unique,omitempty"`
	Sparse       bool   `json:"sparse,omitempty"`
	Drop         bool   `json:"drop,omitempty"`
}

// ParseIndexKeys parses a PathToFields spec into an ordered key document.
// A terminal array marker on a field name (name[0]) is stripped to the
// plain field name.
func ParseIndexKeys(pathToFields string) (bson.D, error) {
	keys := bson.D{}
	for _, token := range strings.Split(pathToFields, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty index field in %q", errors.ErrInvalidConfig, pathToFields),
				"ParseIndexKeys", "parse", "token check")
		}

		name := token
		direction := 1
		if colon := strings.Index(token, ":"); colon >= 0 {
			name = strings.TrimSpace(token[:colon])
			dir, err := strconv.Atoi(strings.TrimSpace(token[colon+1:]))
			if err != nil || (dir != 1 && dir != -1) {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: index direction must be 1 or -1 in %q", errors.ErrInvalidConfig, token),
					"ParseIndexKeys", "parse", "direction check")
			}
			direction = dir
		}

		// strip the array marker to get the actual object name when the
		// terminal object is an array
		if bracket := strings.Index(name, "["); bracket > 0 {
			name = name[:bracket]
		}
		if name == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty index field name in %q", errors.ErrInvalidConfig, token),
				"ParseIndexKeys", "parse", "name check")
		}

		keys = append(keys, bson.E{Key: name, Value: direction})
	}
	return keys, nil
}

// IndexName computes the server's default name for a key document
// (field_1_other_-1).
func IndexName(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s_%v", k.Key, k.Value))
	}
	return strings.Join(parts, "_")
}

// ApplyIndexes applies the supplied index operations to the collection.
// Indexes are created in the background. When the collection was truncated
// in the current run, drop operations are skipped: the indexes are already
// empty and the drop would be redundant.
func (c *Collection) ApplyIndexes(ctx context.Context, indexes []IndexSpec, truncated bool) error {
	for _, index := range indexes {
		keys, err := ParseIndexKeys(index.PathToFields)
		if err != nil {
			return err
		}

		if index.Drop {
			if truncated {
				c.logger.Info("collection truncated this run, skipping index drop",
					"collection", c.coll.Name(),
					"index", index.PathToFields)
				continue
			}
			if err := c.coll.Indexes().DropOne(ctx, IndexName(keys)); err != nil {
				return errors.WrapTransient(err, "Collection", "ApplyIndexes",
					fmt.Sprintf("drop index %q", index.PathToFields))
			}
			c.logger.Info("dropped index",
				"collection", c.coll.Name(),
				"index", index.PathToFields)
			continue
		}

		cmd := bson.D{
			{Key: "createIndexes", Value: c.coll.Name()},
			{Key: "indexes", Value: bson.A{bson.D{
				{Key: "key", Value: keys},
				{Key: "name", Value: IndexName(keys)},
				{Key: "background", Value: true},
				{Key: "unique", Value: index.Unique},
				{Key: "sparse", Value: index.Sparse},
			}}},
		}
		if err := c.coll.Database().RunCommand(ctx, cmd).Err(); err != nil {
			return errors.WrapTransient(err, "Collection", "ApplyIndexes",
				fmt.Sprintf("create index %q", index.PathToFields))
		}
		c.logger.Info("created index",
			"collection", c.coll.Name(),
			"index", index.PathToFields,
			"unique", index.Unique,
			"sparse", index.Sparse)
	}
	return nil
}
