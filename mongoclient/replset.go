package mongoclient

import (
	"context"
	stderrors "errors"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/c360/mongosink/errors"
)

// LastErrorModes returns the names of any custom getLastError durability
// modes defined for the replica set. Standalone servers and replica sets
// without custom modes return an empty list.
func (c *Client) LastErrorModes(ctx context.Context) ([]string, error) {
	coll := c.client.Database(LocalDB).Collection(ReplSetCollection)

	var config struct {
		Settings struct {
			GetLastErrorModes bson.M `bson:"getLastErrorModes"`
		} `bson:"settings"`
	}

	err := coll.FindOne(ctx, bson.D{}).Decode(&config)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			// not a replica set member
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Client", "LastErrorModes", "read replica set config")
	}

	modes := make([]string, 0, len(config.Settings.GetLastErrorModes))
	for name := range config.Settings.GetLastErrorModes {
		modes = append(modes, name)
	}
	sort.Strings(modes)

	return modes, nil
}
