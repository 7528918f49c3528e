// Package mongoclient wraps the MongoDB driver for the sink: connection
// management, the existence probe, write operations, replica-set durability
// mode discovery, and index management.
package mongoclient

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/c360/mongosink/errors"
)

// DefaultPort is the MongoDB default server port.
const DefaultPort = 27017

// Replica-set discovery constants. Custom durability modes live in the
// local database's system.replset collection under
// settings.getLastErrorModes.
const (
	LocalDB              = "local"
	ReplSetCollection    = "system.replset"
	ReplSetSettings      = "settings"
	ReplSetLastErrModes  = "getLastErrorModes"
)

// Config holds connection settings for the sink's MongoDB client.
type Config struct {
	Hosts          []string      `json:"hosts"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	AuthDatabase   string        `json:"auth_database,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
	SocketTimeout  time.Duration `json:"socket_timeout,omitempty"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "hosts are required")
	}
	for _, h := range c.Hosts {
		if strings.TrimSpace(h) == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "empty host entry")
		}
	}
	return nil
}

// Client wraps a driver client with the sink's conventions.
type Client struct {
	client *mongo.Client
	logger *slog.Logger
}

// Connect establishes a client against the configured hosts. Hosts without
// an explicit port get the MongoDB default port. The connection is verified
// with a ping before being handed back.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hosts := make([]string, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		hosts[i] = withDefaultPort(h)
	}

	opts := options.Client().SetHosts(hosts)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.SocketTimeout > 0 {
		opts.SetTimeout(cfg.SocketTimeout)
	}
	if cfg.Username != "" {
		cred := options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		}
		if cfg.AuthDatabase != "" {
			cred.AuthSource = cfg.AuthDatabase
		}
		opts.SetAuth(cred)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Connect", "driver connect")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		// Best-effort teardown of the half-open client.
		_ = client.Disconnect(ctx)
		return nil, errors.WrapTransient(err, "Client", "Connect", "server ping")
	}

	logger.Info("connected to MongoDB", "hosts", hosts)

	return &Client{client: client, logger: logger}, nil
}

// withDefaultPort appends the default port to a bare host name.
func withDefaultPort(host string) string {
	host = strings.TrimSpace(host)
	if strings.Contains(host, ":") {
		return host
	}
	return host + ":" + strconv.Itoa(DefaultPort)
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return errors.WrapTransient(err, "Client", "Close", "disconnect")
	}
	return nil
}

// Collection returns a handle on the named collection.
func (c *Client) Collection(database, name string) *Collection {
	return &Collection{
		coll:   c.client.Database(database).Collection(name),
		logger: c.logger,
	}
}

// CreateCollection creates a collection in the given database.
func (c *Client) CreateCollection(ctx context.Context, database, name string) error {
	if err := c.client.Database(database).CreateCollection(ctx, name); err != nil {
		return errors.WrapTransient(err, "Client", "CreateCollection", fmt.Sprintf("create %s.%s", database, name))
	}
	return nil
}

// CollectionNames lists the collections present in a database.
func (c *Client) CollectionNames(ctx context.Context, database string) ([]string, error) {
	names, err := c.client.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "CollectionNames", "list collections")
	}
	return names, nil
}
