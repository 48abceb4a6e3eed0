package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/noah-isme/teamhub-api/pkg/config"
)

// NewMongo connects to MongoDB, pings the primary and returns the configured database.
// The database name falls back to the URI path when MONGO_DATABASE is empty.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*mongodriver.Client, *mongodriver.Database, error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("mongo: empty uri")
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := mongodriver.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	name := cfg.Database
	if name == "" {
		name = databaseFromURI(cfg.URI)
	}

	return client, client.Database(name), nil
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return "teamhub"
}
