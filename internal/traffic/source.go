// ABOUTME: Data-layer collaborator for the traffic tools, backed by the MongoDB driver.
// ABOUTME: Every query is bounded by the configured query timeout.

package traffic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Source is the document store the traffic tools query.
type Source interface {
	Aggregate(ctx context.Context, database, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
	Distinct(ctx context.Context, database, collection, field string) ([]any, error)
	Find(ctx context.Context, database, collection string, filter any, limit int64) ([]bson.M, error)
	ListDatabaseNames(ctx context.Context) ([]string, error)
	ListCollectionNames(ctx context.Context, database string) ([]string, error)
	Ping(ctx context.Context) error
}

// MongoConfig contains connection options for NewMongoSource.
type MongoConfig struct {
	URI            string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	Logger         *slog.Logger
}

// MongoSource implements Source over a MongoDB deployment.
type MongoSource struct {
	client       *mongo.Client
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewMongoSource connects to MongoDB. The driver connects lazily, so an
// unreachable server surfaces on the first query or Ping, not here.
func NewMongoSource(ctx context.Context, cfg MongoConfig) (*MongoSource, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	return &MongoSource{
		client:       client,
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.With("component", "traffic"),
	}, nil
}

// withTimeout bounds ctx by the query timeout when one is configured.
func (m *MongoSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.queryTimeout)
}

func (m *MongoSource) collection(database, collection string) *mongo.Collection {
	return m.client.Database(database).Collection(collection)
}

// Aggregate runs pipeline and decodes every result document.
func (m *MongoSource) Aggregate(ctx context.Context, database, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.logger.Debug("aggregate", "database", database, "collection", collection, "stages", len(pipeline))

	cursor, err := m.collection(database, collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate on %s.%s: %w", database, collection, err)
	}
	results := []bson.M{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("reading aggregate results: %w", err)
	}
	return results, nil
}

// Distinct returns the distinct values of field across the collection.
func (m *MongoSource) Distinct(ctx context.Context, database, collection, field string) ([]any, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.logger.Debug("distinct", "database", database, "collection", collection, "field", field)

	values, err := m.collection(database, collection).Distinct(ctx, field, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct %s on %s.%s: %w", field, database, collection, err)
	}
	return values, nil
}

// Find returns documents matching filter. A limit of zero means no limit.
func (m *MongoSource) Find(ctx context.Context, database, collection string, filter any, limit int64) ([]bson.M, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.logger.Debug("find", "database", database, "collection", collection, "limit", limit)

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := m.collection(database, collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find on %s.%s: %w", database, collection, err)
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading find results: %w", err)
	}
	return docs, nil
}

// ListDatabaseNames lists every database on the deployment.
func (m *MongoSource) ListDatabaseNames(ctx context.Context) ([]string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.ListDatabaseNames(ctx, bson.D{})
}

// ListCollectionNames lists the collections in database.
func (m *MongoSource) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Database(database).ListCollectionNames(ctx, bson.D{})
}

// Ping checks that a primary is reachable.
func (m *MongoSource) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from the deployment.
func (m *MongoSource) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
