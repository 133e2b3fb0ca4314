package dbquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xkayo32/pytake-flow/flow"
)

// MongoBackend ejecuta finds contra MongoDB. La "query" del nodo es un
// documento JSON:
//
//	{"database": "shop", "collection": "orders", "filter": {"status": "$1"}, "limit": 20}
//
// Los valores string "$1", "$2"... del filter se sustituyen por los
// parámetros posicionales del nodo, igual que los placeholders SQL.
type MongoBackend struct {
	mu      sync.Mutex
	clients map[string]*mongo.Client
}

var _ flow.DatabaseBackend = (*MongoBackend)(nil)

func NewMongoBackend() *MongoBackend {
	return &MongoBackend{clients: make(map[string]*mongo.Client)}
}

func (b *MongoBackend) Type() string {
	return "mongodb"
}

type mongoQuery struct {
	Database   string         `json:"database"`
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
	Sort       map[string]any `json:"sort,omitempty"`
	Limit      int64          `json:"limit,omitempty"`
}

func (b *MongoBackend) Query(ctx context.Context, connectionString, query string, params []any) ([]map[string]any, error) {
	var q mongoQuery
	if err := json.Unmarshal([]byte(query), &q); err != nil {
		return nil, fmt.Errorf("mongodb query must be a JSON document: %w", err)
	}
	if q.Database == "" || q.Collection == "" {
		return nil, fmt.Errorf("mongodb query requires database and collection")
	}

	client, err := b.client(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	filter := bindParams(q.Filter, params)
	if filter == nil {
		filter = map[string]any{}
	}

	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if len(q.Sort) > 0 {
		sort := bson.D{}
		for field, dir := range q.Sort {
			sort = append(sort, bson.E{Key: field, Value: dir})
		}
		opts.SetSort(sort)
	}

	cursor, err := client.Database(q.Database).Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []map[string]any
	for cursor.Next(ctx) {
		row := map[string]any{}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// bindParams replaces "$N" string placeholders in the filter with the
// positional params, recursively through nested documents and arrays.
func bindParams(value any, params []any) any {
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, "$") {
			if idx, err := strconv.Atoi(v[1:]); err == nil && idx >= 1 && idx <= len(params) {
				return params[idx-1]
			}
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = bindParams(inner, params)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = bindParams(inner, params)
		}
		return out
	default:
		return v
	}
}

func (b *MongoBackend) client(ctx context.Context, connectionString string) (*mongo.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if client, ok := b.clients[connectionString]; ok {
		return client, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, err
	}

	b.clients[connectionString] = client
	return client, nil
}

// Close disconnects every cached client, for graceful shutdown.
func (b *MongoBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for key, client := range b.clients {
		if err := client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.clients, key)
	}
	return firstErr
}
