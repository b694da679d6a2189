package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements the same Store contract over a MongoDB collection.
// Similarity ranking runs client-side over the namespace's vectors, which is
// adequate for per-user memory scopes; prefer PostgresStore for large corpora.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	index      *IndexConfig
	log        zerolog.Logger
}

type mongoDoc struct {
	Namespace string    `bson:"namespace"`
	Key       string    `bson:"key"`
	Value     Document  `bson:"value"`
	Embedding []float32 `bson:"embedding,omitempty"`
}

func NewMongoStore(ctx context.Context, uri, database, collection string, index *IndexConfig, log zerolog.Logger) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		collection = "memory_store"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		index:      index,
		log:        log,
	}, nil
}

// EnsureSchema creates the unique (namespace, key) index.
func (ms *MongoStore) EnsureSchema(ctx context.Context) error {
	_, err := ms.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create mongo index: %w", err)
	}
	return nil
}

func (ms *MongoStore) Get(ctx context.Context, ns Namespace, key string) (Document, error) {
	var doc mongoDoc
	err := ms.collection.FindOne(ctx, bson.M{"namespace": ns.Key(), "key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		ms.log.Warn().Err(err).Str("namespace", ns.Key()).Str("key", key).Msg("get degraded to absent")
		return nil, nil
	}
	return doc.Value, nil
}

func (ms *MongoStore) Put(ctx context.Context, ns Namespace, key string, value Document) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	embedding, err := ms.index.embedValue(ctx, value)
	if err != nil {
		return "", err
	}
	doc := mongoDoc{Namespace: ns.Key(), Key: key, Value: value, Embedding: embedding}
	_, err = ms.collection.ReplaceOne(ctx,
		bson.M{"namespace": ns.Key(), "key": key},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", ns.Key(), key, err)
	}
	return key, nil
}

func (ms *MongoStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if _, err := ms.collection.DeleteOne(ctx, bson.M{"namespace": ns.Key(), "key": key}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", ns.Key(), key, err)
	}
	return nil
}

// Batch applies ops in caller order. MongoDB standalone deployments have no
// multi-document transactions, so a mid-batch failure leaves earlier writes
// applied; the error still aborts the remainder.
func (ms *MongoStore) Batch(ctx context.Context, ops []Op) ([]Document, error) {
	results := make([]Document, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpGet:
			var doc mongoDoc
			err := ms.collection.FindOne(ctx, bson.M{"namespace": op.Namespace.Key(), "key": op.Key}).Decode(&doc)
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("batch get %s/%s: %w", op.Namespace.Key(), op.Key, err)
			}
			results[i] = doc.Value
		case OpPut:
			if _, err := ms.Put(ctx, op.Namespace, op.Key, op.Value); err != nil {
				return nil, err
			}
		case OpDelete:
			if err := ms.Delete(ctx, op.Namespace, op.Key); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown batch op kind %d", op.Kind)
		}
	}
	return results, nil
}

func (ms *MongoStore) Search(ctx context.Context, ns Namespace, query string, limit int) ([]SearchResult, error) {
	if ms.index == nil || ms.index.Embedder == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	queryEmbedding, err := ms.index.embedQuery(ctx, query)
	if err != nil {
		ms.log.Warn().Err(err).Msg("query embedding failed; search degraded to empty")
		return nil, nil
	}

	cur, err := ms.collection.Find(ctx, bson.M{
		"namespace": ns.Key(),
		"embedding": bson.M{"$exists": true, "$ne": nil},
	})
	if err != nil {
		ms.log.Warn().Err(err).Str("namespace", ns.Key()).Msg("search degraded to empty")
		return nil, nil
	}
	defer cur.Close(ctx)

	var results []SearchResult
	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			ms.log.Warn().Err(err).Msg("malformed stored value skipped")
			continue
		}
		if len(doc.Embedding) == 0 {
			continue
		}
		results = append(results, SearchResult{
			Key:      doc.Key,
			Value:    doc.Value,
			Distance: cosineDistance(queryEmbedding, doc.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (ms *MongoStore) Clear(ctx context.Context, ns Namespace) error {
	filter := bson.M{}
	if !ns.IsZero() {
		filter["namespace"] = ns.Key()
	}
	if _, err := ms.collection.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

func (ms *MongoStore) Close() {
	if ms == nil || ms.client == nil {
		return
	}
	_ = ms.client.Disconnect(context.Background())
}
