package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// snapshotDoc keeps the payload as JSON text so every stage shares one schema.
type snapshotDoc struct {
	Stage     string    `bson:"stage"`
	Version   string    `bson:"version"`
	RunID     string    `bson:"run_id,omitempty"`
	Count     int       `bson:"count"`
	Payload   string    `bson:"payload"`
	CreatedAt time.Time `bson:"created_at"`
}

type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
	runID  string
	now    func() time.Time
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoConfig, runID string) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(cfg.DBName).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "stage", Value: 1}, {Key: "version", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint index: %w", err)
	}

	return &MongoRepository{
		client: client,
		coll:   coll,
		runID:  runID,
		now:    time.Now,
	}, nil
}

func (m *MongoRepository) Write(ctx context.Context, stage Stage, items any) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s snapshot: %w", stage, err)
	}
	var count []json.RawMessage
	_ = json.Unmarshal(data, &count)

	now := m.now()
	doc := snapshotDoc{
		Stage:     string(stage),
		Version:   NewVersion(now),
		RunID:     m.runID,
		Count:     len(count),
		Payload:   string(data),
		CreatedAt: now,
	}

	if !stage.Versioned() {
		doc.Version = ""
		_, err = m.coll.ReplaceOne(ctx, bson.M{"stage": doc.Stage, "version": ""}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return "", fmt.Errorf("failed to replace %s snapshot: %w", stage, err)
		}
		return "", nil
	}

	base := doc.Version
	for n := 2; n <= maxCollisions; n++ {
		_, err = m.coll.InsertOne(ctx, doc)
		if err == nil {
			return doc.Version, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("failed to insert %s snapshot: %w", stage, err)
		}
		doc.Version = collisionVersion(base, n)
	}
	return "", fmt.Errorf("failed to insert %s snapshot: too many snapshots at %s", stage, base)
}

func (m *MongoRepository) Latest(ctx context.Context, stage Stage, out any) (string, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var doc snapshotDoc
	err := m.coll.FindOne(ctx, bson.M{"stage": string(stage)}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("%w for stage %s", ErrNoCheckpoint, stage)
	}
	if err != nil {
		return "", fmt.Errorf("failed to find %s snapshot: %w", stage, err)
	}
	if err = json.Unmarshal([]byte(doc.Payload), out); err != nil {
		return "", fmt.Errorf("failed to decode %s snapshot %s: %w", stage, doc.Version, err)
	}
	return doc.Version, nil
}

func (m *MongoRepository) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}
