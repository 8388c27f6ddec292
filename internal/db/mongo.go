package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	readingsCollection = "readings"
	namespaceExists    = 48
)

type MongoTimeSeriesStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	location   *time.Location
}

func NewMongoConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// NewMongoTimeSeriesStore prepares the readings collection. Timestamps read
// back are expressed in loc so day bucketing follows the server's calendar.
func NewMongoTimeSeriesStore(ctx context.Context, client *mongo.Client, database string, loc *time.Location) (*MongoTimeSeriesStore, error) {
	if loc == nil {
		loc = time.Local
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db := client.Database(database)

	tsOptions := options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField("timestamp").
			SetMetaField("subjectId").
			SetGranularity("minutes"),
	)

	if err := db.CreateCollection(ctx, readingsCollection, tsOptions); err != nil && !isNamespaceExists(err) {
		return nil, fmt.Errorf("create %s collection: %w", readingsCollection, err)
	}
	collection := db.Collection(readingsCollection)

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "subjectId", Value: 1},
				{Key: "timestamp", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "sourceId", Value: 1},
				{Key: "timestamp", Value: 1},
			},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return nil, fmt.Errorf("create %s indexes: %w", readingsCollection, err)
	}

	return &MongoTimeSeriesStore{
		client:     client,
		db:         db,
		collection: collection,
		location:   loc,
	}, nil
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == namespaceExists
}

func (m *MongoTimeSeriesStore) Database() *mongo.Database {
	return m.db
}

func (m *MongoTimeSeriesStore) InsertBatch(ctx context.Context, data []domain.Reading) error {
	if len(data) == 0 {
		return nil
	}

	docs := make([]any, len(data))
	for i, d := range data {
		docs[i] = d
	}

	opts := options.InsertMany().SetOrdered(false)
	if _, err := m.collection.InsertMany(ctx, docs, opts); err != nil {
		return fmt.Errorf("insert %d readings: %w", len(data), err)
	}
	return nil
}

// Readings returns the subject's readings inside window, oldest first.
func (m *MongoTimeSeriesStore) Readings(ctx context.Context, subjectID string, window domain.Window) ([]domain.Reading, error) {
	cursor, err := m.collection.Find(ctx, readingsFilter(subjectID, window),
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find readings: %w", err)
	}
	defer cursor.Close(ctx)

	results := []domain.Reading{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}

	inLocation(results, m.location)
	return results, nil
}

// inLocation rewrites decoded timestamps, which the driver returns in UTC,
// into loc so calendar-day keys match the server's windows.
func inLocation(readings []domain.Reading, loc *time.Location) {
	for i := range readings {
		readings[i].Timestamp = readings[i].Timestamp.In(loc)
		readings[i].ReceivedAt = readings[i].ReceivedAt.In(loc)
	}
}

func readingsFilter(subjectID string, window domain.Window) bson.M {
	endOp := "$lt"
	if window.EndInclusive {
		endOp = "$lte"
	}
	return bson.M{
		"subjectId": subjectID,
		"timestamp": bson.M{
			"$gte": window.Start,
			endOp:  window.End,
		},
	}
}

func (m *MongoTimeSeriesStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
