package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/richd0tcom/heartline/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRegistry resolves device api keys and physician assignments. Both
// collections are owned by the account service; this side only reads.
type MongoRegistry struct {
	devices     *mongo.Collection
	assignments *mongo.Collection
}

func NewMongoRegistry(ctx context.Context, db *mongo.Database) (*MongoRegistry, error) {
	r := &MongoRegistry{
		devices:     db.Collection("devices"),
		assignments: db.Collection("assignments"),
	}

	_, err := r.devices.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "apiKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create devices index: %w", err)
	}

	_, err = r.assignments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "physicianId", Value: 1},
			{Key: "patientId", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create assignments index: %w", err)
	}

	return r, nil
}

func (r *MongoRegistry) DeviceByAPIKey(ctx context.Context, apiKey string) (domain.Device, error) {
	var device domain.Device
	if apiKey == "" {
		return device, domain.ErrNotFound
	}

	err := r.devices.FindOne(ctx, bson.M{"apiKey": apiKey}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return device, domain.ErrNotFound
	}
	if err != nil {
		return device, fmt.Errorf("find device: %w", err)
	}
	return device, nil
}

func (r *MongoRegistry) IsAssigned(ctx context.Context, physicianID, patientID string) (bool, error) {
	n, err := r.assignments.CountDocuments(ctx, bson.M{
		"physicianId": physicianID,
		"patientId":   patientID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count assignments: %w", err)
	}
	return n > 0, nil
}
