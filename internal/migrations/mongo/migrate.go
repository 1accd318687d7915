package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kayak/internal/flights/repository"
	"kayak/internal/migrations/mongo/validators"
	"kayak/pkg/logger"
)

var FlightsIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "flightId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("flightId_unique"),
	},
	{Keys: bson.D{
		{Key: "departureAirport.code", Value: 1},
		{Key: "arrivalAirport.code", Value: 1},
		{Key: "departureDateTime", Value: 1},
	}},
	{Keys: bson.D{{Key: "departureDateTime", Value: 1}, {Key: "_id", Value: 1}}},
	{Keys: bson.D{{Key: "ticketPrice", Value: 1}, {Key: "_id", Value: 1}}},
	{Keys: bson.D{{Key: "flightClass", Value: 1}, {Key: "availableSeats", Value: 1}}},
}

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	collections := map[string]collectionDef{
		repository.CollectionName: {
			Indexes:   FlightsIndexes,
			Validator: validators.FlightValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
