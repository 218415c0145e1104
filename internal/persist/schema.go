package persist

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collLiquidations = "liquidations"
	collSubscribers  = "subscribers"
	collState        = "sim_state"
)

// EnsureIndexes creates idempotent indexes on all collections, per spec.md
// §4.2: liquidations indexed by (symbol asc, time desc), subscribers unique
// on chatId.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	type idx struct {
		collection string
		model      mongo.IndexModel
	}

	indexes := []idx{
		{
			collection: collLiquidations,
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "symbol", Value: 1},
					{Key: "time", Value: -1},
				},
			},
		},
		{
			collection: collSubscribers,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "chat_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: collState,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for _, i := range indexes {
		_, err := db.Collection(i.collection).Indexes().CreateOne(ctx, i.model)
		if err != nil {
			return fmt.Errorf("create index on %s: %w", i.collection, err)
		}
	}

	log.Println("MongoDB indexes ensured")
	return nil
}
