package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongorepo "github.com/yoockh/yoochat/internal/repositories/mongo"
)

func EnsureMongoIndexes() error {
	db, err := MongoDatabase()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	blobs := db.Collection(mongorepo.BlobCollection)
	_, err = blobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "key", Value: 1}},
			Options: options.Index().
				SetName("uniq_blob_key").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("by_updated"),
		},
	})
	return err
}
