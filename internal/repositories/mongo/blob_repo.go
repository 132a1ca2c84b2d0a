package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoockh/yoochat/internal/utils"
)

const BlobCollection = "chat_blobs"

type blobDoc struct {
	Key       string    `bson:"key"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type BlobRepository struct {
	col *mongo.Collection
}

func NewBlobRepo(db *mongo.Database) *BlobRepository {
	return &BlobRepository{col: db.Collection(BlobCollection)}
}

func (r *BlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var doc blobDoc
	err := r.col.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (r *BlobRepository) Put(ctx context.Context, key string, data []byte) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{
			"data":       data,
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}
