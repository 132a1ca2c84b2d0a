package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yoockh/yoochat/internal/utils"
)

type Blob struct {
	Key       string         `gorm:"column:key;type:text;primaryKey"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamptz"`
}

func (Blob) TableName() string { return "chat_blobs" }

type BlobRepository struct {
	db *gorm.DB
}

// NewBlobRepo migrates the chat_blobs table and returns a repository over it.
func NewBlobRepo(db *gorm.DB) (*BlobRepository, error) {
	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, err
	}
	return &BlobRepository{db: db}, nil
}

func (r *BlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var row Blob
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Data), nil
}

func (r *BlobRepository) Put(ctx context.Context, key string, data []byte) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&Blob{Key: key, Data: datatypes.JSON(data), UpdatedAt: time.Now().UTC()}).Error
}
