package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go_wabot/internal/whatsapp/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBotConfigRepository 机器人配置数据访问层（MongoDB 实现）
type MongoBotConfigRepository struct {
	collection *mongo.Collection
}

// NewMongoBotConfigRepository 创建配置 Repository
func NewMongoBotConfigRepository(db *mongo.Database) BotConfigRepository {
	return &MongoBotConfigRepository{
		collection: db.Collection("bot_configs"),
	}
}

// Create 创建配置
func (r *MongoBotConfigRepository) Create(ctx context.Context, cfg *models.BotConfig) error {
	if _, err := r.collection.InsertOne(ctx, cfg); err != nil {
		return fmt.Errorf("failed to create bot config: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取配置
func (r *MongoBotConfigRepository) GetByID(ctx context.Context, id string) (*models.BotConfig, error) {
	var cfg models.BotConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: id=%s", ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("failed to get bot config: %w", err)
	}
	return &cfg, nil
}

// GetAll 按创建时间倒序列出全部配置
func (r *MongoBotConfigRepository) GetAll(ctx context.Context) ([]*models.BotConfig, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bot configs: %w", err)
	}
	defer cursor.Close(ctx)

	configs := make([]*models.BotConfig, 0)
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode bot configs: %w", err)
	}
	return configs, nil
}

// GetActiveConfig 返回激活的配置，没有时返回 (nil, nil)
func (r *MongoBotConfigRepository) GetActiveConfig(ctx context.Context) (*models.BotConfig, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var cfg models.BotConfig
	err := r.collection.FindOne(ctx, bson.M{"is_active": true}, opts).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active bot config: %w", err)
	}
	return &cfg, nil
}

// SetActive 激活指定配置并停用其余配置
func (r *MongoBotConfigRepository) SetActive(ctx context.Context, id string) error {
	now := time.Now()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to activate bot config: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: id=%s", ErrConfigNotFound, id)
	}

	_, err = r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": id}, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate other bot configs: %w", err)
	}
	return nil
}

// DeleteAll 删除全部配置
func (r *MongoBotConfigRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bot configs: %w", err)
	}
	return result.DeletedCount, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoBotConfigRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes for bot_configs: %w", err)
	}
	return nil
}
