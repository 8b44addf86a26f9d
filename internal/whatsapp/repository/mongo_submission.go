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

// MongoSubmissionRepository 提交记录数据访问层（MongoDB 实现）
type MongoSubmissionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubmissionRepository 创建提交记录 Repository
func NewMongoSubmissionRepository(db *mongo.Database) SubmissionRepository {
	return &MongoSubmissionRepository{
		collection: db.Collection("form_submissions"),
	}
}

// Create 保存新的提交记录
func (r *MongoSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if _, err := r.collection.InsertOne(ctx, submission); err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取提交记录
func (r *MongoSubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	var submission models.Submission
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: id=%s", ErrSubmissionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

// GetAll 按提交时间倒序列出所有记录
func (r *MongoSubmissionRepository) GetAll(ctx context.Context) ([]*models.Submission, error) {
	return r.find(ctx, bson.M{})
}

// GetByConfigID 列出某个配置产生的记录
func (r *MongoSubmissionRepository) GetByConfigID(ctx context.Context, configID string) ([]*models.Submission, error) {
	return r.find(ctx, bson.M{"config_id": configID})
}

// GetByFrom 列出某个发送者的记录
func (r *MongoSubmissionRepository) GetByFrom(ctx context.Context, from string) ([]*models.Submission, error) {
	return r.find(ctx, bson.M{"from": from})
}

func (r *MongoSubmissionRepository) find(ctx context.Context, filter bson.M) ([]*models.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer cursor.Close(ctx)

	submissions := make([]*models.Submission, 0)
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}
	return submissions, nil
}

// UpdateForwardOutcome 记录转发成功
func (r *MongoSubmissionRepository) UpdateForwardOutcome(ctx context.Context, id string, forwardedAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"forwarded_to_group": true,
			"forwarded_at":       forwardedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update forward outcome: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: id=%s", ErrSubmissionNotFound, id)
	}
	return nil
}

// DeleteAll 删除全部记录
func (r *MongoSubmissionRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete submissions: %w", err)
	}
	return result.DeletedCount, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoSubmissionRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "config_id", Value: 1}}},
		{Keys: bson.D{{Key: "submitted_at", Value: -1}}},
		{Keys: bson.D{{Key: "from", Value: 1}}},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes for form_submissions: %w", err)
	}
	return nil
}
