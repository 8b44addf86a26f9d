package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoBotConfigRepositoryGetActiveConfig(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("active present", func(mt *mtest.T) {
		repo := &MongoBotConfigRepository{collection: mt.Coll}
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			botConfigNamespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "cfg-1"},
				{Key: "name", Value: "Bot Padrão"},
				{Key: "greeting_message", Value: "Olá!"},
				{Key: "form_fields", Value: bson.A{
					bson.D{{Key: "id", Value: "name"}, {Key: "type", Value: "text"}, {Key: "label", Value: "Nome"}, {Key: "required", Value: true}},
				}},
				{Key: "target_group_id", Value: "120363@g.us"},
				{Key: "is_active", Value: true},
				{Key: "created_at", Value: now},
				{Key: "updated_at", Value: now},
			},
		))

		cfg, err := repo.GetActiveConfig(context.Background())
		if err != nil {
			t.Fatalf("GetActiveConfig failed: %v", err)
		}
		if cfg == nil || cfg.ID != "cfg-1" || !cfg.HasTargetGroup() {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if len(cfg.FormFields) != 1 || !cfg.FormFields[0].Required {
			t.Fatalf("unexpected form fields: %+v", cfg.FormFields)
		}
	})

	mt.Run("none active", func(mt *mtest.T) {
		repo := &MongoBotConfigRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, botConfigNamespace(mt), mtest.FirstBatch))

		cfg, err := repo.GetActiveConfig(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg != nil {
			t.Fatalf("expected nil config, got %+v", cfg)
		}
	})

	mt.Run("query error", func(mt *mtest.T) {
		repo := &MongoBotConfigRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		if _, err := repo.GetActiveConfig(context.Background()); err == nil {
			t.Fatalf("expected error but got nil")
		}
	})
}

func TestMongoBotConfigRepositorySetActive(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoBotConfigRepository{collection: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}),
		)

		if err := repo.SetActive(context.Background(), "cfg-2"); err != nil {
			t.Fatalf("SetActive failed: %v", err)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := &MongoBotConfigRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.SetActive(context.Background(), "missing")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func botConfigNamespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}
