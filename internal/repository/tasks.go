package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
)

type TaskRepository interface {
	GetActive(ctx context.Context, company constants.Company) (*entity.ManusTask, error)
	// ClaimActive atomically records taskID as the company's active task
	// unless another non-failed task already exists, in which case the
	// existing one is returned. Replaces the read-then-create pattern that
	// could race duplicate tasks under concurrent uploads.
	ClaimActive(ctx context.Context, company constants.Company, taskID string) (*entity.ManusTask, error)
	MarkFailed(ctx context.Context, id string) error
}

type taskRepo struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

func NewTaskRepository(db *mongo.Database, logger *slog.Logger) TaskRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskRepo{coll: db.Collection("manus_tasks"), logger: logger}
}

func (r *taskRepo) GetActive(ctx context.Context, company constants.Company) (*entity.ManusTask, error) {
	var task entity.ManusTask
	err := r.coll.FindOne(ctx, bson.M{
		"company": company,
		"status":  bson.M{"$ne": entity.TaskStatusFailed},
	}).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("get active task for %s: %w", company, err)
	}
	return &task, nil
}

func (r *taskRepo) ClaimActive(ctx context.Context, company constants.Company, taskID string) (*entity.ManusTask, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"company": company,
		"status":  bson.M{"$ne": entity.TaskStatusFailed},
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        uuid.New().String(),
			"company":    company,
			"task_id":    taskID,
			"status":     entity.TaskStatusActive,
			"created_at": now,
		},
		"$set": bson.M{"updated_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var task entity.ManusTask
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&task); err != nil {
		r.logger.Error("task claim failed", "company", company, "task_id", taskID, "error", err)
		return nil, fmt.Errorf("claim active task for %s: %w", company, err)
	}

	if task.TaskID != taskID {
		// lost the race; the remote task we created goes unused
		r.logger.Warn("task claim lost race, reusing existing task",
			"company", company, "claimed_task_id", taskID, "existing_task_id", task.TaskID)
	} else {
		r.logger.Info("task claimed", "company", company, "task_id", taskID)
	}
	return &task, nil
}

func (r *taskRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     entity.TaskStatusFailed,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return nil
}
