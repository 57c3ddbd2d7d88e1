package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
)

// ListFilter narrows document queries. Zero values mean "any".
type ListFilter struct {
	Company constants.Company
	Status  constants.ProcessingStatus
	Year    int
	Limit   int64
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Document, error)
	ListReprocessable(ctx context.Context, company constants.Company, limit int) ([]*entity.Document, error)
	SetStatus(ctx context.Context, id string, status constants.ProcessingStatus, errorMessage string) error
	SetExternalTask(ctx context.Context, id, taskID string) error
	SaveAnalysis(ctx context.Context, id string, analysis []byte) error
}

type documentRepo struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

func NewDocumentRepository(db *mongo.Database, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{coll: db.Collection("documents"), logger: logger}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		r.logger.Error("document create failed", "document_id", doc.ID, "company", doc.Company, "error", err)
		return fmt.Errorf("insert document: %w", err)
	}
	r.logger.Info("document created", "document_id", doc.ID, "company", doc.Company, "status", doc.ProcessingStatus)
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	var doc entity.Document
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("document %s not found", id)
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, filter ListFilter) ([]*entity.Document, error) {
	q := bson.M{}
	if filter.Company != "" {
		q["company"] = filter.Company
	}
	if filter.Status != "" {
		q["processing_status"] = filter.Status
	}
	if filter.Year != 0 {
		q["year"] = filter.Year
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*entity.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) ListReprocessable(ctx context.Context, company constants.Company, limit int) ([]*entity.Document, error) {
	q := bson.M{"processing_status": bson.M{"$in": constants.ReprocessableStatuses}}
	if company != "" {
		q["company"] = company
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("list reprocessable documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*entity.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reprocessable documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) SetStatus(ctx context.Context, id string, status constants.ProcessingStatus, errorMessage string) error {
	set := bson.M{
		"processing_status": status,
		"updated_at":        time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	} else {
		update["$unset"] = bson.M{"error_message": ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		r.logger.Error("document status update failed", "document_id", id, "status", status, "error", err)
		return fmt.Errorf("update document status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	if status == constants.StatusFailed {
		r.logger.Warn("document marked failed", "document_id", id, "error_message", errorMessage)
	} else {
		r.logger.Info("document status updated", "document_id", id, "status", status)
	}
	return nil
}

func (r *documentRepo) SetExternalTask(ctx context.Context, id, taskID string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"external_task_id": taskID,
		"updated_at":       time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set external task: %w", err)
	}
	return nil
}

func (r *documentRepo) SaveAnalysis(ctx context.Context, id string, analysis []byte) error {
	// prior extractions are overwritten; there is no versioning
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"analysis_result":   analysis,
			"processing_status": constants.StatusCompleted,
			"updated_at":        time.Now().UTC(),
		},
		"$unset": bson.M{"error_message": ""},
	})
	if err != nil {
		r.logger.Error("analysis save failed", "document_id", id, "error", err)
		return fmt.Errorf("save analysis: %w", err)
	}
	r.logger.Info("analysis saved", "document_id", id, "bytes", len(analysis))
	return nil
}
