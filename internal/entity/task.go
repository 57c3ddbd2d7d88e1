package entity

import (
	"time"

	"github.com/murphyws/finance-portal/constants"
)

// ManusTask tracks the long-lived external task the portal streams a
// company's documents into. One non-failed task per company at a time.
type ManusTask struct {
	ID        string            `bson:"_id" json:"id"`
	Company   constants.Company `bson:"company" json:"company"`
	TaskID    string            `bson:"task_id" json:"taskId"`
	Status    string            `bson:"status" json:"status"` // active | failed
	CreatedAt time.Time         `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updatedAt"`
}

const (
	TaskStatusActive = "active"
	TaskStatusFailed = "failed"
)
