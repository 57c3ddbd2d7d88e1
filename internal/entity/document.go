package entity

import (
	"time"

	"github.com/murphyws/finance-portal/constants"
)

// Document is a persisted accounting-document record. The analysis result is
// stored as raw JSON bytes: the record store treats it as an opaque blob and
// only the pipeline and the reporting layer interpret it.
type Document struct {
	ID           string                 `bson:"_id" json:"id"`
	Company      constants.Company      `bson:"company" json:"company"`
	Month        string                 `bson:"month" json:"month"`
	Year         int                    `bson:"year" json:"year"`
	DocumentType constants.DocumentType `bson:"document_type" json:"documentType"`

	Filename    string `bson:"filename" json:"filename"`
	ContentType string `bson:"content_type" json:"contentType"`
	FileSize    int64  `bson:"file_size" json:"fileSize"`

	StorageType   constants.StorageType `bson:"storage_type" json:"storageType"`
	PrimaryHandle string                `bson:"primary_handle,omitempty" json:"primaryHandle,omitempty"`
	SecondaryPath string                `bson:"secondary_path,omitempty" json:"secondaryPath,omitempty"`
	SecondaryURL  string                `bson:"secondary_url,omitempty" json:"secondaryUrl,omitempty"`
	PublicURL     string                `bson:"public_url,omitempty" json:"publicUrl,omitempty"`

	ExternalTaskID string `bson:"external_task_id,omitempty" json:"externalTaskId,omitempty"`

	ProcessingStatus constants.ProcessingStatus `bson:"processing_status" json:"processingStatus"`
	AnalysisResult   []byte                     `bson:"analysis_result,omitempty" json:"-"`
	ErrorMessage     string                     `bson:"error_message,omitempty" json:"errorMessage,omitempty"`

	UploadedBy string    `bson:"uploaded_by" json:"uploadedBy"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasStorageReference reports whether at least one storage location is known.
func (d *Document) HasStorageReference() bool {
	return d.PrimaryHandle != "" || d.SecondaryPath != "" || d.SecondaryURL != ""
}
