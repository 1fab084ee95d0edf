package entity

import "time"

// UploadJob is the externally visible state of one ingestion run.
type UploadJob struct {
	ID            string    `json:"id"`
	Status        JobStatus `json:"status"`
	Progress      int       `json:"progress"`
	TotalRows     int64     `json:"totalRows"`
	ProcessedRows int64     `json:"processedRows"`
	Error         string    `json:"error,omitempty"`
	Overwrite     bool      `json:"overwrite"`
	FileName      string    `json:"fileName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	// FilePath is the staged temp file owned by the job.
	FilePath string `json:"-"`
}

// UploadConfig is the JSON sidecar sent with an upload.
//
// A nil FieldMapping value means the source column is ignored.
type UploadConfig struct {
	FieldMapping map[string]*string `json:"fieldMapping"`
	Overwrite    bool               `json:"overwrite"`
}

// StagedFile is an uploaded file copied to the temp directory.
type StagedFile struct {
	Path string
	Name string
	Size int64
}
