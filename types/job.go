package types

import "time"

// JobType represents the type of archive job
type JobType string

const (
	JobTypeScan    JobType = "scan"
	JobTypeExtract JobType = "extract"
)

// JobStatus represents the current status of an archive job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ArchiveJob represents a queued scan or extraction job
type ArchiveJob struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	ArchivePath string     `json:"archivePath"`
	Entries     []string   `json:"entries,omitempty"`   // extract jobs only
	OutputDir   string     `json:"outputDir,omitempty"` // extract jobs only
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	UsedCache   bool       `json:"usedCache"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
