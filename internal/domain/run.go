package domain

import "time"

// RunStatus represents the state of one harvest run.
type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusAborted             RunStatus = "aborted"
)

// HarvestRun is the ledger row for one invocation of the harvester.
type HarvestRun struct {
	ID            string       `gorm:"type:text;primaryKey" json:"id"`
	JobsFile      string       `gorm:"type:text" json:"jobs_file"`
	OutputDir     string       `gorm:"type:text" json:"output_dir"`
	Status        RunStatus    `gorm:"type:text;default:running;index" json:"status"`
	TotalJobs     int          `gorm:"default:0" json:"total_jobs"`
	SucceededJobs int          `gorm:"default:0" json:"succeeded_jobs"`
	FailedJobs    int          `gorm:"default:0" json:"failed_jobs"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	Jobs          []HarvestJob `gorm:"foreignKey:RunID" json:"jobs,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName returns the database table name for HarvestRun.
func (HarvestRun) TableName() string {
	return "harvest_runs"
}

// HarvestJob is the ledger row for one job outcome inside a run.
type HarvestJob struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	RunID         string     `gorm:"type:text;not null;index" json:"run_id"`
	JobIndex      int        `gorm:"not null" json:"job_index"`
	Type          JobType    `gorm:"type:text" json:"type"`
	Query         string     `gorm:"type:text" json:"query"`
	OutPath       string     `gorm:"type:text" json:"out_path,omitempty"`
	Model         string     `gorm:"type:text" json:"model,omitempty"`
	VectorStoreID string     `gorm:"type:text" json:"vector_store_id,omitempty"`
	Status        JobStatus  `gorm:"type:text;default:pending" json:"status"`
	ErrorClass    string     `gorm:"type:text" json:"error_class,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	DurationMs    int64      `json:"duration_ms"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for HarvestJob.
func (HarvestJob) TableName() string {
	return "harvest_jobs"
}
