package domain

import "strings"

// JobType selects which remote operation a harvest job dispatches.
type JobType string

const (
	JobTypeWeb  JobType = "web"
	JobTypeFile JobType = "file"
)

// Job is one entry of a harvest job list. Jobs are immutable once loaded.
type Job struct {
	Type     JobType `yaml:"type" json:"type"`
	Query    string  `yaml:"query" json:"query"`
	Out      string  `yaml:"out" json:"out"`
	Model    string  `yaml:"model,omitempty" json:"model,omitempty"`
	FilePath string  `yaml:"file_path,omitempty" json:"file_path,omitempty"`

	// Malformed is set by the loader when the entry could not be decoded.
	Malformed string `yaml:"-" json:"-"`
}

// NormalizedType returns the job type lower-cased and trimmed.
func (j Job) NormalizedType() JobType {
	return JobType(strings.ToLower(strings.TrimSpace(string(j.Type))))
}

// Description returns a short human label for progress logs.
func (j Job) Description() string {
	switch {
	case j.Query != "":
		return j.Query
	case j.FilePath != "":
		return j.FilePath
	case j.Out != "":
		return j.Out
	default:
		return "unknown"
	}
}

// JobStatus is the per-job state: pending -> dispatching -> succeeded | failed.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDispatching JobStatus = "dispatching"
	JobStatusSucceeded   JobStatus = "succeeded"
	JobStatusFailed      JobStatus = "failed"
)

// Result is the record persisted for every successful job.
type Result struct {
	Query            string      `json:"query"`
	Created          string      `json:"created"`
	Model            string      `json:"model"`
	VectorStoreID    string      `json:"vector_store_id,omitempty"`
	OutputText       string      `json:"output_text"`
	OutputStructured OutputItems `json:"output_structured"`
}
