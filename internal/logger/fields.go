package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRunID identifies one harvester or extractor run (UUID).
	FieldRunID = "run_id"

	// FieldJobID identifies one job inside a run (UUID).
	FieldJobID = "job_id"

	// FieldJobIndex is the 1-based position of the job in its job list.
	FieldJobIndex = "job_index"

	// FieldJobType is the job type (web, file).
	FieldJobType = "job_type"

	// FieldComponent is the component/module name.
	FieldComponent = "component"

	// FieldRequestID is the HTTP request ID on the history API.
	FieldRequestID = "request_id"

	// FieldVectorStoreID is the remote vector store bound to a file job.
	FieldVectorStoreID = "vector_store_id"

	// FieldFileID is the remote uploaded file bound to a file job.
	FieldFileID = "file_id"
)

// Metric fields, attached through the Entry API.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
