package service

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/timmy/stash/internal/openai"
)

var (
	// ErrInvalidJob marks a job descriptor that cannot be dispatched.
	ErrInvalidJob = errors.New("invalid job")
	// ErrInputFileNotFound marks a file job whose local file does not exist.
	ErrInputFileNotFound = errors.New("input file not found")
)

// ErrorClass buckets job failures for logs, stats and the run ledger.
type ErrorClass string

const (
	ErrorClassNone       ErrorClass = ""
	ErrorClassConfig     ErrorClass = "config"
	ErrorClassLocalIO    ErrorClass = "local_io"
	ErrorClassRemoteAPI  ErrorClass = "remote_api"
	ErrorClassUnexpected ErrorClass = "unexpected"
)

// ClassifyError maps a job error onto its ErrorClass.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}

	var apiErr *openai.APIError
	var procErr *ProcessingFailedError
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, ErrInvalidJob):
		return ErrorClassConfig
	case errors.Is(err, ErrInputFileNotFound):
		return ErrorClassLocalIO
	case errors.As(err, &apiErr), errors.As(err, &procErr):
		return ErrorClassRemoteAPI
	case errors.As(err, &pathErr):
		return ErrorClassLocalIO
	default:
		return ErrorClassUnexpected
	}
}

func invalidJobf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidJob, fmt.Sprintf(format, args...))
}

// ProcessingFailedError is returned when a vector store file ends in a failed state.
type ProcessingFailedError struct {
	VectorStoreID string
	FileID        string
	Status        openai.FileStatus
	Code          string
	Message       string
}

func (e *ProcessingFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("file processing %s: %s", e.Status, msg)
}

// AcquireStage names the lifecycle step an acquisition failed in.
type AcquireStage string

const (
	StageUpload            AcquireStage = "upload"
	StageCreateVectorStore AcquireStage = "create_vector_store"
	StageAddFile           AcquireStage = "add_file"
	StagePoll              AcquireStage = "poll"
)

// AcquireError wraps the primary failure of a vector store acquisition together
// with the outcome of every cleanup attempted on the way out.
type AcquireError struct {
	Stage    AcquireStage
	Err      error
	Cleanups []CleanupOutcome
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("vector store %s: %v", strings.ReplaceAll(string(e.Stage), "_", " "), e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}
