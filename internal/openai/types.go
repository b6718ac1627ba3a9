package openai

import "github.com/timmy/stash/internal/domain"

// Purposes and tool types used by the harvester.
const (
	PurposeAssistants = "assistants"

	ToolWebSearchPreview = "web_search_preview"
	ToolFileSearch       = "file_search"
)

// FileStatus is the processing state of a file inside a vector store.
type FileStatus string

const (
	FileStatusInProgress FileStatus = "in_progress"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
	FileStatusCancelled  FileStatus = "cancelled"
)

// Terminal reports whether no further status transition will happen.
func (s FileStatus) Terminal() bool {
	switch s {
	case FileStatusCompleted, FileStatusFailed, FileStatusCancelled:
		return true
	default:
		return false
	}
}

// File is an uploaded file object.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

// VectorStore is a remote searchable container of files.
type VectorStore struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// VectorStoreFile is the membership record of one file in one vector store.
type VectorStoreFile struct {
	ID            string     `json:"id"`
	VectorStoreID string     `json:"vector_store_id"`
	Status        FileStatus `json:"status"`
	LastError     *LastError `json:"last_error"`
}

// LastError is the failure detail of a vector store file.
type LastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Tool enables a hosted tool on a response request.
type Tool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

// ResponseRequest is the body of POST /responses.
type ResponseRequest struct {
	Model   string   `json:"model"`
	Input   string   `json:"input"`
	Tools   []Tool   `json:"tools,omitempty"`
	Include []string `json:"include,omitempty"`
}

// Response is the subset of the Responses API object the harvester keeps.
type Response struct {
	ID     string             `json:"id"`
	Model  string             `json:"model"`
	Status string             `json:"status"`
	Output domain.OutputItems `json:"output"`
	Error  *apiErrorBody      `json:"error"`
}

// OutputText concatenates all output_text parts of the response.
func (r *Response) OutputText() string {
	return r.Output.Text()
}

type deleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
