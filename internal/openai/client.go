package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds connection settings for the API client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Files, Vector Stores and Responses endpoints.
// It never retries; callers decide what is worth repeating.
type Client struct {
	client *resty.Client
}

// NewClient creates a new API client.
// Parameters:
//   - cfg: API key, base URL (defaults to api.openai.com) and request timeout.
//
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{client: client}
}

// UploadFile uploads a local file with the given purpose.
func (c *Client) UploadFile(ctx context.Context, path, purpose string) (*File, error) {
	var file File
	req := c.client.R().
		SetFile("file", path).
		SetFormData(map[string]string{"purpose": purpose}).
		SetResult(&file)
	if _, err := c.do(ctx, "upload file", req, http.MethodPost, "/files"); err != nil {
		return nil, err
	}
	if file.ID == "" {
		return nil, &APIError{Op: "upload file", Message: "response has no file id"}
	}
	return &file, nil
}

// DeleteFile deletes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	var out deleted
	req := c.client.R().SetResult(&out)
	_, err := c.do(ctx, "delete file", req, http.MethodDelete, "/files/"+url.PathEscape(fileID))
	return err
}

// CreateVectorStore creates an empty vector store with the given name.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (*VectorStore, error) {
	var store VectorStore
	req := c.client.R().
		SetBody(map[string]string{"name": name}).
		SetResult(&store)
	if _, err := c.do(ctx, "create vector store", req, http.MethodPost, "/vector_stores"); err != nil {
		return nil, err
	}
	if store.ID == "" {
		return nil, &APIError{Op: "create vector store", Message: "response has no vector store id"}
	}
	return &store, nil
}

// DeleteVectorStore deletes a vector store. Files attached to it are not deleted.
func (c *Client) DeleteVectorStore(ctx context.Context, storeID string) error {
	var out deleted
	req := c.client.R().SetResult(&out)
	_, err := c.do(ctx, "delete vector store", req, http.MethodDelete, "/vector_stores/"+url.PathEscape(storeID))
	return err
}

// AddVectorStoreFile attaches an uploaded file to a vector store.
func (c *Client) AddVectorStoreFile(ctx context.Context, storeID, fileID string) (*VectorStoreFile, error) {
	var vsFile VectorStoreFile
	req := c.client.R().
		SetBody(map[string]string{"file_id": fileID}).
		SetResult(&vsFile)
	path := fmt.Sprintf("/vector_stores/%s/files", url.PathEscape(storeID))
	if _, err := c.do(ctx, "add vector store file", req, http.MethodPost, path); err != nil {
		return nil, err
	}
	return &vsFile, nil
}

// GetVectorStoreFile returns the processing state of a file inside a vector store.
func (c *Client) GetVectorStoreFile(ctx context.Context, storeID, fileID string) (*VectorStoreFile, error) {
	var vsFile VectorStoreFile
	req := c.client.R().SetResult(&vsFile)
	path := fmt.Sprintf("/vector_stores/%s/files/%s", url.PathEscape(storeID), url.PathEscape(fileID))
	if _, err := c.do(ctx, "retrieve vector store file", req, http.MethodGet, path); err != nil {
		return nil, err
	}
	return &vsFile, nil
}

// CreateResponse sends one Responses API request and returns the decoded response.
func (c *Client) CreateResponse(ctx context.Context, body *ResponseRequest) (*Response, error) {
	var resp Response
	req := c.client.R().
		SetBody(body).
		SetResult(&resp)
	if _, err := c.do(ctx, "create response", req, http.MethodPost, "/responses"); err != nil {
		return nil, err
	}
	if resp.Status == "failed" || resp.Error != nil {
		msg := "response failed"
		apiErr := &APIError{Op: "create response", StatusCode: http.StatusOK, Message: msg}
		if resp.Error != nil {
			apiErr.Message = resp.Error.Message
			apiErr.Type = resp.Error.Type
			apiErr.Code = resp.Error.Code
		}
		return nil, apiErr
	}
	return &resp, nil
}

// do executes req and converts transport failures and non-2xx statuses into *APIError.
func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) (*resty.Response, error) {
	var envelope errorEnvelope
	req.SetContext(ctx).SetError(&envelope)

	resp, err := req.Execute(method, path)
	if err != nil {
		if resp != nil && resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
			return nil, &APIError{Op: op, StatusCode: resp.StatusCode(), Message: "decode response: " + err.Error(), Err: err}
		}
		if resp != nil && resp.StatusCode() != 0 {
			return nil, statusError(op, resp, &envelope)
		}
		return nil, &APIError{Op: op, Message: err.Error(), Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, statusError(op, resp, &envelope)
	}
	return resp, nil
}

func statusError(op string, resp *resty.Response, envelope *errorEnvelope) *APIError {
	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode()}
	if envelope.Error != nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
		return apiErr
	}
	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	apiErr.Message = body
	return apiErr
}
