package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timmy/stash/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&Config{APIKey: "sk-test", BaseURL: srv.URL})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/files" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("purpose"); got != PurposeAssistants {
			t.Errorf("purpose = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "hello" || hdr.Filename != "doc.txt" {
			t.Errorf("uploaded %q as %q", data, hdr.Filename)
		}
		writeJSON(w, http.StatusOK, File{ID: "file-1", Filename: hdr.Filename, Bytes: 5})
	})

	file, err := c.UploadFile(context.Background(), path, PurposeAssistants)
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if file.ID != "file-1" {
		t.Errorf("ID = %q, want file-1", file.ID)
	}
}

func TestVectorStoreLifecycleEndpoints(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/vector_stores":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, VectorStore{ID: "vs_1", Name: body["name"]})
		case r.Method == http.MethodPost && r.URL.Path == "/vector_stores/vs_1/files":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, VectorStoreFile{ID: body["file_id"], Status: FileStatusInProgress})
		case r.Method == http.MethodGet && r.URL.Path == "/vector_stores/vs_1/files/file-1":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":         "file-1",
				"status":     "failed",
				"last_error": map[string]string{"code": "invalid_file", "message": "bad format"},
			})
		case r.Method == http.MethodDelete:
			writeJSON(w, http.StatusOK, deleted{ID: "x", Deleted: true})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	store, err := c.CreateVectorStore(ctx, "temp_vs_doc")
	if err != nil {
		t.Fatalf("CreateVectorStore: %v", err)
	}
	if store.Name != "temp_vs_doc" {
		t.Errorf("Name = %q", store.Name)
	}
	added, err := c.AddVectorStoreFile(ctx, "vs_1", "file-1")
	if err != nil {
		t.Fatalf("AddVectorStoreFile: %v", err)
	}
	if added.Status != FileStatusInProgress {
		t.Errorf("Status = %q", added.Status)
	}
	got, err := c.GetVectorStoreFile(ctx, "vs_1", "file-1")
	if err != nil {
		t.Fatalf("GetVectorStoreFile: %v", err)
	}
	if got.Status != FileStatusFailed || got.LastError == nil || got.LastError.Message != "bad format" {
		t.Errorf("got %+v", got)
	}
	if err := c.DeleteVectorStore(ctx, "vs_1"); err != nil {
		t.Errorf("DeleteVectorStore: %v", err)
	}
	if err := c.DeleteFile(ctx, "file-1"); err != nil {
		t.Errorf("DeleteFile: %v", err)
	}

	want := []string{
		"POST /vector_stores",
		"POST /vector_stores/vs_1/files",
		"GET /vector_stores/vs_1/files/file-1",
		"DELETE /vector_stores/vs_1",
		"DELETE /files/file-1",
	}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestCreateResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Tools) != 1 || req.Tools[0].Type != ToolFileSearch {
			t.Errorf("request = %+v", req)
		}
		if len(req.Tools[0].VectorStoreIDs) != 1 || req.Tools[0].VectorStoreIDs[0] != "vs_1" {
			t.Errorf("vector_store_ids = %v", req.Tools[0].VectorStoreIDs)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"resp_1","model":"gpt-4o-mini","status":"completed","output":[
			{"type":"file_search_call","id":"fs_1","status":"completed","queries":["q"]},
			{"type":"message","id":"m","role":"assistant","content":[{"type":"output_text","text":"done"}]}
		]}`)
	})

	resp, err := c.CreateResponse(context.Background(), &ResponseRequest{
		Model: "gpt-4o-mini",
		Input: "Summarize",
		Tools: []Tool{{Type: ToolFileSearch, VectorStoreIDs: []string{"vs_1"}}},
	})
	if err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	if resp.OutputText() != "done" {
		t.Errorf("OutputText() = %q", resp.OutputText())
	}
	if _, ok := resp.Output[0].(*domain.FileSearchCallItem); !ok {
		t.Errorf("Output[0] is %T", resp.Output[0])
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
		wantMessage   string
	}{
		{name: "rate limited", status: 429, body: `{"error":{"message":"slow down","type":"rate_limit"}}`, wantTransient: true, wantMessage: "slow down"},
		{name: "server error", status: 503, body: `{"error":{"message":"overloaded"}}`, wantTransient: true, wantMessage: "overloaded"},
		{name: "not found", status: 404, body: `{"error":{"message":"no such vector store","type":"invalid_request_error"}}`, wantTransient: false, wantMessage: "no such vector store"},
		{name: "bad request plain body", status: 400, body: `nope`, wantTransient: false, wantMessage: "nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(tc.body, "{") {
					w.Header().Set("Content-Type", "application/json")
				}
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			_, err := c.GetVectorStoreFile(context.Background(), "vs", "f")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tc.status)
			}
			if apiErr.Transient() != tc.wantTransient {
				t.Errorf("Transient() = %v, want %v", apiErr.Transient(), tc.wantTransient)
			}
			if !strings.Contains(apiErr.Message, tc.wantMessage) {
				t.Errorf("Message = %q, want containing %q", apiErr.Message, tc.wantMessage)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(&Config{APIKey: "sk", BaseURL: srv.URL})
	_, err := c.CreateVectorStore(context.Background(), "x")
	if !IsTransient(err) {
		t.Fatalf("IsTransient(%v) = false, want true", err)
	}
}

func TestClientTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
		writeJSON(w, http.StatusOK, VectorStoreFile{Status: FileStatusCompleted})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(&Config{APIKey: "sk", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.GetVectorStoreFile(context.Background(), "vs", "f")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Errorf("IsTransient(%v) = false, want true for a client timeout", err)
	}
}

func TestCreateResponse_MalformedOutputItem(t *testing.T) {
	body := `{"id":"r","status":"completed","output":[{"type":"message","content":"oops"}]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	})

	_, err := c.CreateResponse(context.Background(), &ResponseRequest{Model: "m", Input: "q"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !strings.HasPrefix(apiErr.Message, "decode response: ") {
		t.Errorf("Message = %q, want decode error", apiErr.Message)
	}
	if strings.Contains(apiErr.Message, body) {
		t.Errorf("Message carries the raw body: %q", apiErr.Message)
	}
	if apiErr.Err == nil || apiErr.Transient() {
		t.Errorf("Err = %v, Transient() = %v", apiErr.Err, apiErr.Transient())
	}
}

func TestCanceledContextIsNotTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VectorStore{ID: "vs"})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreateVectorStore(ctx, "x")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if IsTransient(err) {
		t.Errorf("IsTransient(%v) = true for canceled context", err)
	}
}

func TestFileStatusTerminal(t *testing.T) {
	for status, want := range map[FileStatus]bool{
		FileStatusInProgress: false,
		"pending":            false,
		FileStatusCompleted:  true,
		FileStatusFailed:     true,
		FileStatusCancelled:  true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
