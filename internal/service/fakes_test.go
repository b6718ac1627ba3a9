package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/timmy/stash/internal/domain"
	"github.com/timmy/stash/internal/openai"
)

// pollStep is one scripted answer to GetVectorStoreFile.
type pollStep struct {
	status  openai.FileStatus
	message string
	err     error
}

// fakeAPI scripts the remote API and records every call in order.
type fakeAPI struct {
	mu sync.Mutex

	calls []string

	uploadErr      error
	createErr      error
	addErr         error
	polls          []pollStep
	deleteStoreErr error
	deleteFileErr  error

	response    *openai.Response
	responseErr error
	requests    []*openai.ResponseRequest

	storeNames []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) UploadFile(ctx context.Context, path, purpose string) (*openai.File, error) {
	f.record("upload")
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &openai.File{ID: "file-1", Purpose: purpose}, nil
}

func (f *fakeAPI) DeleteFile(ctx context.Context, fileID string) error {
	f.record("delete_file")
	return f.deleteFileErr
}

func (f *fakeAPI) CreateVectorStore(ctx context.Context, name string) (*openai.VectorStore, error) {
	f.record("create_store")
	f.storeNames = append(f.storeNames, name)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &openai.VectorStore{ID: "vs_1", Name: name}, nil
}

func (f *fakeAPI) DeleteVectorStore(ctx context.Context, storeID string) error {
	f.record("delete_store")
	return f.deleteStoreErr
}

func (f *fakeAPI) AddVectorStoreFile(ctx context.Context, storeID, fileID string) (*openai.VectorStoreFile, error) {
	f.record("add_file")
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &openai.VectorStoreFile{ID: fileID, VectorStoreID: storeID, Status: openai.FileStatusInProgress}, nil
}

func (f *fakeAPI) GetVectorStoreFile(ctx context.Context, storeID, fileID string) (*openai.VectorStoreFile, error) {
	f.record("poll")
	f.mu.Lock()
	if len(f.polls) == 0 {
		f.mu.Unlock()
		return &openai.VectorStoreFile{ID: fileID, Status: openai.FileStatusCompleted}, nil
	}
	step := f.polls[0]
	f.polls = f.polls[1:]
	f.mu.Unlock()

	if step.err != nil {
		return nil, step.err
	}
	vsFile := &openai.VectorStoreFile{ID: fileID, VectorStoreID: storeID, Status: step.status}
	if step.message != "" {
		vsFile.LastError = &openai.LastError{Code: "server_error", Message: step.message}
	}
	return vsFile, nil
}

func (f *fakeAPI) CreateResponse(ctx context.Context, req *openai.ResponseRequest) (*openai.Response, error) {
	f.record("response")
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.responseErr != nil {
		return nil, f.responseErr
	}
	if f.response != nil {
		return f.response, nil
	}
	return &openai.Response{
		ID:     "resp_1",
		Status: "completed",
		Output: domain.OutputItems{
			&domain.MessageItem{
				Type: domain.OutputTypeMessage,
				ID:   "msg_1",
				Role: "assistant",
				Content: []domain.MessageContent{
					{Type: "output_text", Text: "answer for " + req.Input},
				},
			},
		},
	}, nil
}

// fakeSleeper records requested sleeps without blocking.
type fakeSleeper struct {
	mu     sync.Mutex
	slept  []time.Duration
	cancel context.CancelFunc // optional: cancel on first sleep
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return ctx.Err()
}

func fixedNow() time.Time {
	return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
}

// fakeRecorder captures ledger writes.
type fakeRecorder struct {
	started  []*domain.HarvestRun
	jobs     []*domain.HarvestJob
	finished []*domain.HarvestRun
	err      error
}

func (r *fakeRecorder) StartRun(ctx context.Context, run *domain.HarvestRun) error {
	r.started = append(r.started, run)
	return r.err
}

func (r *fakeRecorder) RecordJob(ctx context.Context, job *domain.HarvestJob) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

func (r *fakeRecorder) FinishRun(ctx context.Context, run *domain.HarvestRun) error {
	r.finished = append(r.finished, run)
	return r.err
}

// fakeStorage is an in-memory storage.ObjectStorage.
type fakeStorage struct {
	objects   map[string][]byte
	uploadErr error
}

func (s *fakeStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) GetURL(key string) string { return "mem://" + key }

// panicSink panics on every write.
type panicSink struct{}

func (panicSink) Write(ctx context.Context, out string, result *domain.Result) (string, error) {
	panic("disk on fire")
}
