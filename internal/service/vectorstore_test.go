package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/timmy/stash/internal/openai"
)

const testInterval = 5 * time.Second

func newTestManager(api *fakeAPI, sleeper *fakeSleeper) *VectorStoreManager {
	return NewVectorStoreManager(api, &VectorStoreConfig{
		PollInterval:       testInterval,
		ErrorBackoffFactor: 2,
		Sleep:              sleeper.Sleep,
		Now:                fixedNow,
	})
}

func TestVectorStoreName(t *testing.T) {
	got := VectorStoreName("/docs/my_document.pdf", fixedNow())
	if want := "temp_vs_my_document_20250102_030405"; got != want {
		t.Errorf("VectorStoreName() = %q, want %q", got, want)
	}
}

func TestAcquire_PollsUntilCompleted(t *testing.T) {
	api := &fakeAPI{polls: []pollStep{
		{status: openai.FileStatusInProgress},
		{status: "pending"},
		{status: openai.FileStatusCompleted},
	}}
	sleeper := &fakeSleeper{}
	m := newTestManager(api, sleeper)

	lease, err := m.Acquire(context.Background(), "/docs/my_document.pdf")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if lease.VectorStoreID != "vs_1" || lease.FileID != "file-1" {
		t.Errorf("lease = %+v", lease)
	}
	if got := api.count("poll"); got != 3 {
		t.Errorf("status checks = %d, want 3", got)
	}
	if lease.StatusChecks != 3 {
		t.Errorf("StatusChecks = %d, want 3", lease.StatusChecks)
	}
	if len(sleeper.slept) != 2 || sleeper.slept[0] != testInterval || sleeper.slept[1] != testInterval {
		t.Errorf("slept = %v, want two poll intervals", sleeper.slept)
	}
	if api.count("delete_store")+api.count("delete_file") != 0 {
		t.Errorf("unexpected cleanup on success: %v", api.calls)
	}
	if api.storeNames[0] != "temp_vs_my_document_20250102_030405" {
		t.Errorf("store name = %q", api.storeNames[0])
	}
}

func TestAcquire_FailedStatusCarriesRemoteMessage(t *testing.T) {
	api := &fakeAPI{polls: []pollStep{
		{status: openai.FileStatusInProgress},
		{status: openai.FileStatusFailed, message: "bad format"},
	}}
	m := newTestManager(api, &fakeSleeper{})

	_, err := m.Acquire(context.Background(), "doc.pdf")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bad format") {
		t.Errorf("error %q does not contain remote message", err)
	}
	var procErr *ProcessingFailedError
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %T, want *ProcessingFailedError in chain", err)
	}
	if ClassifyError(err) != ErrorClassRemoteAPI {
		t.Errorf("class = %q, want remote_api", ClassifyError(err))
	}

	cleanups := CleanupsOf(err)
	if len(cleanups) != 2 {
		t.Fatalf("cleanups = %v, want 2", cleanups)
	}
	for _, c := range cleanups {
		if !c.Succeeded() {
			t.Errorf("cleanup %s failed: %v", c.Target, c.Err)
		}
	}
	if api.count("delete_store") != 1 || api.count("delete_file") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
}

func TestAcquire_NeverStopsOnIntermediateStatus(t *testing.T) {
	steps := make([]pollStep, 0, 10)
	for i := 0; i < 9; i++ {
		steps = append(steps, pollStep{status: openai.FileStatusInProgress})
	}
	steps = append(steps, pollStep{status: openai.FileStatusCompleted})
	api := &fakeAPI{polls: steps}

	if _, err := newTestManager(api, &fakeSleeper{}).Acquire(context.Background(), "doc.pdf"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := api.count("poll"); got != 10 {
		t.Errorf("status checks = %d, want 10", got)
	}
}

func TestAcquire_RetriesTransientPollErrors(t *testing.T) {
	api := &fakeAPI{polls: []pollStep{
		{err: &openai.APIError{Op: "retrieve vector store file", StatusCode: 429, Message: "rate limited"}},
		{err: &openai.APIError{Op: "retrieve vector store file", StatusCode: 502, Message: "bad gateway"}},
		{status: openai.FileStatusCompleted},
	}}
	sleeper := &fakeSleeper{}

	lease, err := newTestManager(api, sleeper).Acquire(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if lease.StatusChecks != 3 {
		t.Errorf("StatusChecks = %d, want 3", lease.StatusChecks)
	}
	for _, d := range sleeper.slept {
		if d != 2*testInterval {
			t.Errorf("slept %s after transient error, want %s", d, 2*testInterval)
		}
	}
	if api.count("delete_store") != 0 {
		t.Errorf("unexpected cleanup: %v", api.calls)
	}
}

func TestAcquire_RetriesClientTimeout(t *testing.T) {
	timeout := &openai.APIError{
		Op:      "retrieve vector store file",
		Message: "context deadline exceeded (Client.Timeout exceeded while awaiting headers)",
		Err:     context.DeadlineExceeded,
	}
	api := &fakeAPI{polls: []pollStep{
		{err: timeout},
		{status: openai.FileStatusCompleted},
	}}
	sleeper := &fakeSleeper{}

	if _, err := newTestManager(api, sleeper).Acquire(context.Background(), "doc.pdf"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(sleeper.slept) != 1 || sleeper.slept[0] != 2*testInterval {
		t.Errorf("slept = %v, want one error backoff", sleeper.slept)
	}
	if api.count("delete_store") != 0 {
		t.Errorf("unexpected cleanup: %v", api.calls)
	}
}

func TestAcquire_CancelledStatusIsTerminal(t *testing.T) {
	api := &fakeAPI{polls: []pollStep{{status: openai.FileStatusCancelled}}}

	_, err := newTestManager(api, &fakeSleeper{}).Acquire(context.Background(), "doc.pdf")
	var procErr *ProcessingFailedError
	if !errors.As(err, &procErr) || procErr.Status != openai.FileStatusCancelled {
		t.Fatalf("err = %v, want cancelled ProcessingFailedError", err)
	}
	if api.count("poll") != 1 || api.count("delete_store") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
}

func TestAcquire_NonTransientPollErrorCleansUp(t *testing.T) {
	pollErr := &openai.APIError{Op: "retrieve vector store file", StatusCode: 404, Message: "not found"}
	api := &fakeAPI{polls: []pollStep{{err: pollErr}}}

	_, err := newTestManager(api, &fakeSleeper{}).Acquire(context.Background(), "doc.pdf")
	var acqErr *AcquireError
	if !errors.As(err, &acqErr) || acqErr.Stage != StagePoll {
		t.Fatalf("err = %v, want poll-stage AcquireError", err)
	}
	if !errors.Is(err, pollErr) {
		t.Errorf("primary error not preserved: %v", err)
	}
	if api.count("delete_store") != 1 || api.count("delete_file") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
}

func TestAcquire_UploadFailureAbortsWithoutCleanup(t *testing.T) {
	uploadErr := &openai.APIError{Op: "upload file", StatusCode: 400, Message: "unsupported"}
	api := &fakeAPI{uploadErr: uploadErr}

	_, err := newTestManager(api, &fakeSleeper{}).Acquire(context.Background(), "doc.pdf")
	if !errors.Is(err, uploadErr) {
		t.Fatalf("err = %v, want upload error", err)
	}
	if strings.Join(api.calls, ",") != "upload" {
		t.Errorf("calls = %v, want only upload", api.calls)
	}
	if len(CleanupsOf(err)) != 0 {
		t.Errorf("cleanups = %v, want none", CleanupsOf(err))
	}
}

func TestAcquire_CreateFailureDeletesFileAndSwallowsCleanupError(t *testing.T) {
	createErr := &openai.APIError{Op: "create vector store", StatusCode: 400, Message: "quota"}
	api := &fakeAPI{createErr: createErr, deleteFileErr: errors.New("delete refused")}

	_, err := newTestManager(api, &fakeSleeper{}).Acquire(context.Background(), "doc.pdf")
	if !errors.Is(err, createErr) {
		t.Fatalf("err = %v, want create error", err)
	}
	if strings.Contains(err.Error(), "delete refused") {
		t.Errorf("cleanup error leaked into primary error: %v", err)
	}
	if got := strings.Join(api.calls, ","); got != "upload,create_store,delete_file" {
		t.Errorf("calls = %s", got)
	}
	cleanups := CleanupsOf(err)
	if len(cleanups) != 1 || cleanups[0].Target != CleanupFile || cleanups[0].Succeeded() {
		t.Errorf("cleanups = %v, want one failed file cleanup", cleanups)
	}
}

func TestAcquire_AddFailureDeletesBothIndependently(t *testing.T) {
	addErr := &openai.APIError{Op: "add vector store file", StatusCode: 400, Message: "bad file"}
	api := &fakeAPI{addErr: addErr, deleteStoreErr: errors.New("store delete failed")}

	_, err := newTestManager(api, &fakeSleeper{}).Acquire(context.Background(), "doc.pdf")
	if !errors.Is(err, addErr) {
		t.Fatalf("err = %v, want add error", err)
	}
	if got := strings.Join(api.calls, ","); got != "upload,create_store,add_file,delete_store,delete_file" {
		t.Errorf("calls = %s", got)
	}
	cleanups := CleanupsOf(err)
	if len(cleanups) != 2 {
		t.Fatalf("cleanups = %v", cleanups)
	}
	if cleanups[0].Succeeded() {
		t.Error("vector store cleanup should report failure")
	}
	if !cleanups[1].Succeeded() {
		t.Error("file cleanup should succeed despite store cleanup failure")
	}
}

func TestAcquire_CancelDuringPollStillCleansUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{polls: []pollStep{{status: openai.FileStatusInProgress}}}
	sleeper := &fakeSleeper{cancel: cancel}

	_, err := newTestManager(api, sleeper).Acquire(ctx, "doc.pdf")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if api.count("delete_store") != 1 || api.count("delete_file") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
}

func TestRelease_AttemptsBothDeletions(t *testing.T) {
	api := &fakeAPI{deleteStoreErr: errors.New("gone")}
	m := newTestManager(api, &fakeSleeper{})

	outcomes := m.Release(context.Background(), &VectorStoreLease{VectorStoreID: "vs_1", FileID: "file-1"})
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %v", outcomes)
	}
	if outcomes[0].Target != CleanupVectorStore || outcomes[0].Succeeded() {
		t.Errorf("outcomes[0] = %v", outcomes[0])
	}
	if outcomes[1].Target != CleanupFile || !outcomes[1].Succeeded() {
		t.Errorf("outcomes[1] = %v", outcomes[1])
	}
	if m.Release(context.Background(), nil) != nil {
		t.Error("Release(nil) should be a no-op")
	}
}

func TestNewVectorStoreManager_Defaults(t *testing.T) {
	m := NewVectorStoreManager(&fakeAPI{}, nil)
	if m.pollInterval != 5*time.Second {
		t.Errorf("pollInterval = %s", m.pollInterval)
	}
	if m.errorBackoff != 10*time.Second {
		t.Errorf("errorBackoff = %s", m.errorBackoff)
	}
}
