package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/stash/internal/logger"
	"github.com/timmy/stash/internal/openai"
)

// VectorStoreAPI is the part of the remote API the lifecycle manager drives.
// *openai.Client implements it.
type VectorStoreAPI interface {
	UploadFile(ctx context.Context, path, purpose string) (*openai.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateVectorStore(ctx context.Context, name string) (*openai.VectorStore, error)
	DeleteVectorStore(ctx context.Context, storeID string) error
	AddVectorStoreFile(ctx context.Context, storeID, fileID string) (*openai.VectorStoreFile, error)
	GetVectorStoreFile(ctx context.Context, storeID, fileID string) (*openai.VectorStoreFile, error)
}

// VectorStoreConfig holds the polling settings of a VectorStoreManager.
type VectorStoreConfig struct {
	// PollInterval is the delay between status checks.
	PollInterval time.Duration
	// ErrorBackoffFactor multiplies PollInterval after a transient polling error.
	ErrorBackoffFactor int
	// CleanupTimeout bounds each best-effort deletion. Defaults to 30s.
	CleanupTimeout time.Duration
	// Sleep and Now default to SleepContext and time.Now.
	Sleep SleepFunc
	Now   func() time.Time
}

// VectorStoreManager owns the transient vector store of one file job:
// upload, create, attach, poll until ready, and tear down.
type VectorStoreManager struct {
	api            VectorStoreAPI
	pollInterval   time.Duration
	errorBackoff   time.Duration
	cleanupTimeout time.Duration
	sleep          SleepFunc
	now            func() time.Time
}

// VectorStoreLease is a ready vector store holding exactly one uploaded file.
// Whoever holds the lease must pass it to Release.
type VectorStoreLease struct {
	VectorStoreID string
	FileID        string
	Name          string
	StatusChecks  int
}

// NewVectorStoreManager creates a new lifecycle manager.
// Parameters:
//   - api: remote API client.
//   - cfg: polling configuration; a non-positive PollInterval falls back to 5s.
//
// Returns:
//   - *VectorStoreManager: initialized manager.
func NewVectorStoreManager(api VectorStoreAPI, cfg *VectorStoreConfig) *VectorStoreManager {
	if cfg == nil {
		cfg = &VectorStoreConfig{}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	factor := cfg.ErrorBackoffFactor
	if factor < 1 {
		factor = 2
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &VectorStoreManager{
		api:            api,
		pollInterval:   interval,
		errorBackoff:   interval * time.Duration(factor),
		cleanupTimeout: cleanupTimeout,
		sleep:          sleep,
		now:            now,
	}
}

// VectorStoreName derives the unique name of the transient store for path.
func VectorStoreName(path string, at time.Time) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("temp_vs_%s_%s", stem, Timestamp(at))
}

// Acquire uploads path, creates a vector store, attaches the file and waits
// until the file is processed. On any failure every resource created so far
// is deleted (best effort) and an *AcquireError is returned.
func (m *VectorStoreManager) Acquire(ctx context.Context, path string) (*VectorStoreLease, error) {
	log := logger.FromContext(ctx)

	log.Infof("Uploading file: %s", filepath.Base(path))
	file, err := m.api.UploadFile(ctx, path, openai.PurposeAssistants)
	if err != nil {
		return nil, &AcquireError{Stage: StageUpload, Err: err}
	}
	ctx = logger.WithField(ctx, logger.FieldFileID, file.ID)
	logger.CtxInfo(ctx, "File uploaded")

	name := VectorStoreName(path, m.now())
	logger.CtxInfo(ctx, "Creating temporary vector store: %s", name)
	store, err := m.api.CreateVectorStore(ctx, name)
	if err != nil {
		cleanups := []CleanupOutcome{m.deleteFile(ctx, file.ID)}
		return nil, &AcquireError{Stage: StageCreateVectorStore, Err: err, Cleanups: cleanups}
	}
	ctx = logger.WithField(ctx, logger.FieldVectorStoreID, store.ID)
	logger.CtxInfo(ctx, "Vector store created")

	if _, err := m.api.AddVectorStoreFile(ctx, store.ID, file.ID); err != nil {
		return nil, &AcquireError{Stage: StageAddFile, Err: err, Cleanups: m.cleanup(ctx, store.ID, file.ID)}
	}

	lease := &VectorStoreLease{VectorStoreID: store.ID, FileID: file.ID, Name: name}
	if err := m.waitReady(ctx, lease); err != nil {
		return nil, &AcquireError{Stage: StagePoll, Err: err, Cleanups: m.cleanup(ctx, store.ID, file.ID)}
	}
	return lease, nil
}

// waitReady polls the file membership until it reaches a terminal state.
// Transient API errors are retried after the error backoff; there is no
// overall deadline besides ctx.
func (m *VectorStoreManager) waitReady(ctx context.Context, lease *VectorStoreLease) error {
	start := m.now()
	logger.CtxInfo(ctx, "Waiting for file processing in vector store")

	for {
		vsFile, err := m.api.GetVectorStoreFile(ctx, lease.VectorStoreID, lease.FileID)
		lease.StatusChecks++
		if err != nil {
			if ctx.Err() != nil || !openai.IsTransient(err) {
				return err
			}
			logger.FromContext(ctx).WithError(err).Warnf("API error while checking status, retrying in %s", m.errorBackoff)
			if err := m.sleep(ctx, m.errorBackoff); err != nil {
				return err
			}
			continue
		}

		if vsFile.Status == openai.FileStatusCompleted {
			logger.With(logger.Fields{
				logger.FieldDurationMs: m.now().Sub(start).Milliseconds(),
			}).WithCount(lease.StatusChecks).Info(ctx, "File processing completed")
			return nil
		}
		if vsFile.Status.Terminal() {
			procErr := &ProcessingFailedError{
				VectorStoreID: lease.VectorStoreID,
				FileID:        lease.FileID,
				Status:        vsFile.Status,
			}
			if vsFile.LastError != nil {
				procErr.Code = vsFile.LastError.Code
				procErr.Message = vsFile.LastError.Message
			}
			return procErr
		}

		logger.CtxDebug(ctx, "Processing... (status: %s, elapsed: %s)",
			vsFile.Status, m.now().Sub(start).Round(time.Second))
		if err := m.sleep(ctx, m.pollInterval); err != nil {
			return err
		}
	}
}

// Release deletes the leased vector store and its uploaded file. Both
// deletions are attempted independently; failures are logged and returned
// as outcomes only.
func (m *VectorStoreManager) Release(ctx context.Context, lease *VectorStoreLease) []CleanupOutcome {
	if lease == nil {
		return nil
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldVectorStoreID: lease.VectorStoreID,
		logger.FieldFileID:        lease.FileID,
	})
	logger.CtxInfo(ctx, "Cleaning up temporary vector store")
	return m.cleanup(ctx, lease.VectorStoreID, lease.FileID)
}

func (m *VectorStoreManager) cleanup(ctx context.Context, storeID, fileID string) []CleanupOutcome {
	return []CleanupOutcome{
		m.deleteVectorStore(ctx, storeID),
		m.deleteFile(ctx, fileID),
	}
}

func (m *VectorStoreManager) deleteVectorStore(ctx context.Context, storeID string) CleanupOutcome {
	cctx, cancel := m.cleanupContext(ctx)
	defer cancel()
	outcome := CleanupOutcome{Target: CleanupVectorStore, ID: storeID, Err: m.api.DeleteVectorStore(cctx, storeID)}
	logCleanup(ctx, outcome)
	return outcome
}

func (m *VectorStoreManager) deleteFile(ctx context.Context, fileID string) CleanupOutcome {
	cctx, cancel := m.cleanupContext(ctx)
	defer cancel()
	outcome := CleanupOutcome{Target: CleanupFile, ID: fileID, Err: m.api.DeleteFile(cctx, fileID)}
	logCleanup(ctx, outcome)
	return outcome
}

// cleanupContext survives cancellation of the job so an interrupted run
// still tears down what it created.
func (m *VectorStoreManager) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.cleanupTimeout)
}

func logCleanup(ctx context.Context, outcome CleanupOutcome) {
	if outcome.Succeeded() {
		logger.CtxDebug(ctx, "%s", outcome)
		return
	}
	logger.FromContext(ctx).WithError(outcome.Err).Warnf("Could not delete %s %s", outcome.Target, outcome.ID)
}

// CleanupsOf returns the cleanup outcomes carried by an acquisition error.
func CleanupsOf(err error) []CleanupOutcome {
	var acqErr *AcquireError
	if errors.As(err, &acqErr) {
		return acqErr.Cleanups
	}
	return nil
}
