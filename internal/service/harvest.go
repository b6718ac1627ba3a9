package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/stash/internal/domain"
	"github.com/timmy/stash/internal/logger"
)

// RunRecorder keeps a ledger of runs and job outcomes. Recording errors are
// logged by the caller and never fail a job.
type RunRecorder interface {
	StartRun(ctx context.Context, run *domain.HarvestRun) error
	RecordJob(ctx context.Context, job *domain.HarvestJob) error
	FinishRun(ctx context.Context, run *domain.HarvestRun) error
}

// HarvestService runs a job list sequentially: one job, one remote call and
// at most one live vector store at a time.
type HarvestService struct {
	dispatcher   *Dispatcher
	vectorStores *VectorStoreManager
	sink         ResultSink
	recorder     RunRecorder
	logger       *logger.Logger
	webModel     string
	fileModel    string
	pause        time.Duration
	sleep        SleepFunc
	now          func() time.Time
}

// HarvestConfig holds configuration for the harvest service.
type HarvestConfig struct {
	WebModel  string
	FileModel string
	// Pause is the courtesy sleep after every job.
	Pause time.Duration
	Sleep SleepFunc
	Now   func() time.Time
}

// NewHarvestService creates a new harvest service.
// Parameters:
//   - dispatcher: runs the remote queries.
//   - vectorStores: manages the transient vector store of file jobs.
//   - sink: persists result records.
//   - recorder: optional run ledger (nil disables it).
//   - log: base logger.
//   - cfg: models and pacing.
//
// Returns:
//   - *HarvestService: initialized service.
func NewHarvestService(
	dispatcher *Dispatcher,
	vectorStores *VectorStoreManager,
	sink ResultSink,
	recorder RunRecorder,
	log *logger.Logger,
	cfg *HarvestConfig,
) *HarvestService {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &HarvestService{
		dispatcher:   dispatcher,
		vectorStores: vectorStores,
		sink:         sink,
		recorder:     recorder,
		logger:       log,
		webModel:     cfg.WebModel,
		fileModel:    cfg.FileModel,
		pause:        cfg.Pause,
		sleep:        sleep,
		now:          now,
	}
}

func (s *HarvestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// HarvestStats holds statistics for one run.
type HarvestStats struct {
	RunID           string
	TotalJobs       int
	SucceededJobs   int
	FailedJobs      int
	FailuresByClass map[ErrorClass]int
	StartTime       time.Time
	EndTime         time.Time
}

// RunMeta describes where a run's jobs came from and where results go.
type RunMeta struct {
	JobsFile  string
	OutputDir string
}

// JobOutcome is the result of processing one job.
type JobOutcome struct {
	Job           domain.Job
	Status        domain.JobStatus
	OutPath       string
	Model         string
	VectorStoreID string
	Err           error
	ErrorClass    ErrorClass
	Cleanups      []CleanupOutcome
	Duration      time.Duration
}

// Run processes every job in order. A failing job is logged, counted and
// skipped; only cancellation of ctx stops the run early, in which case the
// partial stats are returned together with ctx.Err().
func (s *HarvestService) Run(ctx context.Context, jobs []domain.Job, meta RunMeta) (*HarvestStats, error) {
	stats := &HarvestStats{
		RunID:           uuid.New().String(),
		TotalJobs:       len(jobs),
		FailuresByClass: make(map[ErrorClass]int),
		StartTime:       s.now(),
	}
	ctx = logger.SetComponent(logger.SetRunID(ctx, stats.RunID), "harvest")

	run := &domain.HarvestRun{
		ID:        stats.RunID,
		JobsFile:  meta.JobsFile,
		OutputDir: meta.OutputDir,
		Status:    domain.RunStatusRunning,
		TotalJobs: len(jobs),
		StartedAt: stats.StartTime,
	}
	s.record(ctx, "start run", func(rctx context.Context) error { return s.recorder.StartRun(rctx, run) })

	s.log(ctx).WithFields(logger.Fields{
		"jobs_file": meta.JobsFile,
		"output":    meta.OutputDir,
		"total":     len(jobs),
	}).Infof("Running %d jobs", len(jobs))

	duplicates := duplicateOutputs(jobs)

	var runErr error
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		jobCtx := logger.SetJobID(logger.WithFields(ctx, logger.Fields{
			logger.FieldJobIndex: i + 1,
			logger.FieldJobType:  string(job.NormalizedType()),
		}), uuid.New().String())
		logger.CtxInfo(jobCtx, "[%d/%d] %s :: %s", i+1, len(jobs), strings.ToUpper(typeLabel(job)), job.Description())

		started := s.now()
		var outcome JobOutcome
		if first, ok := duplicates[i]; ok {
			outcome = rejectJob(job, invalidJobf("output %q is already written by job %d", job.Out, first+1))
		} else {
			outcome = s.ProcessJob(jobCtx, job)
		}
		s.recordJob(jobCtx, i+1, started, outcome)

		if outcome.Err != nil {
			stats.FailedJobs++
			stats.FailuresByClass[outcome.ErrorClass]++
			logJobFailure(jobCtx, i+1, outcome)
		} else {
			stats.SucceededJobs++
			logger.With(logger.Fields{
				logger.FieldDurationMs: outcome.Duration.Milliseconds(),
			}).WithStatus(string(outcome.Status)).Info(jobCtx, "Saved -> %s", outcome.OutPath)
		}

		if err := s.sleep(ctx, s.pause); err != nil {
			runErr = err
			break
		}
	}

	stats.EndTime = s.now()
	completed := stats.EndTime
	run.CompletedAt = &completed
	run.SucceededJobs = stats.SucceededJobs
	run.FailedJobs = stats.FailedJobs
	switch {
	case runErr != nil:
		run.Status = domain.RunStatusAborted
		logger.CtxError(ctx, "Run aborted after %d of %d jobs: %v",
			stats.SucceededJobs+stats.FailedJobs, stats.TotalJobs, runErr)
	case stats.FailedJobs > 0:
		run.Status = domain.RunStatusCompletedWithErrors
	default:
		run.Status = domain.RunStatusCompleted
	}
	s.record(ctx, "finish run", func(rctx context.Context) error { return s.recorder.FinishRun(rctx, run) })

	s.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalJobs,
		"succeeded": stats.SucceededJobs,
		"failed":    stats.FailedJobs,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Harvest completed")

	return stats, runErr
}

// ProcessJob dispatches a single job and writes its result. It never panics:
// a panic inside the job is converted into an unexpected-class failure.
func (s *HarvestService) ProcessJob(ctx context.Context, job domain.Job) (outcome JobOutcome) {
	start := s.now()
	outcome = JobOutcome{Job: job, Status: domain.JobStatusDispatching}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("panic while processing job: %v", r)
		}
		outcome.Duration = s.now().Sub(start)
		if outcome.Err != nil {
			outcome.Status = domain.JobStatusFailed
			outcome.ErrorClass = ClassifyError(outcome.Err)
			if len(outcome.Cleanups) == 0 {
				outcome.Cleanups = CleanupsOf(outcome.Err)
			}
			return
		}
		outcome.Status = domain.JobStatusSucceeded
	}()

	if err := validateJob(job); err != nil {
		outcome.Err = err
		return outcome
	}

	var result *domain.Result
	switch job.NormalizedType() {
	case domain.JobTypeWeb:
		outcome.Model = firstNonEmpty(job.Model, s.webModel)
		result, outcome.Err = s.dispatcher.WebSearch(ctx, job.Query, outcome.Model)

	case domain.JobTypeFile:
		outcome.Model = firstNonEmpty(job.Model, s.fileModel)
		result, outcome.Err = s.runFileJob(ctx, job, &outcome)
	}
	if outcome.Err != nil {
		return outcome
	}

	outcome.OutPath, outcome.Err = s.sink.Write(ctx, job.Out, result)
	return outcome
}

// runFileJob composes acquire -> scoped query -> release. Release runs on
// every path once a lease exists.
func (s *HarvestService) runFileJob(ctx context.Context, job domain.Job, outcome *JobOutcome) (*domain.Result, error) {
	path, err := expandHome(job.FilePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputFileNotFound, path)
		}
		return nil, fmt.Errorf("stat input file: %w", err)
	}
	if info.IsDir() {
		return nil, invalidJobf("file_path %q is a directory", path)
	}

	lease, err := s.vectorStores.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	outcome.VectorStoreID = lease.VectorStoreID
	defer func() {
		outcome.Cleanups = s.vectorStores.Release(ctx, lease)
	}()

	return s.dispatcher.FileSearch(ctx, job.Query, lease.VectorStoreID, outcome.Model)
}

// duplicateOutputs maps the index of every valid job whose output path was
// already claimed by an earlier valid job to the index of that earlier job.
func duplicateOutputs(jobs []domain.Job) map[int]int {
	claimed := make(map[string]int, len(jobs))
	duplicates := make(map[int]int)
	for i, job := range jobs {
		if validateJob(job) != nil {
			continue
		}
		out, _ := cleanOutPath(job.Out)
		if first, ok := claimed[out]; ok {
			duplicates[i] = first
			continue
		}
		claimed[out] = i
	}
	return duplicates
}

// rejectJob fails a job without dispatching it.
func rejectJob(job domain.Job, err error) JobOutcome {
	return JobOutcome{
		Job:        job,
		Status:     domain.JobStatusFailed,
		Err:        err,
		ErrorClass: ClassifyError(err),
	}
}

func validateJob(job domain.Job) error {
	if job.Malformed != "" {
		return invalidJobf("%s", job.Malformed)
	}
	switch job.NormalizedType() {
	case domain.JobTypeWeb, domain.JobTypeFile:
	case "":
		return invalidJobf("missing required field 'type'")
	default:
		return invalidJobf("unknown job type %q", job.Type)
	}
	if strings.TrimSpace(job.Query) == "" {
		return invalidJobf("missing required field 'query'")
	}
	if _, err := cleanOutPath(job.Out); err != nil {
		return err
	}
	if job.NormalizedType() == domain.JobTypeFile && strings.TrimSpace(job.FilePath) == "" {
		return invalidJobf("job type 'file' requires 'file_path'")
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (s *HarvestService) recordJob(ctx context.Context, index int, started time.Time, outcome JobOutcome) {
	completed := started.Add(outcome.Duration)
	row := &domain.HarvestJob{
		ID:            logger.GetJobID(ctx),
		RunID:         logger.GetRunID(ctx),
		JobIndex:      index,
		Type:          outcome.Job.NormalizedType(),
		Query:         outcome.Job.Query,
		OutPath:       outcome.OutPath,
		Model:         outcome.Model,
		VectorStoreID: outcome.VectorStoreID,
		Status:        outcome.Status,
		ErrorClass:    string(outcome.ErrorClass),
		DurationMs:    outcome.Duration.Milliseconds(),
		StartedAt:     started,
		CompletedAt:   &completed,
	}
	if outcome.Err != nil {
		row.ErrorMessage = outcome.Err.Error()
	}
	s.record(ctx, "record job", func(rctx context.Context) error { return s.recorder.RecordJob(rctx, row) })
}

// record calls fn against the ledger, if any, and downgrades failures to warnings.
func (s *HarvestService) record(ctx context.Context, what string, fn func(context.Context) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.log(ctx).WithError(err).Warnf("Run ledger: could not %s", what)
	}
}

func logJobFailure(ctx context.Context, index int, outcome JobOutcome) {
	log := logger.FromContext(ctx).WithError(outcome.Err).WithField("error_class", string(outcome.ErrorClass))
	switch outcome.ErrorClass {
	case ErrorClassLocalIO:
		log.Errorf("Job %d: input file error", index)
	case ErrorClassConfig:
		log.Errorf("Job %d: configuration error", index)
	case ErrorClassRemoteAPI:
		log.Errorf("Job %d: remote API error", index)
	default:
		log.Errorf("Job %d: unexpected error (%T)", index, outcome.Err)
	}
	for _, c := range outcome.Cleanups {
		if !c.Succeeded() {
			logger.CtxWarn(ctx, "Job %d: %s", index, c)
		}
	}
}

func typeLabel(job domain.Job) string {
	if t := job.NormalizedType(); t != "" {
		return string(t)
	}
	return "unknown"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
