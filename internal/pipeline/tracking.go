package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"geo-cluster-pipeline/internal/metrics"
	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
)

// RunRecorder persists run progress. *store.Store satisfies it.
type RunRecorder interface {
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, message string) error
	SetBestK(ctx context.Context, id string, k int) error
	SaveStageProgress(ctx context.Context, runID string, m model.StageMetrics) error
	SaveRunError(ctx context.Context, d model.ErrorDetail) error
	AppendLog(ctx context.Context, e model.LogEntry) error
}

// Tracker follows one run through its stages and fans progress out to the
// recorder, the metrics and the logger. Recorder and metrics may be nil.
type Tracker struct {
	run      *model.RunTracker
	recorder RunRecorder
	metrics  *metrics.Metrics
	logger   logging.Logger
}

func NewTracker(runID string, recorder RunRecorder, m *metrics.Metrics, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Tracker{
		run: &model.RunTracker{
			RunID:        runID,
			StartTime:    time.Now(),
			Status:       model.StatusPending,
			StageMetrics: make(map[string]model.StageMetrics),
		},
		recorder: recorder,
		metrics:  m,
		logger:   logger.With(logging.String("run_id", runID)),
	}
}

// StartStage moves the run into status and opens the matching stage.
func (t *Tracker) StartStage(ctx context.Context, status model.RunStatus) {
	stage := string(status)
	m := model.StageMetrics{StageName: stage, StartTime: time.Now(), Status: "running"}

	t.run.Mutex.Lock()
	t.run.Status = status
	t.run.StageMetrics[stage] = m
	t.run.Mutex.Unlock()

	t.logger.Info("stage started", logging.String("stage", stage))
	t.persist(func(r RunRecorder) error { return r.UpdateRunStatus(ctx, t.run.RunID, status, "") })
	t.persist(func(r RunRecorder) error { return r.SaveStageProgress(ctx, t.run.RunID, m) })
	t.Log(ctx, "info", stage, "stage started")
}

// EndStage closes the current stage with the number of records it handled.
func (t *Tracker) EndStage(ctx context.Context, status model.RunStatus, records int) {
	m := t.closeStage(status, records, "completed", "")
	t.metrics.ObserveStage(m.StageName, m.Duration)
	t.logger.Info("stage completed",
		logging.String("stage", m.StageName),
		logging.Int("records", records),
		logging.Duration("elapsed", m.Duration),
	)
	t.persist(func(r RunRecorder) error { return r.SaveStageProgress(ctx, t.run.RunID, m) })
}

// Warn records a recoverable problem: logged, persisted as a log line and
// as a run error, without failing the run.
func (t *Tracker) Warn(ctx context.Context, status model.RunStatus, err error) {
	stage := string(status)
	t.logger.Warn("stage warning", logging.String("stage", stage), logging.Err(err))
	t.recordError(ctx, stage, err)
	t.Log(ctx, "warn", stage, err.Error())
}

// Fail closes the current stage as failed and marks the run failed.
func (t *Tracker) Fail(ctx context.Context, status model.RunStatus, err error) {
	// Record the failure even when ctx was the cause.
	ctx = context.WithoutCancel(ctx)
	stage := string(status)
	code := string(apperrors.CodeOf(err))
	m := t.closeStage(status, 0, "failed", err.Error())

	t.run.Mutex.Lock()
	t.run.Status = model.StatusFailed
	t.run.EndTime = time.Now()
	t.run.Mutex.Unlock()

	t.metrics.IncrementStageFailure(stage, code)
	t.metrics.IncrementRun(string(model.StatusFailed))
	t.logger.Error("stage failed", logging.String("stage", stage), logging.String("code", code), logging.Err(err))

	t.recordError(ctx, stage, err)
	t.persist(func(r RunRecorder) error { return r.SaveStageProgress(ctx, t.run.RunID, m) })
	t.persist(func(r RunRecorder) error {
		return r.UpdateRunStatus(ctx, t.run.RunID, model.StatusFailed, err.Error())
	})
	t.Log(ctx, "error", stage, err.Error())
}

// Complete marks the run completed with its chosen k.
func (t *Tracker) Complete(ctx context.Context, k int) {
	t.run.Mutex.Lock()
	t.run.Status = model.StatusCompleted
	t.run.EndTime = time.Now()
	elapsed := t.run.EndTime.Sub(t.run.StartTime)
	t.run.Mutex.Unlock()

	t.metrics.IncrementRun(string(model.StatusCompleted))
	t.metrics.SetBestK(k)
	t.logger.Info("run completed", logging.Int("k", k), logging.Duration("elapsed", elapsed))

	t.persist(func(r RunRecorder) error { return r.SetBestK(ctx, t.run.RunID, k) })
	t.persist(func(r RunRecorder) error {
		return r.UpdateRunStatus(ctx, t.run.RunID, model.StatusCompleted, "")
	})
	t.Log(ctx, "info", "", "run completed")
}

// Log persists one log line for the run.
func (t *Tracker) Log(ctx context.Context, level, stage, message string) {
	t.persist(func(r RunRecorder) error {
		return r.AppendLog(ctx, model.LogEntry{
			RunID: t.run.RunID, Level: level, Stage: stage, Message: message, Timestamp: time.Now().UTC(),
		})
	})
}

// Status returns the current run status.
func (t *Tracker) Status() model.RunStatus {
	t.run.Mutex.RLock()
	defer t.run.Mutex.RUnlock()
	return t.run.Status
}

// Stages returns stage metrics ordered by start time.
func (t *Tracker) Stages() []model.StageMetrics {
	t.run.Mutex.RLock()
	defer t.run.Mutex.RUnlock()
	out := make([]model.StageMetrics, 0, len(t.run.StageMetrics))
	for _, m := range t.run.StageMetrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Errors returns the errors recorded so far.
func (t *Tracker) Errors() []model.ErrorDetail {
	t.run.Mutex.RLock()
	defer t.run.Mutex.RUnlock()
	return append([]model.ErrorDetail(nil), t.run.Errors...)
}

func (t *Tracker) closeStage(status model.RunStatus, records int, state, message string) model.StageMetrics {
	stage := string(status)
	t.run.Mutex.Lock()
	defer t.run.Mutex.Unlock()

	m, ok := t.run.StageMetrics[stage]
	if !ok {
		m = model.StageMetrics{StageName: stage, StartTime: time.Now()}
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.RecordsProcessed = int64(records)
	m.Status = state
	m.Error = message
	t.run.StageMetrics[stage] = m
	return m
}

func (t *Tracker) recordError(ctx context.Context, stage string, err error) {
	d := model.ErrorDetail{
		ID:        uuid.NewString(),
		RunID:     t.run.RunID,
		Stage:     stage,
		Code:      string(apperrors.CodeOf(err)),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
	t.run.Mutex.Lock()
	t.run.Errors = append(t.run.Errors, d)
	t.run.Mutex.Unlock()
	t.persist(func(r RunRecorder) error { return r.SaveRunError(ctx, d) })
}

// persist runs fn against the recorder. Recorder failures are logged and
// never fail the run.
func (t *Tracker) persist(fn func(RunRecorder) error) {
	if t.recorder == nil {
		return
	}
	if err := fn(t.recorder); err != nil {
		t.logger.Warn("failed to persist run progress", logging.Err(err))
	}
}
