package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

// memRecorder keeps everything a run reports in memory.
type memRecorder struct {
	mu       sync.Mutex
	statuses []model.RunStatus
	messages []string
	bestK    int
	stages   []model.StageMetrics
	errors   []model.ErrorDetail
	logs     []model.LogEntry
	failLogs bool
}

func (r *memRecorder) UpdateRunStatus(_ context.Context, _ string, status model.RunStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.messages = append(r.messages, message)
	return nil
}

func (r *memRecorder) SetBestK(_ context.Context, _ string, k int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bestK = k
	return nil
}

func (r *memRecorder) SaveStageProgress(_ context.Context, _ string, m model.StageMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, m)
	return nil
}

func (r *memRecorder) SaveRunError(_ context.Context, d model.ErrorDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, d)
	return nil
}

func (r *memRecorder) AppendLog(_ context.Context, e model.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failLogs {
		return errors.New("log sink unavailable")
	}
	r.logs = append(r.logs, e)
	return nil
}

func (r *memRecorder) lastStatus() model.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func sultraSpec(t *testing.T, misspelled string) model.RunSpec {
	t.Helper()
	dir := t.TempDir()
	return model.RunSpec{
		DataFile:     writeFile(t, dir, "sultra.csv", []byte(sultraCSV(misspelled))),
		GeometryFile: writeFile(t, dir, "sultra.geojson", sultraGeoJSON(t)),
		KMin:         2,
		KMax:         6,
		OutputDir:    filepath.Join(dir, "out"),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	rec := &memRecorder{}
	p := New(config.Default(), Deps{Recorder: rec})
	spec := sultraSpec(t, "WAKATOBBI")

	sess, err := p.Run(context.Background(), "run-1", spec)
	require.NoError(t, err)

	meta, err := sess.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Kabupaten/Kota", meta.EntityColumn)
	assert.Equal(t, 17, meta.RowCount)

	report, err := sess.Evaluation()
	require.NoError(t, err)
	require.Len(t, report.Records, 5)
	assert.Equal(t, []string{"Population", "Poverty", "HDI"}, report.Features)
	for i, r := range report.Records {
		assert.Equal(t, i+2, r.K)
	}
	assert.GreaterOrEqual(t, report.BestK, 2)
	assert.LessOrEqual(t, report.BestK, 6)

	partition, err := sess.Partition()
	require.NoError(t, err)
	assert.Equal(t, report.BestK, partition.K)
	assert.True(t, partition.HasMergeTable())

	interp, err := sess.Interpretation()
	require.NoError(t, err)
	assert.NotEmpty(t, interp)

	merge, err := sess.Merge()
	require.NoError(t, err)
	assert.Equal(t, 16, merge.TotalMatched)
	assert.Equal(t, []string{"WAKATOBBI"}, merge.MissingInGeometry)
	assert.Equal(t, []string{"WAKATOBI"}, merge.MissingInPartition)
	assert.Equal(t, 17, merge.Merged.Len())

	art, err := sess.Map()
	require.NoError(t, err)
	assert.Equal(t, model.MapRendered, art.State)
	assert.Len(t, art.Legend, partition.K+1)

	for _, name := range []string{
		FileEvaluation, FileEvalChart, FileClusters, FileClusterTable, FileScatterChart,
		FileInterpretation, FileMerge, FileGeoJSON, FileShapefile, FileMap,
	} {
		assert.FileExists(t, filepath.Join(spec.OutputDir, name))
	}
	for _, ex := range sess.Exports() {
		assert.True(t, ex.Success, "%s: %s", ex.Path, ex.Error)
	}

	assert.Equal(t, model.StatusCompleted, rec.lastStatus())
	assert.Equal(t, partition.K, rec.bestK)
	assert.Empty(t, rec.errors)
	assert.NotEmpty(t, rec.logs)
}

func TestRun_FixedK(t *testing.T) {
	spec := sultraSpec(t, "")
	spec.K = 4

	sess, err := New(config.Default(), Deps{}).Run(context.Background(), "run-k", spec)
	require.NoError(t, err)

	partition, err := sess.Partition()
	require.NoError(t, err)
	assert.Equal(t, 4, partition.K)

	merge, err := sess.Merge()
	require.NoError(t, err)
	assert.Equal(t, 17, merge.TotalMatched)
	assert.Empty(t, merge.MissingInGeometry)
	assert.Empty(t, merge.MissingInPartition)
}

func TestRun_MissingGeometryFallsBack(t *testing.T) {
	rec := &memRecorder{}
	spec := sultraSpec(t, "")
	spec.GeometryFile = filepath.Join(t.TempDir(), "missing.geojson")

	sess, err := New(config.Default(), Deps{Recorder: rec}).Run(context.Background(), "run-nogeo", spec)
	require.NoError(t, err)

	_, err = sess.Merge()
	assert.True(t, apperrors.IsCode(err, apperrors.CodePrecondition))

	art, err := sess.Map()
	require.NoError(t, err)
	assert.Equal(t, model.MapFallback, art.State)
	assert.Contains(t, art.Message, "failed to read GeoJSON file")
	assert.FileExists(t, filepath.Join(spec.OutputDir, FileMap))
	assert.NoFileExists(t, filepath.Join(spec.OutputDir, FileGeoJSON))

	assert.Equal(t, model.StatusCompleted, rec.lastStatus())
	require.Len(t, rec.errors, 1)
	assert.Equal(t, string(model.StatusMerging), rec.errors[0].Stage)
}

func TestRun_DataDefectFailsRun(t *testing.T) {
	rec := &memRecorder{}
	dir := t.TempDir()
	spec := model.RunSpec{
		DataFile:  writeFile(t, dir, "bad.csv", []byte("Name,Note\nA,x\nB,y\n")),
		OutputDir: filepath.Join(dir, "out"),
	}

	_, err := New(config.Default(), Deps{Recorder: rec}).Run(context.Background(), "run-bad", spec)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDataDefect))

	assert.Equal(t, model.StatusFailed, rec.lastStatus())
	require.Len(t, rec.errors, 1)
	assert.Equal(t, string(model.StatusNormalizing), rec.errors[0].Stage)
	assert.Equal(t, string(apperrors.CodeDataDefect), rec.errors[0].Code)

	_, statErr := os.Stat(spec.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "no artifacts for a failed run")
}

func TestRun_Cancelled(t *testing.T) {
	rec := &memRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(config.Default(), Deps{Recorder: rec}).Run(ctx, "run-cancel", sultraSpec(t, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusFailed, rec.lastStatus())
}

func TestRun_RecorderFailuresDoNotFailRun(t *testing.T) {
	rec := &memRecorder{failLogs: true}
	_, err := New(config.Default(), Deps{Recorder: rec}).Run(context.Background(), "run-flaky", sultraSpec(t, ""))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, rec.lastStatus())
}

func TestPipelineEvaluate(t *testing.T) {
	spec := sultraSpec(t, "")
	report, err := New(config.Default(), Deps{}).Evaluate(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, report.Records, 5)
	assert.Equal(t, 2, report.KMin)
	assert.Equal(t, 6, report.KMax)

	spec.KMin, spec.KMax = 3, 3
	report, err = New(config.Default(), Deps{}).Evaluate(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 3, report.BestK)
}

func TestTracker_StagesAndErrors(t *testing.T) {
	rec := &memRecorder{}
	tr := NewTracker("run-t", rec, nil, nil)
	ctx := context.Background()

	tr.StartStage(ctx, model.StatusNormalizing)
	tr.EndStage(ctx, model.StatusNormalizing, 17)
	tr.StartStage(ctx, model.StatusEvaluating)
	tr.Fail(ctx, model.StatusEvaluating, apperrors.InvalidInput("k_min must be >= 2"))

	assert.Equal(t, model.StatusFailed, tr.Status())
	stages := tr.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, "completed", stages[0].Status)
	assert.Equal(t, int64(17), stages[0].RecordsProcessed)
	assert.Equal(t, "failed", stages[1].Status)

	errs := tr.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, string(apperrors.CodeInvalidInput), errs[0].Code)
	assert.NotEmpty(t, errs[0].ID)

	assert.Equal(t, []model.RunStatus{model.StatusNormalizing, model.StatusEvaluating, model.StatusFailed}, rec.statuses)
}
