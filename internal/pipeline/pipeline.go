package pipeline

import (
	"context"
	"fmt"
	"io"

	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/internal/geo"
	"geo-cluster-pipeline/internal/metrics"
	"geo-cluster-pipeline/internal/model"
	"geo-cluster-pipeline/internal/session"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
	"geo-cluster-pipeline/pkg/utils"
)

// Artifact file names written for every run.
const (
	FileEvaluation     = "evaluation.json"
	FileClusters       = "clusters.json"
	FileInterpretation = "interpretation.json"
	FileMerge          = "merge.json"
	FileClusterTable   = "clustering_table.csv"
	FileMap            = "map.html"
	FileEvalChart      = "evaluation_chart.html"
	FileScatterChart   = "scatter_chart.html"
	FileGeoJSON        = "clusters.geojson"
	FileShapefile      = "clusters_shp.zip"
)

// Deps are the collaborators shared across runs. All fields are optional.
type Deps struct {
	Recorder RunRecorder
	Sessions *session.Registry
	Metrics  *metrics.Metrics
	Logger   logging.Logger
}

// Pipeline sequences the stages of one analysis run. Stage components are
// built fresh for every run, so concurrent runs share no stage state.
type Pipeline struct {
	cfg      *config.Config
	recorder RunRecorder
	sessions *session.Registry
	metrics  *metrics.Metrics
	output   *utils.OutputManager
	logger   logging.Logger
}

func New(cfg *config.Config, deps Deps) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &Pipeline{
		cfg:      cfg,
		recorder: deps.Recorder,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		output:   utils.NewOutputManager(cfg.Output.Dir),
		logger:   deps.Logger.Named("pipeline"),
	}
}

// Sessions returns the session registry the pipeline writes into.
func (p *Pipeline) Sessions() *session.Registry { return p.sessions }

// Output returns the run output directory manager.
func (p *Pipeline) Output() *utils.OutputManager { return p.output }

// KMeansConfig derives the fit settings from configuration.
func (p *Pipeline) KMeansConfig() KMeansConfig {
	c := p.cfg.Clustering
	return KMeansConfig{Seed: c.Seed, NInit: c.NInit, MaxIter: c.MaxIter, Tolerance: c.Tolerance}
}

// RendererConfig derives the map settings from configuration.
func (p *Pipeline) RendererConfig() RendererConfig {
	m := p.cfg.Map
	return RendererConfig{
		Center:            m.Center,
		Zoom:              m.Zoom,
		Tiles:             m.Tiles,
		Palette:           m.Palette,
		NoDataColor:       m.NoDataColor,
		NameKeyColumn:     p.cfg.Geo.NameKeyColumn,
		SimplifyTolerance: m.SimplifyTolerance,
	}
}

// ------------------- Pipeline Runner -------------------

// Run executes every stage for runID in order:
// normalizing, evaluating, clustering, interpreting, merging, rendering.
// Data defects and precondition failures before merging fail the run.
// Merge problems are recorded and the map falls back to the base map.
func (p *Pipeline) Run(ctx context.Context, runID string, spec model.RunSpec) (*session.Session, error) {
	sess := p.sessions.Create(runID)
	tracker := NewTracker(runID, p.recorder, p.metrics, p.logger)
	logger := p.logger.With(logging.String("run_id", runID))

	fail := func(status model.RunStatus, err error) (*session.Session, error) {
		if ctxErr := ctx.Err(); ctxErr != nil && !apperrors.IsCode(err, apperrors.CodeInternal) {
			err = apperrors.Wrap(ctxErr, apperrors.CodeInternal, "run cancelled")
		}
		tracker.Fail(ctx, status, err)
		return sess, err
	}

	kMin, kMax := spec.KMin, spec.KMax
	if kMin == 0 {
		kMin = p.cfg.Clustering.KMin
	}
	if kMax == 0 {
		kMax = p.cfg.Clustering.KMax
	}
	kcfg := p.KMeansConfig()

	// --- NORMALIZATION ---
	tracker.StartStage(ctx, model.StatusNormalizing)
	meta, norm, err := p.prepare(ctx, spec, logger)
	if err != nil {
		return fail(model.StatusNormalizing, err)
	}
	entity := meta.EntityColumn
	if len(norm.Issues) > 0 {
		tracker.Log(ctx, "warn", string(model.StatusNormalizing),
			fmt.Sprintf("%d cells failed numeric coercion and were treated as missing", len(norm.Issues)))
	}
	if norm.Missing.HasMissing {
		tracker.Log(ctx, "warn", string(model.StatusNormalizing),
			fmt.Sprintf("%d rows with missing values dropped", norm.Missing.RowsDropped))
	}
	sess.SetNormalization(meta, norm)
	tracker.EndStage(ctx, model.StatusNormalizing, len(norm.Scaled))

	// --- EVALUATION ---
	if err := ctx.Err(); err != nil {
		return fail(model.StatusEvaluating, err)
	}
	tracker.StartStage(ctx, model.StatusEvaluating)
	report, err := NewEvaluator(kcfg, p.cfg.Clustering.Parallel, logger).
		Evaluate(ctx, norm.Scaled, norm.Features, kMin, kMax)
	if err != nil {
		return fail(model.StatusEvaluating, err)
	}
	sess.SetEvaluation(report)
	tracker.EndStage(ctx, model.StatusEvaluating, len(report.Records))

	// --- CLUSTERING ---
	if err := ctx.Err(); err != nil {
		return fail(model.StatusClustering, err)
	}
	tracker.StartStage(ctx, model.StatusClustering)
	k := spec.K
	if k == 0 {
		k = report.BestK
	}
	partition, err := NewPartitionEngine(kcfg, logger).Partition(norm, k, entity)
	if err != nil {
		return fail(model.StatusClustering, err)
	}
	for _, w := range partition.Warnings {
		tracker.Log(ctx, "warn", string(model.StatusClustering), w)
	}
	sess.SetPartition(partition)
	tracker.EndStage(ctx, model.StatusClustering, len(partition.Labels))

	// --- INTERPRETATION ---
	tracker.StartStage(ctx, model.StatusInterpreting)
	interp, err := NewInterpreter(p.cfg.Interpretation.FlagRatio, logger).
		Interpret(partition.Original, partition.Features, partition.Labels)
	if err != nil {
		return fail(model.StatusInterpreting, err)
	}
	sess.SetInterpretation(interp)
	tracker.EndStage(ctx, model.StatusInterpreting, len(interp))

	// --- GEO MERGE ---
	if err := ctx.Err(); err != nil {
		return fail(model.StatusMerging, err)
	}
	tracker.StartStage(ctx, model.StatusMerging)
	merge, mergeErr := p.merge(sess, spec, partition, logger)
	if mergeErr != nil {
		tracker.Warn(ctx, model.StatusMerging, mergeErr)
		tracker.EndStage(ctx, model.StatusMerging, 0)
	} else {
		p.metrics.ObserveMerge(merge.TotalMatched, len(merge.MissingInGeometry), len(merge.MissingInPartition))
		tracker.EndStage(ctx, model.StatusMerging, merge.TotalMatched)
	}

	// --- RENDERING & EXPORT ---
	tracker.StartStage(ctx, model.StatusRendering)
	renderer := NewRenderer(p.RendererConfig(), logger)
	var art *model.MapArtifact
	if merge != nil {
		art = renderer.Render(merge.Merged, partition.Features, partition.K)
	} else {
		art = renderer.Fallback(mergeErr.Error())
	}
	p.metrics.IncrementRender(string(art.State))
	sess.SetMap(art)

	dir := spec.OutputDir
	if dir == "" {
		if dir, err = p.output.CreateRunOutputDir(runID); err != nil {
			return fail(model.StatusRendering, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create output directory"))
		}
	}
	written := 0
	for _, res := range p.export(NewExporter(dir, logger), sess) {
		sess.AddExport(res)
		if !res.Success {
			tracker.Warn(ctx, model.StatusRendering, apperrors.Internal("export %s failed: %s", res.Path, res.Error))
			continue
		}
		written++
	}
	tracker.EndStage(ctx, model.StatusRendering, written)

	tracker.Complete(ctx, partition.K)
	return sess, nil
}

// Evaluate ingests and normalizes spec.DataFile and runs the k sweep only.
// Nothing is recorded or kept in a session.
func (p *Pipeline) Evaluate(ctx context.Context, spec model.RunSpec) (*model.EvaluationReport, error) {
	logger := p.logger.Named("evaluate")
	_, norm, err := p.prepare(ctx, spec, logger)
	if err != nil {
		return nil, err
	}
	kMin, kMax := spec.KMin, spec.KMax
	if kMin == 0 {
		kMin = p.cfg.Clustering.KMin
	}
	if kMax == 0 {
		kMax = p.cfg.Clustering.KMax
	}
	return NewEvaluator(p.KMeansConfig(), p.cfg.Clustering.Parallel, logger).
		Evaluate(ctx, norm.Scaled, norm.Features, kMin, kMax)
}

// prepare reads the CSV, resolves the entity column and normalizes every
// other numeric column.
func (p *Pipeline) prepare(ctx context.Context, spec model.RunSpec, logger logging.Logger) (*model.DatasetMetadata, *model.NormalizationResult, error) {
	table, meta, err := IngestCSVFile(ctx, spec.DataFile, logger)
	if err != nil {
		return nil, nil, err
	}
	entity := spec.EntityColumn
	if entity == "" {
		entity = DetectEntityColumn(meta.NonNumericColumns, p.cfg.Clustering.EntityColumn)
	}
	meta.EntityColumn = entity

	norm, err := NewNormalizer(logger).Normalize(table, withoutColumn(meta.NumericColumns, entity), entity)
	if err != nil {
		return nil, nil, err
	}
	return meta, norm, nil
}

func (p *Pipeline) merge(sess *session.Session, spec model.RunSpec, partition *model.PartitionResult, logger logging.Logger) (*model.MergeReport, error) {
	path := spec.GeometryFile
	if path == "" {
		path = p.cfg.Geo.ShapefilePath
	}
	if path == "" {
		return nil, apperrors.Precondition("no geometry source supplied")
	}
	geom, err := geo.ReadGeometryFile(path)
	if err != nil {
		return nil, err
	}
	sess.SetGeometry(geom)

	merger := NewGeoMerger(p.cfg.Geo.NameKeyColumn, NewNameStandardizer(p.cfg.Geo.NormalizedAliases()), logger)
	report, err := merger.Merge(geom, partition)
	if err != nil {
		return nil, err
	}
	sess.SetMerge(report)
	return report, nil
}

// export writes every artifact the session has produced.
func (p *Pipeline) export(ex *Exporter, sess *session.Session) []model.ExportResult {
	var results []model.ExportResult

	norm, _ := sess.Normalization()
	report, _ := sess.Evaluation()
	partition, _ := sess.Partition()
	interp, _ := sess.Interpretation()
	art, _ := sess.Map()

	if report != nil {
		results = append(results,
			ex.JSON(FileEvaluation, report, len(report.Records)),
			ex.HTML(FileEvalChart, func(w io.Writer) error { return WriteEvaluationChart(w, report) }),
		)
	}
	if partition != nil {
		results = append(results,
			ex.JSON(FileClusters, partition, len(partition.Labels)),
			ex.ClusteringCSV(FileClusterTable, partition),
		)
		if norm != nil {
			results = append(results, ex.HTML(FileScatterChart, func(w io.Writer) error {
				return WriteScatterChart(w, partition, norm.Scaled)
			}))
		}
	}
	if interp != nil {
		results = append(results, ex.JSON(FileInterpretation, interp, len(interp)))
	}
	if merge, err := sess.Merge(); err == nil {
		results = append(results,
			ex.JSON(FileMerge, merge, merge.Merged.Len()),
			ex.GeoJSON(FileGeoJSON, merge.Merged),
			ex.ShapefileZip(FileShapefile, merge.Merged),
		)
	}
	if art != nil {
		k := 0
		if partition != nil {
			k = partition.K
		}
		results = append(results, ex.HTML(FileMap, func(w io.Writer) error {
			return WriteMapHTML(w, art, fmt.Sprintf("Cluster map (k=%d)", k))
		}))
	}
	return results
}

func withoutColumn(cols []string, drop string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}
