package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/internal/geo"
	"geo-cluster-pipeline/internal/model"
	"geo-cluster-pipeline/internal/pipeline"
	"geo-cluster-pipeline/internal/session"
	"geo-cluster-pipeline/internal/store"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
	"geo-cluster-pipeline/pkg/router"
	"geo-cluster-pipeline/pkg/utils"
)

// RunHandler serves the run API.
type RunHandler struct {
	cfg      *config.Config
	store    *store.Store
	pipeline *pipeline.Pipeline
	sessions *session.Registry
	output   *utils.OutputManager
	logger   logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunHandler(cfg *config.Config, st *store.Store, p *pipeline.Pipeline, logger logging.Logger) *RunHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RunHandler{
		cfg:      cfg,
		store:    st,
		pipeline: p,
		sessions: p.Sessions(),
		output:   p.Output(),
		logger:   logger.Named("api"),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Wait blocks until every background run has returned.
func (h *RunHandler) Wait() { h.wg.Wait() }

// Shutdown cancels every background run and waits for them to return.
func (h *RunHandler) Shutdown() {
	h.mu.Lock()
	for _, cancel := range h.cancels {
		cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// CreateRunResponse is returned when a run is accepted.
type CreateRunResponse struct {
	RunID     string            `json:"run_id"`
	Status    model.RunStatus   `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Links     map[string]string `json:"links"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateRun uploads input files and starts an asynchronous run
// @Summary Create a new analysis run
// @Description Upload a CSV and an optional shapefile zip or GeoJSON, then evaluate, cluster, merge and render asynchronously
// @Tags runs
// @Accept multipart/form-data
// @Produce json
// @Param data formData file true "CSV with one row per entity"
// @Param shapefile formData file false "Zipped shapefile"
// @Param geojson formData file false "GeoJSON FeatureCollection"
// @Param k_min formData int false "Smallest k to evaluate"
// @Param k_max formData int false "Largest k to evaluate"
// @Param k formData int false "Final k; best k when omitted"
// @Param entity_column formData string false "Entity name column"
// @Success 202 {object} CreateRunResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /runs [post]
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Server.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "invalid multipart form"))
		return
	}

	spec, err := h.parseRunForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	runID := uuid.New().String()
	dir, err := h.output.CreateRunOutputDir(runID)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create run directory"))
		return
	}
	spec.OutputDir = dir

	spec.DataFile, err = saveUpload(r, "data", dir, true)
	if err != nil {
		h.output.RemoveRunOutputDir(runID)
		writeError(w, err)
		return
	}
	for _, format := range []string{model.GeometryShapefile, model.GeometryGeoJSON} {
		path, err := saveUpload(r, format, dir, false)
		if err != nil {
			h.output.RemoveRunOutputDir(runID)
			writeError(w, err)
			return
		}
		if path != "" {
			spec.GeometryFile, spec.GeometryFormat = path, format
		}
	}

	run, err := h.store.CreateRun(r.Context(), runID, spec)
	if err != nil {
		h.output.RemoveRunOutputDir(runID)
		writeError(w, apperrors.Wrap(err, apperrors.CodeInternal, "failed to save run"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.ParseDuration(h.cfg.JobTimeout))
	h.mu.Lock()
	h.cancels[runID] = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.forget(runID)
		if _, err := h.pipeline.Run(ctx, runID, spec); err != nil {
			h.logger.Warn("run failed", logging.String("run_id", runID), logging.Err(err))
		}
	}()

	base := "/api/v1/runs/" + runID
	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:     runID,
		Status:    run.Status,
		CreatedAt: run.CreatedAt,
		Links: map[string]string{
			"self":           base,
			"evaluation":     base + "/evaluation",
			"clusters":       base + "/clusters",
			"interpretation": base + "/interpretation",
			"merge":          base + "/merge",
			"map":            base + "/map",
		},
	})
}

func (h *RunHandler) parseRunForm(r *http.Request) (model.RunSpec, error) {
	spec := model.RunSpec{
		KMin:         h.cfg.Clustering.KMin,
		KMax:         h.cfg.Clustering.KMax,
		EntityColumn: strings.TrimSpace(r.FormValue("entity_column")),
	}
	for field, dst := range map[string]*int{"k_min": &spec.KMin, "k_max": &spec.KMax, "k": &spec.K} {
		raw := strings.TrimSpace(r.FormValue(field))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return spec, apperrors.InvalidInput("%s must be an integer, got %q", field, raw)
		}
		*dst = v
	}
	switch {
	case spec.KMin < 2:
		return spec, apperrors.InvalidInput("k_min must be >= 2, got %d", spec.KMin)
	case spec.KMax < spec.KMin:
		return spec, apperrors.InvalidInput("k_max (%d) must be >= k_min (%d)", spec.KMax, spec.KMin)
	case spec.K != 0 && spec.K < 2:
		return spec, apperrors.InvalidInput("k must be >= 2, got %d", spec.K)
	}
	return spec, nil
}

// saveUpload copies form file field into dir. Optional fields that are
// absent return an empty path.
func saveUpload(r *http.Request, field, dir string, required bool) (string, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		if required {
			return "", apperrors.InvalidInput("form file %q is required", field)
		}
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInvalidInput, "failed to read form file "+field)
	}
	defer file.Close()
	return writeUpload(file, header, field, dir)
}

func writeUpload(file multipart.File, header *multipart.FileHeader, field, dir string) (string, error) {
	path := filepath.Join(dir, "upload_"+field+strings.ToLower(filepath.Ext(header.Filename)))
	out, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to store upload")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to store upload")
	}
	return path, out.Close()
}

func (h *RunHandler) forget(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.cancels[runID]; ok {
		cancel()
		delete(h.cancels, runID)
	}
}

// ListRuns retrieves all runs
// @Summary List all runs
// @Description Get every run with its current status, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.Run
// @Failure 500 {object} ErrorResponse
// @Router /runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// RunResponse is a run with its stage progress.
type RunResponse struct {
	model.Run
	Stages []model.StageMetrics `json:"stages"`
}

// GetRun retrieves one run
// @Summary Get run
// @Description Retrieve the status, best k and stage progress of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} RunResponse
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), router.Param(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	stages, err := h.store.ListStageProgress(r.Context(), run.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Run: *run, Stages: stages})
}

// DeleteRun cancels a run and drops its session, records and files
// @Summary Delete run
// @Description Cancel the run if still running and reset its session
// @Tags runs
// @Param id path string true "Run ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id} [delete]
func (h *RunHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := router.Param(r, "id")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.forget(id)
	h.sessions.Delete(id)
	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.output.RemoveRunOutputDir(id); err != nil {
		h.logger.Warn("failed to remove run files", logging.String("run_id", id), logging.Err(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// EvaluationResponse is the k sweep as a display table.
type EvaluationResponse struct {
	Table     []model.EvaluationRow `json:"table"`
	BestK     int                   `json:"best_k"`
	BestDBI   float64               `json:"best_dbi"`
	KMin      int                   `json:"k_min"`
	KMax      int                   `json:"k_max"`
	ExcludedK []int                 `json:"excluded_k"`
}

// GetEvaluation returns SSW, SSB and DBI per k
// @Summary Get evaluation
// @Description SSW, SSB and Davies-Bouldin index for every evaluated k, plus the selected k
// @Tags stages
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} EvaluationResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Evaluation has not run"
// @Router /runs/{id}/evaluation [get]
func (h *RunHandler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	report, err := sess.Evaluation()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EvaluationResponse{
		Table:     report.Table(),
		BestK:     report.BestK,
		BestDBI:   report.BestDBI,
		KMin:      report.KMin,
		KMax:      report.KMax,
		ExcludedK: report.ExcludedK,
	})
}

// ClustersResponse is the final partition without the table views.
type ClustersResponse struct {
	K               int                        `json:"k"`
	Features        []string                   `json:"features"`
	Centroids       [][]float64                `json:"centroids"`
	Summary         map[int]map[string]float64 `json:"cluster_summary"`
	Counts          map[int]int                `json:"cluster_counts"`
	EntityColumn    string                     `json:"entity_column,omitempty"`
	ClusteringTable []model.ClusteringTableRow `json:"clustering_table"`
	Warnings        []string                   `json:"warnings,omitempty"`
}

// GetClusters returns the final partition
// @Summary Get clusters
// @Description Centroids, per-cluster means and counts, and the per-observation clustering table
// @Tags stages
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} ClustersResponse
// @Failure 409 {object} ErrorResponse "Clustering has not run"
// @Router /runs/{id}/clusters [get]
func (h *RunHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := sess.Partition()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClustersResponse{
		K: p.K, Features: p.Features, Centroids: p.Centroids, Summary: p.Summary, Counts: p.Counts,
		EntityColumn: p.EntityColumn, ClusteringTable: p.ClusteringTable, Warnings: p.Warnings,
	})
}

// GetInterpretation returns per-cluster high/low features
// @Summary Get interpretation
// @Description Per-cluster means with features flagged high or low against the global mean
// @Tags stages
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.ClusterInterpretation
// @Failure 409 {object} ErrorResponse "Clusters have not been interpreted"
// @Router /runs/{id}/interpretation [get]
func (h *RunHandler) GetInterpretation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	in, err := sess.Interpretation()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// GetMerge returns the geo merge mismatch report
// @Summary Get merge report
// @Description Entities missing on either side of the geometry join and the matched count
// @Tags stages
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.MergeReport
// @Failure 409 {object} ErrorResponse "Geo merge has not run"
// @Router /runs/{id}/merge [get]
func (h *RunHandler) GetMerge(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	m, err := sess.Merge()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetMap renders the choropleth page
// @Summary Get cluster map
// @Description Leaflet choropleth of the merged geometry, or the fallback base map with its defect message
// @Tags artifacts
// @Produce html
// @Param id path string true "Run ID"
// @Success 200 {string} string "HTML page"
// @Failure 409 {object} ErrorResponse "Map has not been rendered"
// @Router /runs/{id}/map [get]
func (h *RunHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	art, err := sess.Map()
	if err != nil {
		writeError(w, err)
		return
	}
	title := "Cluster map"
	if p, err := sess.Partition(); err == nil {
		title = "Cluster map (k=" + strconv.Itoa(p.K) + ")"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pipeline.WriteMapHTML(w, art, title); err != nil {
		h.logger.Error("failed to write map", logging.Err(err))
	}
}

// GetEvaluationChart renders the DBI/SSW/SSB chart
// @Summary Get evaluation chart
// @Tags artifacts
// @Produce html
// @Param id path string true "Run ID"
// @Success 200 {string} string "HTML page"
// @Failure 409 {object} ErrorResponse
// @Router /runs/{id}/charts/evaluation [get]
func (h *RunHandler) GetEvaluationChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	report, err := sess.Evaluation()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pipeline.WriteEvaluationChart(w, report); err != nil {
		h.logger.Error("failed to write chart", logging.Err(err))
	}
}

// GetScatterChart renders the cluster scatter chart
// @Summary Get cluster scatter chart
// @Tags artifacts
// @Produce html
// @Param id path string true "Run ID"
// @Success 200 {string} string "HTML page"
// @Failure 409 {object} ErrorResponse
// @Router /runs/{id}/charts/scatter [get]
func (h *RunHandler) GetScatterChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := sess.Partition()
	if err != nil {
		writeError(w, err)
		return
	}
	norm, err := sess.Normalization()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pipeline.WriteScatterChart(w, p, norm.Scaled); err != nil {
		h.logger.Error("failed to write chart", logging.Err(err))
	}
}

// GetGeoJSON downloads the merged table as GeoJSON
// @Summary Download GeoJSON
// @Tags artifacts
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {string} string "FeatureCollection"
// @Failure 409 {object} ErrorResponse "Geo merge has not run"
// @Router /runs/{id}/geojson [get]
func (h *RunHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	m, err := sess.Merge()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pipeline.FileGeoJSON+`"`)
	if err := geo.WriteGeoJSON(w, m.Merged); err != nil {
		h.logger.Error("failed to write GeoJSON", logging.Err(err))
	}
}

// GetShapefile downloads the merged table as a zipped shapefile
// @Summary Download shapefile
// @Tags artifacts
// @Produce application/zip
// @Param id path string true "Run ID"
// @Success 200 {file} file "Zipped .shp/.shx/.dbf/.prj"
// @Failure 409 {object} ErrorResponse "Geo merge has not run"
// @Router /runs/{id}/shapefile [get]
func (h *RunHandler) GetShapefile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	m, err := sess.Merge()
	if err != nil {
		writeError(w, err)
		return
	}

	tmp, err := os.MkdirTemp("", "shapefile-download-*")
	if err != nil {
		writeError(w, err)
		return
	}
	defer os.RemoveAll(tmp)

	path := filepath.Join(tmp, pipeline.FileShapefile)
	if _, err := geo.WriteShapefileZip(m.Merged, "clusters", path); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pipeline.FileShapefile+`"`)
	http.ServeFile(w, r, path)
}

// GetClusteringTable downloads the clustering table as CSV
// @Summary Download clustering table
// @Tags artifacts
// @Produce text/csv
// @Param id path string true "Run ID"
// @Success 200 {string} string "CSV"
// @Failure 409 {object} ErrorResponse "Clustering has not run"
// @Router /runs/{id}/table.csv [get]
func (h *RunHandler) GetClusteringTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := sess.Partition()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pipeline.FileClusterTable+`"`)
	if err := pipeline.WriteClusteringTableCSV(w, p); err != nil {
		h.logger.Error("failed to write CSV", logging.Err(err))
	}
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Description Stage failures and recorded warnings of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id}/errors [get]
func (h *RunHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	id := router.Param(r, "id")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	errs, err := h.store.ListRunErrors(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": id,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunLogs retrieves the log lines of a run
// @Summary Get run logs
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param limit query int false "Maximum number of lines" default(100)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id}/logs [get]
func (h *RunHandler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	id := router.Param(r, "id")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logs, err := h.store.ListLogs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(logs) > limit {
		logs = logs[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": id,
		"logs":   logs,
		"count":  len(logs),
		"limit":  limit,
	})
}

// FileInfo describes one downloadable artifact.
type FileInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// ListFiles lists the artifacts written for a run
// @Summary List run artifacts
// @Tags artifacts
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} FileInfo
// @Failure 409 {object} ErrorResponse
// @Router /runs/{id}/files [get]
func (h *RunHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	files := []FileInfo{}
	for _, res := range sess.Exports() {
		if !res.Success {
			continue
		}
		name := filepath.Base(res.Path)
		size, _ := h.output.GetFileSize(res.Path)
		files = append(files, FileInfo{
			Name:        name,
			Type:        h.output.GetFileType(name),
			Size:        size,
			DownloadURL: h.output.GetDownloadURL(sess.ID, name),
		})
	}
	writeJSON(w, http.StatusOK, files)
}

// DownloadFile serves one artifact
// @Summary Download run artifact
// @Tags artifacts
// @Param id path string true "Run ID"
// @Param name path string true "File name"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id}/files/{name} [get]
func (h *RunHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, name := router.Param(r, "id"), router.Param(r, "name")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	path, err := h.output.GetOutputFilePath(id, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, apperrors.NotFound("file %s not found", filepath.Base(name)))
		return
	}
	w.Header().Set("Content-Type", h.output.ContentType(name))
	http.ServeFile(w, r, path)
}

// session resolves the run's stage outputs. A known run without a session
// has not produced any output yet.
func (h *RunHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := router.Param(r, "id")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		writeError(w, err)
		return nil, false
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, apperrors.Precondition("run %s has not processed any data yet", id))
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Code: string(apperrors.CodeOf(err)), Message: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		if appErr.Detail != "" {
			resp.Message += ": " + appErr.Detail
		}
	}
	writeJSON(w, apperrors.HTTPStatus(err), resp)
}
