package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "geo-cluster-pipeline/docs"
	"geo-cluster-pipeline/internal/api/handler"
	"geo-cluster-pipeline/internal/metrics"
	"geo-cluster-pipeline/pkg/router"
)

// RegisterRoutes mounts the run API, /metrics and the Swagger UI.
// m may be nil when metrics are disabled.
func RegisterRoutes(r *router.Router, h *handler.RunHandler, m *metrics.Metrics) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/{id}", h.GetRun)
	r.DELETE("/api/v1/runs/{id}", h.DeleteRun)

	// Stage outputs
	r.GET("/api/v1/runs/{id}/evaluation", h.GetEvaluation)
	r.GET("/api/v1/runs/{id}/clusters", h.GetClusters)
	r.GET("/api/v1/runs/{id}/interpretation", h.GetInterpretation)
	r.GET("/api/v1/runs/{id}/merge", h.GetMerge)

	// Artifacts
	r.GET("/api/v1/runs/{id}/map", h.GetMap)
	r.GET("/api/v1/runs/{id}/charts/evaluation", h.GetEvaluationChart)
	r.GET("/api/v1/runs/{id}/charts/scatter", h.GetScatterChart)
	r.GET("/api/v1/runs/{id}/geojson", h.GetGeoJSON)
	r.GET("/api/v1/runs/{id}/shapefile", h.GetShapefile)
	r.GET("/api/v1/runs/{id}/table.csv", h.GetClusteringTable)
	r.GET("/api/v1/runs/{id}/files", h.ListFiles)
	r.GET("/api/v1/runs/{id}/files/{name}", h.DownloadFile)

	// Run records
	r.GET("/api/v1/runs/{id}/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/{id}/logs", h.GetRunLogs)

	r.GET("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	r.Handle("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
