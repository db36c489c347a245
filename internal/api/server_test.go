package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-cluster-pipeline/internal/api/handler"
	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/internal/model"
)

var regions = []string{"BOMBANA", "BUTON", "KOLAKA", "KONAWE", "MUNA", "WAKATOBI", "KOTA KENDARI", "KOTA BAU BAU", "KOLAKA UTARA"}

func regionsCSV() string {
	var b strings.Builder
	b.WriteString("Region,Population,Poverty\n")
	for i, name := range regions {
		if name == "KOTA BAU BAU" {
			name = "Kota Baubau"
		}
		g := float64(i % 3)
		fmt.Fprintf(&b, "%s,%.1f,%.1f\n", name, 100+g*200+float64(i), 20-g*6+float64(i%2))
	}
	return b.String()
}

func regionsGeoJSON(t *testing.T, names ...string) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for i, name := range names {
		x := float64(i)
		f := geojson.NewFeature(orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}})
		f.Properties["KAB_KOTA"] = name
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	return data
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()

	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router().Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.handler.Shutdown()
		srv.store.Close()
	})
	return srv, ts
}

type upload struct {
	field, filename string
	data            []byte
}

func postRun(t *testing.T, ts *httptest.Server, fields map[string]string, files ...upload) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/v1/runs", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func waitTerminal(t *testing.T, ts *httptest.Server, id string) handler.RunResponse {
	t.Helper()
	var run handler.RunResponse
	require.Eventually(t, func() bool {
		run = handler.RunResponse{}
		return getJSON(t, ts.URL+"/api/v1/runs/"+id, &run) == http.StatusOK && run.Status.Terminal()
	}, 30*time.Second, 50*time.Millisecond)
	return run
}

func TestRunLifecycle(t *testing.T) {
	srv, ts := newTestServer(t)

	geometry := append([]string(nil), regions...)
	geometry[5] = "WAKATOBI BARAT"
	resp := postRun(t, ts, map[string]string{"k_min": "2", "k_max": "4"},
		upload{"data", "sultra.csv", []byte(regionsCSV())},
		upload{"geojson", "sultra.geojson", regionsGeoJSON(t, geometry...)},
	)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created handler.CreateRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.RunID)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, "/api/v1/runs/"+created.RunID+"/map", created.Links["map"])

	run := waitTerminal(t, ts, created.RunID)
	require.Equal(t, model.StatusCompleted, run.Status, run.Error)
	assert.GreaterOrEqual(t, run.BestK, 2)
	assert.NotEmpty(t, run.Stages)
	srv.handler.Wait()

	base := ts.URL + "/api/v1/runs/" + created.RunID

	var eval handler.EvaluationResponse
	require.Equal(t, http.StatusOK, getJSON(t, base+"/evaluation", &eval))
	assert.Len(t, eval.Table, 3)
	assert.Equal(t, run.BestK, eval.BestK)

	var clusters handler.ClustersResponse
	require.Equal(t, http.StatusOK, getJSON(t, base+"/clusters", &clusters))
	assert.Equal(t, run.BestK, clusters.K)
	assert.Equal(t, "Region", clusters.EntityColumn)
	assert.Len(t, clusters.ClusteringTable, len(regions))

	var interp []model.ClusterInterpretation
	require.Equal(t, http.StatusOK, getJSON(t, base+"/interpretation", &interp))
	assert.NotEmpty(t, interp)

	var merge model.MergeReport
	require.Equal(t, http.StatusOK, getJSON(t, base+"/merge", &merge))
	assert.Equal(t, len(regions)-1, merge.TotalMatched)
	assert.Equal(t, []string{"WAKATOBI"}, merge.MissingInGeometry)
	assert.Equal(t, []string{"WAKATOBI BARAT"}, merge.MissingInPartition)

	for path, contentType := range map[string]string{
		"/map":               "text/html",
		"/charts/evaluation": "text/html",
		"/charts/scatter":    "text/html",
		"/geojson":           "application/geo+json",
		"/shapefile":         "application/zip",
		"/table.csv":         "text/csv",
	} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), contentType, path)
	}

	var files []handler.FileInfo
	require.Equal(t, http.StatusOK, getJSON(t, base+"/files", &files))
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Contains(t, names, "map.html")
	assert.Contains(t, names, "clustering_table.csv")

	resp, err := http.Get(base + "/files/map.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var logs struct {
		Count int              `json:"count"`
		Logs  []model.LogEntry `json:"logs"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/logs?limit=3", &logs))
	assert.Equal(t, 3, logs.Count)

	var errs struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/errors", &errs))
	assert.Zero(t, errs.Count)

	var runs []model.Run
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/runs", &runs))
	assert.Len(t, runs, 1)

	req, err := http.NewRequest(http.MethodDelete, base, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, getJSON(t, base, nil))
}

func TestRunWithoutGeometryFallsBack(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postRun(t, ts, map[string]string{"k": "3"}, upload{"data", "data.csv", []byte(regionsCSV())})
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created handler.CreateRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	run := waitTerminal(t, ts, created.RunID)
	require.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, 3, run.BestK)

	base := ts.URL + "/api/v1/runs/" + created.RunID
	var e handler.ErrorResponse
	assert.Equal(t, http.StatusConflict, getJSON(t, base+"/merge", &e))
	assert.Equal(t, "PRECONDITION_FAILED", e.Code)

	resp, err := http.Get(base + "/map")
	require.NoError(t, err)
	defer resp.Body.Close()
	var page bytes.Buffer
	_, err = page.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page.String(), "no geometry source supplied")

	var errs struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/errors", &errs))
	assert.Equal(t, 1, errs.Count)
}

func TestCreateRun_Validation(t *testing.T) {
	_, ts := newTestServer(t)
	data := upload{"data", "data.csv", []byte(regionsCSV())}

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
	}{
		{"missing data file", nil, nil},
		{"k_min below two", map[string]string{"k_min": "1"}, []upload{data}},
		{"k_max below k_min", map[string]string{"k_min": "4", "k_max": "3"}, []upload{data}},
		{"k below two", map[string]string{"k": "1"}, []upload{data}},
		{"non-numeric k", map[string]string{"k_max": "six"}, []upload{data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRun(t, ts, tt.fields, tt.files...)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var e handler.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.Equal(t, "INVALID_INPUT", e.Code)
		})
	}

	var runs []model.Run
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/runs", &runs))
	assert.Empty(t, runs)
}

func TestUnknownAndUnprocessedRuns(t *testing.T) {
	srv, ts := newTestServer(t)

	var e handler.ErrorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/runs/nope", &e))
	assert.Equal(t, "NOT_FOUND", e.Code)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/runs/nope/evaluation", nil))

	_, err := srv.store.CreateRun(context.Background(), "queued", model.RunSpec{KMin: 2, KMax: 6})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, getJSON(t, ts.URL+"/api/v1/runs/queued/clusters", &e))
	assert.Equal(t, "PRECONDITION_FAILED", e.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/metrics", "/swagger/doc.json"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
