package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

// ------------------- Evaluation chart -------------------

// EvaluationChart draws DBI per k, and SSW/SSB per k, as two line charts.
func EvaluationChart(report *model.EvaluationReport) (*components.Page, error) {
	if report == nil || len(report.Records) == 0 {
		return nil, apperrors.Precondition("evaluation has not run")
	}

	ks := make([]string, len(report.Records))
	dbi := make([]opts.LineData, len(report.Records))
	ssw := make([]opts.LineData, len(report.Records))
	ssb := make([]opts.LineData, len(report.Records))
	for i, r := range report.Records {
		ks[i] = fmt.Sprint(r.K)
		dbi[i] = opts.LineData{Value: r.DBI}
		ssw[i] = opts.LineData{Value: r.SSW}
		ssb[i] = opts.LineData{Value: r.SSB}
	}

	dbiChart := charts.NewLine()
	dbiChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Davies-Bouldin index per k",
			Subtitle: fmt.Sprintf("best k = %d (DBI %.4f)", report.BestK, report.BestDBI),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "k"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "DBI"}),
	)
	dbiChart.SetXAxis(ks).AddSeries("DBI", dbi)

	ssChart := charts.NewLine()
	ssChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "SSW and SSB per k"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "k"}),
	)
	ssChart.SetXAxis(ks).
		AddSeries("SSW", ssw).
		AddSeries("SSB", ssb)

	page := components.NewPage()
	page.PageTitle = "Cluster count evaluation"
	page.AddCharts(dbiChart, ssChart)
	return page, nil
}

// WriteEvaluationChart renders EvaluationChart as HTML.
func WriteEvaluationChart(w io.Writer, report *model.EvaluationReport) error {
	page, err := EvaluationChart(report)
	if err != nil {
		return err
	}
	return page.Render(w)
}

// ------------------- Cluster scatter -------------------

// ScatterChart plots observations colored by cluster with their centroids.
// Two features are plotted directly; otherwise the first two principal
// components are used and their explained variance shown in the subtitle.
func ScatterChart(partition *model.PartitionResult, scaled [][]float64) (*charts.Scatter, error) {
	if partition == nil || len(scaled) == 0 {
		return nil, apperrors.Precondition("clustering has not run")
	}
	if len(scaled) != len(partition.Labels) {
		return nil, apperrors.InvalidInput("matrix has %d rows but %d labels", len(scaled), len(partition.Labels))
	}

	xName, yName := "x", "y"
	subtitle := ""
	points, centroids := scaled, partition.Centroids
	switch len(partition.Features) {
	case 1:
		xName, yName = partition.Features[0], ""
	case 2:
		xName, yName = partition.Features[0], partition.Features[1]
	default:
		proj, ratio, ok := ProjectPCA(scaled, partition.Centroids)
		if ok {
			points, centroids = proj.Points, proj.Centroids
			xName, yName = "Principal Component 1", "Principal Component 2"
			subtitle = fmt.Sprintf("PCA explains %.1f%% + %.1f%% = %.1f%% of variance",
				ratio[0]*100, ratio[1]*100, (ratio[0]+ratio[1])*100)
		} else {
			xName, yName = partition.Features[0], partition.Features[1]
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("K-Means clustering (k=%d)", partition.K),
			Subtitle: subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value"}),
	)

	byCluster := make(map[int][]opts.ScatterData)
	for i, p := range points {
		c := partition.Labels[i]
		byCluster[c] = append(byCluster[c], opts.ScatterData{Value: []interface{}{p[0], second(p)}})
	}
	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		scatter.AddSeries(fmt.Sprintf("Cluster %d", id), byCluster[id])
	}

	centroidData := make([]opts.ScatterData, len(centroids))
	for j, c := range centroids {
		centroidData[j] = opts.ScatterData{Value: []interface{}{c[0], second(c)}, Symbol: "diamond", SymbolSize: 18}
	}
	scatter.AddSeries("Centroids", centroidData)
	return scatter, nil
}

// WriteScatterChart renders ScatterChart as HTML.
func WriteScatterChart(w io.Writer, partition *model.PartitionResult, scaled [][]float64) error {
	scatter, err := ScatterChart(partition, scaled)
	if err != nil {
		return err
	}
	return scatter.Render(w)
}

// Projection holds 2-D coordinates of points and centroids.
type Projection struct {
	Points    [][]float64
	Centroids [][]float64
}

// ProjectPCA projects data and centroids onto the first two principal
// components of data, centered on the data mean. ok is false when fewer
// than two components are available.
func ProjectPCA(data, centroids [][]float64) (Projection, [2]float64, bool) {
	n, d := len(data), len(data[0])
	if n < 2 || d < 2 {
		return Projection{}, [2]float64{}, false
	}

	mean := columnMeans(data)
	x := mat.NewDense(n, d, nil)
	for i, row := range data {
		for j, v := range row {
			x.Set(i, j, v-mean[j])
		}
	}

	var pc stat.PC
	if !pc.PrincipalComponents(x, nil) {
		return Projection{}, [2]float64{}, false
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	if _, cols := vecs.Dims(); cols < 2 {
		return Projection{}, [2]float64{}, false
	}
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	var ratio [2]float64
	if total > 0 {
		ratio = [2]float64{vars[0] / total, vars[1] / total}
	}

	basis := vecs.Slice(0, d, 0, 2)
	project := func(rows [][]float64) [][]float64 {
		out := make([][]float64, len(rows))
		for i, row := range rows {
			centered := make([]float64, d)
			for j, v := range row {
				centered[j] = v - mean[j]
			}
			var p mat.Dense
			p.Mul(mat.NewDense(1, d, centered), basis)
			out[i] = []float64{p.At(0, 0), p.At(0, 1)}
		}
		return out
	}
	return Projection{Points: project(data), Centroids: project(centroids)}, ratio, true
}

func second(p []float64) float64 {
	if len(p) < 2 {
		return 0
	}
	return p[1]
}
