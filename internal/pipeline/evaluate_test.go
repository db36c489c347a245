package pipeline

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

func TestFitKMeans_Deterministic(t *testing.T) {
	cfg := DefaultKMeansConfig()
	a, err := FitKMeans(blobs(), 3, cfg)
	require.NoError(t, err)
	b, err := FitKMeans(blobs(), 3, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.Equal(t, a.Inertia, b.Inertia)
}

func TestFitKMeans_SeparatesBlobs(t *testing.T) {
	fit, err := FitKMeans(blobs(), 3, DefaultKMeansConfig())
	require.NoError(t, err)

	for g := 0; g < 3; g++ {
		first := fit.Labels[g*5]
		for i := 1; i < 5; i++ {
			assert.Equal(t, first, fit.Labels[g*5+i], "blob %d split", g)
		}
	}
	assert.NotEqual(t, fit.Labels[0], fit.Labels[5])
	assert.NotEqual(t, fit.Labels[5], fit.Labels[10])
	assert.NotEqual(t, fit.Labels[0], fit.Labels[10])
}

func TestFitKMeans_Errors(t *testing.T) {
	_, err := FitKMeans(nil, 2, DefaultKMeansConfig())
	assert.True(t, apperrors.IsCode(err, apperrors.CodePrecondition))

	_, err = FitKMeans([][]float64{{1, 2}, {3}}, 2, DefaultKMeansConfig())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDataDefect))
}

func TestEvaluate_PicksThreeForThreeBlobs(t *testing.T) {
	report, err := NewEvaluator(DefaultKMeansConfig(), false, nil).
		Evaluate(context.Background(), blobs(), []string{"x", "y"}, 2, 6)
	require.NoError(t, err)

	require.Len(t, report.Records, 5)
	for i, r := range report.Records {
		assert.Equal(t, i+2, r.K)
		assert.False(t, r.Degenerate)
		assert.Len(t, r.Labels, 15)
	}
	assert.Equal(t, 3, report.BestK)

	rec, ok := report.Record(3)
	require.True(t, ok)
	assert.Equal(t, rec.DBI, report.BestDBI)
	assert.InDelta(t, WithinClusterSS(blobs(), rec.Labels, rec.Centroids), rec.SSW, 1e-12)
	for _, r := range report.Records {
		assert.GreaterOrEqual(t, r.DBI, report.BestDBI)
	}

	table := report.Table()
	require.Len(t, table, 5)
	assert.Equal(t, model.EvaluationRow{K: 3, SSW: rec.SSW, SSB: rec.SSB, DBI: rec.DBI}, table[1])
}

func TestEvaluate_WithinPlusBetweenIsTotal(t *testing.T) {
	data := blobs()
	report, err := NewEvaluator(DefaultKMeansConfig(), false, nil).
		Evaluate(context.Background(), data, []string{"x", "y"}, 3, 3)
	require.NoError(t, err)

	mean := columnMeans(data)
	total := 0.0
	for _, p := range data {
		total += squaredDistance(p, mean)
	}
	r := report.Records[0]
	assert.InDelta(t, total, r.SSW+r.SSB, 1e-9)
}

func TestEvaluate_ParallelMatchesSequential(t *testing.T) {
	seq, err := NewEvaluator(DefaultKMeansConfig(), false, nil).
		Evaluate(context.Background(), blobs(), nil, 2, 6)
	require.NoError(t, err)
	par, err := NewEvaluator(DefaultKMeansConfig(), true, nil).
		Evaluate(context.Background(), blobs(), nil, 2, 6)
	require.NoError(t, err)

	assert.Equal(t, seq.Table(), par.Table())
	assert.Equal(t, seq.BestK, par.BestK)
}

func TestEvaluate_KLargerThanRows(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 1}, {0, 1}}
	report, err := NewEvaluator(DefaultKMeansConfig(), false, nil).
		Evaluate(context.Background(), data, nil, 2, 5)
	require.NoError(t, err)
	assert.Len(t, report.Records, 4)
	assert.GreaterOrEqual(t, report.BestK, 2)
	assert.NotContains(t, report.ExcludedK, report.BestK)
	for _, rec := range report.Records {
		assert.Equal(t, rec.Degenerate, slices.Contains(report.ExcludedK, rec.K), "k=%d", rec.K)
	}
}

func TestExcludedFromSelection(t *testing.T) {
	records := []model.ValidityRecord{{K: 2, DBI: 0, Degenerate: true}, {K: 3, DBI: 0.4}, {K: 4, DBI: 0, Degenerate: true}}
	assert.Equal(t, []int{2, 4}, ExcludedFromSelection(records))

	k, _ := SelectBestK(records)
	assert.Equal(t, 3, k)

	report := &model.EvaluationReport{Records: records, BestK: k, ExcludedK: ExcludedFromSelection(records)}
	table := report.Table()
	assert.True(t, table[0].Excluded)
	assert.False(t, table[1].Excluded)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"excluded_k":[2,4]`)

	allDegenerate := []model.ValidityRecord{{K: 2, Degenerate: true}, {K: 3, Degenerate: true}}
	assert.Empty(t, ExcludedFromSelection(allDegenerate))
	assert.Equal(t, []int{}, ExcludedFromSelection(nil))
}

func TestEvaluate_InvalidArguments(t *testing.T) {
	e := NewEvaluator(DefaultKMeansConfig(), false, nil)

	_, err := e.Evaluate(context.Background(), nil, nil, 2, 6)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePrecondition))

	_, err = e.Evaluate(context.Background(), blobs(), nil, 1, 6)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = e.Evaluate(context.Background(), blobs(), nil, 4, 3)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEvaluator(DefaultKMeansConfig(), false, nil).Evaluate(ctx, blobs(), nil, 2, 6)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectBestK(t *testing.T) {
	tests := []struct {
		name    string
		records []model.ValidityRecord
		wantK   int
	}{
		{
			name:    "lowest dbi",
			records: []model.ValidityRecord{{K: 2, DBI: 0.9}, {K: 3, DBI: 0.4}, {K: 4, DBI: 0.6}},
			wantK:   3,
		},
		{
			name:    "tie keeps smallest k",
			records: []model.ValidityRecord{{K: 2, DBI: 0.5}, {K: 3, DBI: 0.5}, {K: 4, DBI: 0.7}},
			wantK:   2,
		},
		{
			name:    "degenerate skipped",
			records: []model.ValidityRecord{{K: 2, DBI: 0, Degenerate: true}, {K: 3, DBI: 0.4}},
			wantK:   3,
		},
		{
			name:    "all degenerate",
			records: []model.ValidityRecord{{K: 2, Degenerate: true}, {K: 3, Degenerate: true}},
			wantK:   2,
		},
		{name: "empty", records: nil, wantK: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, _ := SelectBestK(tt.records)
			assert.Equal(t, tt.wantK, k)
		})
	}
}

func TestDaviesBouldin(t *testing.T) {
	data := [][]float64{{0, 0}, {0, 2}, {10, 0}, {10, 2}}
	labels := []int{0, 0, 1, 1}

	// Each cluster has scatter 1 and the centroids are 10 apart.
	dbi, ok := DaviesBouldin(data, labels, 2)
	require.True(t, ok)
	assert.InDelta(t, 0.2, dbi, 1e-12)

	_, ok = DaviesBouldin(data, []int{0, 0, 0, 0}, 2)
	assert.False(t, ok, "one populated cluster")

	dbi, ok = DaviesBouldin([][]float64{{0, 0}, {1, 1}}, []int{0, 1}, 2)
	require.True(t, ok)
	assert.Equal(t, 0.0, dbi, "singletons have no dispersion")
}

func TestBetweenClusterSS(t *testing.T) {
	data := [][]float64{{0}, {2}, {10}, {12}}
	ssb := BetweenClusterSS(data, []int{0, 0, 1, 1}, [][]float64{{1}, {11}})
	// Global mean 6: 2*25 + 2*25.
	assert.InDelta(t, 100.0, ssb, 1e-12)
}
