package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

func normalizedFixture(t *testing.T, withEntity bool) *model.NormalizationResult {
	t.Helper()
	cols := []string{"a", "b"}
	entity := ""
	if withEntity {
		cols = append([]string{"name"}, cols...)
		entity = "name"
	}
	var rows [][]interface{}
	for i, p := range blobs() {
		row := []interface{}{p[0] * 100, p[1] * 10}
		if withEntity {
			row = append([]interface{}{string(rune('A' + i))}, row...)
		}
		rows = append(rows, row)
	}
	norm, err := NewNormalizer(nil).Normalize(table(cols, rows...), []string{"a", "b"}, entity)
	require.NoError(t, err)
	return norm
}

func TestPartition_LabelsAndSummaries(t *testing.T) {
	norm := normalizedFixture(t, true)
	res, err := NewPartitionEngine(DefaultKMeansConfig(), nil).Partition(norm, 3, "name")
	require.NoError(t, err)

	assert.Equal(t, 3, res.K)
	assert.Len(t, res.Labels, 15)
	for _, l := range res.Labels {
		assert.True(t, l >= 0 && l < 3)
	}
	assert.Len(t, res.Centroids, 3)

	total := 0
	for c := 0; c < 3; c++ {
		n, ok := res.Counts[c]
		require.True(t, ok, "count for cluster %d", c)
		total += n
	}
	assert.Equal(t, 15, total)

	// Both views carry the same cluster column; the original keeps its units.
	for i := range res.Labels {
		assert.Equal(t, res.Labels[i], res.Original.Records[i][model.ClusterColumn])
		assert.Equal(t, res.Labels[i], res.Normalized.Records[i][model.ClusterColumn])
	}
	assert.Equal(t, norm.Original.Records[0]["a"], res.Original.Records[0]["a"])
	assert.False(t, norm.Original.HasColumn(model.ClusterColumn), "input not mutated")

	// Summary means are in original units.
	for c, means := range res.Summary {
		sum, n := 0.0, 0
		for i, l := range res.Labels {
			if l == c {
				sum += res.Original.Records[i]["a"].(float64)
				n++
			}
		}
		assert.InDelta(t, sum/float64(n), means["a"], 1e-9)
	}
}

func TestPartition_MergeTable(t *testing.T) {
	res, err := NewPartitionEngine(DefaultKMeansConfig(), nil).Partition(normalizedFixture(t, true), 3, "name")
	require.NoError(t, err)

	require.True(t, res.HasMergeTable())
	assert.Equal(t, []string{"name", model.ClusterColumn, "Centroid_a", "Centroid_b"}, res.MergeTable.Columns)
	assert.Equal(t, 15, res.MergeTable.Len())
	row := res.MergeTable.Records[0]
	c := row[model.ClusterColumn].(int)
	assert.Equal(t, "A", row["name"])
	assert.Equal(t, res.Centroids[c][0], row["Centroid_a"])
	assert.Empty(t, res.Warnings)
}

func TestPartition_NoEntitySkipsMergeTable(t *testing.T) {
	res, err := NewPartitionEngine(DefaultKMeansConfig(), nil).Partition(normalizedFixture(t, false), 3, "")
	require.NoError(t, err)
	assert.False(t, res.HasMergeTable())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "merge table skipped")

	res, err = NewPartitionEngine(DefaultKMeansConfig(), nil).Partition(normalizedFixture(t, false), 3, "region")
	require.NoError(t, err)
	assert.False(t, res.HasMergeTable())
	assert.Contains(t, res.Warnings[0], `"region"`)
}

func TestPartition_ClusteringTableSortedByCluster(t *testing.T) {
	res, err := NewPartitionEngine(DefaultKMeansConfig(), nil).Partition(normalizedFixture(t, true), 3, "name")
	require.NoError(t, err)

	require.Len(t, res.ClusteringTable, 15)
	for i := 1; i < len(res.ClusteringTable); i++ {
		assert.LessOrEqual(t, res.ClusteringTable[i-1].Cluster, res.ClusteringTable[i].Cluster)
	}
	for _, row := range res.ClusteringTable {
		assert.NotEmpty(t, row.Entity)
		assert.GreaterOrEqual(t, row.Distance, 0.0)
		assert.Len(t, row.Centroid, 2)
	}
}

func TestPartition_MatchesEvaluatorLabels(t *testing.T) {
	norm := normalizedFixture(t, false)
	cfg := DefaultKMeansConfig()
	fit, err := FitKMeans(norm.Scaled, 3, cfg)
	require.NoError(t, err)

	res, err := NewPartitionEngine(cfg, nil).Partition(norm, 3, "")
	require.NoError(t, err)
	assert.Equal(t, fit.Labels, res.Labels)
}

func TestPartition_Preconditions(t *testing.T) {
	e := NewPartitionEngine(DefaultKMeansConfig(), nil)

	_, err := e.Partition(nil, 3, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodePrecondition))

	_, err = e.Partition(normalizedFixture(t, false), 1, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}
