package pipeline

import (
	"fmt"
	"sort"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
	"geo-cluster-pipeline/pkg/utils"
)

// PartitionEngine fits the final partition at a chosen k.
type PartitionEngine struct {
	cfg    KMeansConfig
	logger logging.Logger
}

func NewPartitionEngine(cfg KMeansConfig, logger logging.Logger) *PartitionEngine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PartitionEngine{cfg: cfg, logger: logger.Named("partition")}
}

// Partition fits k clusters on the scaled matrix with the same seed and
// init policy as the evaluator, labels both table views, and summarizes
// each cluster. When entityColumn is empty or absent the merge table is
// skipped with a warning.
func (p *PartitionEngine) Partition(norm *model.NormalizationResult, k int, entityColumn string) (*model.PartitionResult, error) {
	if norm == nil || len(norm.Scaled) == 0 {
		return nil, apperrors.Precondition("clustering requested before data was processed")
	}
	if k < 2 {
		return nil, apperrors.InvalidInput("k must be >= 2, got %d", k)
	}

	fit, err := FitKMeans(norm.Scaled, k, p.cfg)
	if err != nil {
		return nil, err
	}
	labels := fit.Labels
	features := norm.Features

	original := norm.Original.WithColumn(model.ClusterColumn, func(i int) interface{} { return labels[i] })
	normalized := norm.Normalized.WithColumn(model.ClusterColumn, func(i int) interface{} { return labels[i] })

	counts := make(map[int]int, k)
	for c := 0; c < k; c++ {
		counts[c] = 0
	}
	for _, l := range labels {
		counts[l]++
	}

	summary := make(map[int]map[string]float64, k)
	for _, g := range AggregateByGroup(original.Records, model.ClusterColumn, features) {
		summary[g.Group] = g.Means
	}

	res := &model.PartitionResult{
		K:          k,
		Features:   append([]string(nil), features...),
		Labels:     labels,
		Centroids:  fit.Centroids,
		Summary:    summary,
		Counts:     counts,
		Original:   original,
		Normalized: normalized,
	}

	switch {
	case entityColumn == "":
		res.Warnings = append(res.Warnings, "no entity column: merge table skipped")
	case !original.HasColumn(entityColumn):
		res.Warnings = append(res.Warnings, fmt.Sprintf("entity column %q not found: merge table skipped", entityColumn))
	default:
		res.EntityColumn = entityColumn
		res.MergeTable = buildMergeTable(original, entityColumn, features, labels, fit.Centroids)
	}
	for _, w := range res.Warnings {
		p.logger.Warn(w)
	}

	res.ClusteringTable = buildClusteringTable(original, normalized, res.EntityColumn, features, labels, fit.Centroids)

	p.logger.Info("partition fitted",
		logging.Int("k", k),
		logging.Int("rows", len(labels)),
		logging.Int("iterations", fit.Iterations),
		logging.Float64("inertia", fit.Inertia),
	)
	return res, nil
}

// buildMergeTable emits one row per observation: entity, cluster and the
// cluster's centroid value for every feature.
func buildMergeTable(original *model.Table, entityColumn string, features []string, labels []int, centroids [][]float64) *model.Table {
	cols := []string{entityColumn, model.ClusterColumn}
	for _, f := range features {
		cols = append(cols, model.CentroidColumn(f))
	}

	t := &model.Table{Columns: cols, Records: make([]model.GenericRecord, len(labels))}
	for i, rec := range original.Records {
		c := labels[i]
		row := model.GenericRecord{
			entityColumn:        fmt.Sprint(rec[entityColumn]),
			model.ClusterColumn: c,
		}
		for j, f := range features {
			row[model.CentroidColumn(f)] = centroids[c][j]
		}
		t.Records[i] = row
	}
	return t
}

// buildClusteringTable emits the detailed per-observation table, stably
// sorted by cluster.
func buildClusteringTable(original, normalized *model.Table, entityColumn string, features []string, labels []int, centroids [][]float64) []model.ClusteringTableRow {
	rows := make([]model.ClusteringTableRow, len(labels))
	for i := range labels {
		c := labels[i]
		point := make([]float64, len(features))
		row := model.ClusteringTableRow{
			Values:     make(map[string]float64, len(features)),
			Normalized: make(map[string]float64, len(features)),
			Cluster:    c,
			Centroid:   make([]float64, len(features)),
		}
		if entityColumn != "" {
			row.Entity = fmt.Sprint(original.Records[i][entityColumn])
		}
		for j, f := range features {
			row.Values[f] = utils.Numeric(original.Records[i][f])
			point[j] = utils.Numeric(normalized.Records[i][f])
			row.Normalized[f] = point[j]
			row.Centroid[j] = utils.Round(centroids[c][j], 4)
		}
		row.Distance = EuclideanDistance(point, centroids[c])
		rows[i] = row
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Cluster < rows[b].Cluster })
	return rows
}
