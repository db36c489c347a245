package pipeline

import (
	"sort"

	"geo-cluster-pipeline/internal/model"
	"geo-cluster-pipeline/pkg/utils"
)

// GroupAggregate holds the per-group metrics of one group-by pass.
type GroupAggregate struct {
	Group int
	Count int
	Sums  map[string]float64
	Means map[string]float64
}

// AggregateByGroup groups records by the integer value of groupBy and
// computes count, sum and mean of each metric column. Records whose group
// value is not an integer are skipped. Results are ordered by group.
func AggregateByGroup(records []model.GenericRecord, groupBy string, metrics []string) []GroupAggregate {
	byGroup := make(map[int]*GroupAggregate)
	for _, rec := range records {
		g, ok := groupID(rec[groupBy])
		if !ok {
			continue
		}
		agg, exists := byGroup[g]
		if !exists {
			agg = &GroupAggregate{Group: g, Sums: make(map[string]float64, len(metrics))}
			byGroup[g] = agg
		}
		agg.Count++
		for _, m := range metrics {
			agg.Sums[m] += utils.Numeric(rec[m])
		}
	}

	out := make([]GroupAggregate, 0, len(byGroup))
	for _, agg := range byGroup {
		agg.Means = make(map[string]float64, len(metrics))
		for _, m := range metrics {
			agg.Means[m] = agg.Sums[m] / float64(agg.Count)
		}
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// ColumnMeans returns the mean of each metric column over all records.
func ColumnMeans(records []model.GenericRecord, metrics []string) map[string]float64 {
	means := make(map[string]float64, len(metrics))
	if len(records) == 0 {
		return means
	}
	for _, m := range metrics {
		sum := 0.0
		for _, rec := range records {
			sum += utils.Numeric(rec[m])
		}
		means[m] = sum / float64(len(records))
	}
	return means
}

func groupID(v interface{}) (int, bool) {
	switch g := v.(type) {
	case int:
		return g, true
	case int64:
		return int(g), true
	case float64:
		if g != float64(int(g)) {
			return 0, false
		}
		return int(g), true
	default:
		return 0, false
	}
}
