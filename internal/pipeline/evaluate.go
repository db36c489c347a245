package pipeline

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
)

// Evaluator sweeps k over an inclusive range and scores every fit.
type Evaluator struct {
	cfg      KMeansConfig
	parallel bool
	logger   logging.Logger
}

func NewEvaluator(cfg KMeansConfig, parallel bool, logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Evaluator{cfg: cfg, parallel: parallel, logger: logger.Named("evaluate")}
}

// Evaluate fits one partition per k in [kMin, kMax] and selects best_k as
// the lowest DBI, ties resolved to the smallest k. With parallel enabled the
// fits run concurrently; records are still reported in k order.
func (e *Evaluator) Evaluate(ctx context.Context, data [][]float64, features []string, kMin, kMax int) (*model.EvaluationReport, error) {
	if len(data) == 0 {
		return nil, apperrors.Precondition("data has not been normalized")
	}
	if kMin < 2 {
		return nil, apperrors.InvalidInput("k_min must be >= 2, got %d", kMin)
	}
	if kMax < kMin {
		return nil, apperrors.InvalidInput("k_max (%d) must be >= k_min (%d)", kMax, kMin)
	}

	start := time.Now()
	records := make([]model.ValidityRecord, kMax-kMin+1)

	if e.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for k := kMin; k <= kMax; k++ {
			k := k
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec, err := e.evaluateK(data, k)
				if err != nil {
					return err
				}
				records[k-kMin] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for k := kMin; k <= kMax; k++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rec, err := e.evaluateK(data, k)
			if err != nil {
				return nil, err
			}
			records[k-kMin] = rec
		}
	}

	bestK, bestDBI := SelectBestK(records)
	e.logger.Info("evaluation finished",
		logging.Int("k_min", kMin),
		logging.Int("k_max", kMax),
		logging.Int("best_k", bestK),
		logging.Float64("best_dbi", bestDBI),
		logging.Duration("elapsed", time.Since(start)),
	)

	return &model.EvaluationReport{
		Records:   records,
		BestK:     bestK,
		BestDBI:   bestDBI,
		KMin:      kMin,
		KMax:      kMax,
		Features:  append([]string(nil), features...),
		ExcludedK: ExcludedFromSelection(records),
	}, nil
}

func (e *Evaluator) evaluateK(data [][]float64, k int) (model.ValidityRecord, error) {
	fit, err := FitKMeans(data, k, e.cfg)
	if err != nil {
		return model.ValidityRecord{}, err
	}
	dbi, ok := DaviesBouldin(data, fit.Labels, k)
	if !ok {
		e.logger.Warn("fewer than two populated clusters, DBI undefined", logging.Int("k", k))
	}
	return model.ValidityRecord{
		K:          k,
		SSW:        fit.Inertia,
		SSB:        BetweenClusterSS(data, fit.Labels, fit.Centroids),
		DBI:        dbi,
		Degenerate: !ok,
		Labels:     fit.Labels,
		Centroids:  fit.Centroids,
	}, nil
}

// SelectBestK returns the k and DBI of the record with minimum DBI, first
// occurrence winning ties. Degenerate records only win when every record is
// degenerate.
func SelectBestK(records []model.ValidityRecord) (int, float64) {
	best := -1
	for i, r := range records {
		if r.Degenerate {
			continue
		}
		if best < 0 || r.DBI < records[best].DBI {
			best = i
		}
	}
	if best < 0 {
		if len(records) == 0 {
			return 0, 0
		}
		best = 0
	}
	return records[best].K, records[best].DBI
}

// ExcludedFromSelection returns the k values SelectBestK skipped. When every
// record is degenerate none are skipped and the result is empty.
func ExcludedFromSelection(records []model.ValidityRecord) []int {
	excluded := []int{}
	for _, r := range records {
		if r.Degenerate {
			excluded = append(excluded, r.K)
		}
	}
	if len(excluded) == len(records) {
		return []int{}
	}
	return excluded
}

// WithinClusterSS is the sum of squared distances of each point to its
// assigned centroid.
func WithinClusterSS(data [][]float64, labels []int, centroids [][]float64) float64 {
	ssw := 0.0
	for i, p := range data {
		ssw += squaredDistance(p, centroids[labels[i]])
	}
	return ssw
}

// BetweenClusterSS is the sum over clusters of size times the squared
// distance from the centroid to the global mean.
func BetweenClusterSS(data [][]float64, labels []int, centroids [][]float64) float64 {
	mean := columnMeans(data)
	counts := make([]int, len(centroids))
	for _, l := range labels {
		counts[l]++
	}
	ssb := 0.0
	for j, c := range centroids {
		ssb += float64(counts[j]) * squaredDistance(c, mean)
	}
	return ssb
}

// DaviesBouldin computes the Davies-Bouldin index over the populated
// clusters of labels. Centroids are recomputed from the labels. A cluster
// with fewer than two members has zero dispersion, and coincident centroids
// contribute a zero ratio. ok is false when fewer than two clusters are
// populated; the index is then reported as 0.
func DaviesBouldin(data [][]float64, labels []int, k int) (float64, bool) {
	dims := len(data[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for j := range sums {
		sums[j] = make([]float64, dims)
	}
	for i, p := range data {
		c := labels[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}

	var populated []int
	for j := 0; j < k; j++ {
		if counts[j] == 0 {
			continue
		}
		for d := range sums[j] {
			sums[j][d] /= float64(counts[j])
		}
		populated = append(populated, j)
	}
	if len(populated) < 2 {
		return 0, false
	}

	scatter := make([]float64, k)
	for i, p := range data {
		c := labels[i]
		if counts[c] < 2 {
			continue
		}
		scatter[c] += EuclideanDistance(p, sums[c])
	}
	for _, j := range populated {
		if counts[j] < 2 {
			scatter[j] = 0
			continue
		}
		scatter[j] /= float64(counts[j])
	}

	total := 0.0
	for _, i := range populated {
		worst := 0.0
		for _, j := range populated {
			if i == j {
				continue
			}
			dist := EuclideanDistance(sums[i], sums[j])
			if dist == 0 {
				continue
			}
			if r := (scatter[i] + scatter[j]) / dist; r > worst {
				worst = r
			}
		}
		total += worst
	}
	dbi := total / float64(len(populated))
	if math.IsNaN(dbi) || math.IsInf(dbi, 0) {
		return 0, false
	}
	return dbi, true
}

func columnMeans(data [][]float64) []float64 {
	dims := len(data[0])
	mean := make([]float64, dims)
	for _, row := range data {
		for d, v := range row {
			mean[d] += v
		}
	}
	for d := range mean {
		mean[d] /= float64(len(data))
	}
	return mean
}
