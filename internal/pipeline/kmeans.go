package pipeline

import (
	"math"
	"math/rand"

	apperrors "geo-cluster-pipeline/pkg/errors"
)

// KMeansConfig controls one centroid fit.
type KMeansConfig struct {
	Seed      int64
	NInit     int
	MaxIter   int
	Tolerance float64
}

// DefaultKMeansConfig mirrors the configuration defaults.
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{Seed: 42, NInit: 10, MaxIter: 300, Tolerance: 1e-4}
}

// KMeansResult is the best of NInit Lloyd runs.
type KMeansResult struct {
	Labels     []int
	Centroids  [][]float64
	Inertia    float64
	Iterations int
}

// FitKMeans partitions data into k clusters. Every fit draws from a fresh
// generator seeded with cfg.Seed, so identical data and k always give
// identical labels and centroids. The run with the lowest inertia wins;
// ties keep the earliest run.
func FitKMeans(data [][]float64, k int, cfg KMeansConfig) (*KMeansResult, error) {
	if len(data) == 0 {
		return nil, apperrors.Precondition("cannot cluster an empty matrix")
	}
	if k < 1 {
		return nil, apperrors.InvalidInput("k must be >= 1, got %d", k)
	}
	dims := len(data[0])
	for i, row := range data {
		if len(row) != dims {
			return nil, apperrors.DataDefect("row %d has %d features, want %d", i, len(row), dims)
		}
	}
	if cfg.NInit < 1 {
		cfg.NInit = 1
	}
	if cfg.MaxIter < 1 {
		cfg.MaxIter = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	tol := cfg.Tolerance * meanVariance(data)

	var best *KMeansResult
	for run := 0; run < cfg.NInit; run++ {
		centroids := initKMeansPlusPlus(data, k, rng)
		res := lloyd(data, centroids, cfg.MaxIter, tol)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// initKMeansPlusPlus implements K-means++ initialization
func initKMeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cloneRow(data[rng.Intn(len(data))]))

	distances := make([]float64, len(data))
	for len(centroids) < k {
		total := 0.0
		for i, p := range data {
			minDist := math.Inf(1)
			for _, c := range centroids {
				if d := squaredDistance(p, c); d < minDist {
					minDist = d
				}
			}
			distances[i] = minDist
			total += minDist
		}

		// Every point already coincides with a centroid (k > distinct points):
		// fall back to a uniform pick.
		if total == 0 {
			centroids = append(centroids, cloneRow(data[rng.Intn(len(data))]))
			continue
		}

		// Choose next centroid with probability proportional to squared distance
		target := rng.Float64() * total
		cumulative := 0.0
		selected := len(data) - 1
		for i, d := range distances {
			cumulative += d
			if cumulative >= target && d > 0 {
				selected = i
				break
			}
		}
		centroids = append(centroids, cloneRow(data[selected]))
	}
	return centroids
}

func lloyd(data [][]float64, centroids [][]float64, maxIter int, tol float64) *KMeansResult {
	k := len(centroids)
	dims := len(data[0])
	labels := make([]int, len(data))

	iter := 0
	for iter < maxIter {
		iter++
		assign(data, centroids, labels)

		next := make([][]float64, k)
		counts := make([]int, k)
		for j := range next {
			next[j] = make([]float64, dims)
		}
		for i, p := range data {
			c := labels[i]
			counts[c]++
			for d, v := range p {
				next[c][d] += v
			}
		}
		for j := range next {
			if counts[j] == 0 {
				copy(next[j], centroids[j])
				continue
			}
			for d := range next[j] {
				next[j][d] /= float64(counts[j])
			}
		}
		relocateEmpty(data, next, labels, counts)

		shift := 0.0
		for j := range next {
			shift += squaredDistance(next[j], centroids[j])
		}
		centroids = next
		if shift <= tol {
			break
		}
	}

	inertia := assign(data, centroids, labels)
	return &KMeansResult{Labels: labels, Centroids: centroids, Inertia: inertia, Iterations: iter}
}

// assign sets each label to its nearest centroid (lowest index on ties) and
// returns the inertia.
func assign(data [][]float64, centroids [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range data {
		best, bestDist := 0, math.Inf(1)
		for j, c := range centroids {
			if d := squaredDistance(p, c); d < bestDist {
				best, bestDist = j, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// relocateEmpty moves each empty centroid onto the point farthest from its
// own centroid, taken from a cluster with more than one member. Empty
// clusters stay empty when no such point is at positive distance.
func relocateEmpty(data [][]float64, centroids [][]float64, labels []int, counts []int) {
	for j := range centroids {
		if counts[j] > 0 {
			continue
		}
		far, farDist := -1, 0.0
		for i, p := range data {
			c := labels[i]
			if counts[c] < 2 {
				continue
			}
			if d := squaredDistance(p, centroids[c]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[labels[far]]--
		labels[far] = j
		counts[j] = 1
		copy(centroids[j], data[far])
	}
}

func meanVariance(data [][]float64) float64 {
	n := float64(len(data))
	dims := len(data[0])
	if dims == 0 {
		return 0
	}
	total := 0.0
	for d := 0; d < dims; d++ {
		mean := 0.0
		for _, row := range data {
			mean += row[d]
		}
		mean /= n
		v := 0.0
		for _, row := range data {
			diff := row[d] - mean
			v += diff * diff
		}
		total += v / n
	}
	return total / float64(dims)
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

func cloneRow(r []float64) []float64 {
	return append([]float64(nil), r...)
}
