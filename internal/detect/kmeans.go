package detect

import (
	"math"
	"sort"
)

const kmeansMaxIterations = 50

// kmeans1D clusters values into k groups and returns the member indices of
// each non-empty cluster. Centroids are seeded from quantiles of the sorted
// values and assignment ties break toward the lower centroid, so identical
// input always produces identical clusters.
func kmeans1D(values []float64, k int) [][]int {
	if len(values) == 0 || k <= 0 {
		return nil
	}
	if k > len(values) {
		k = len(values)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	centroids := make([]float64, k)
	for i := 0; i < k; i++ {
		q := (float64(i) + 0.5) / float64(k)
		centroids[i] = sorted[int(q*float64(len(sorted)))]
	}

	assign := make([]int, len(values))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, v := range values {
			best := 0
			bestDist := math.Abs(v - centroids[0])
			for c := 1; c < k; c++ {
				if d := math.Abs(v - centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, v := range values {
			sums[assign[i]] += v
			counts[assign[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				centroids[c] = sums[c] / float64(counts[c])
			}
		}
	}

	clusters := make([][]int, k)
	for i := range values {
		c := assign[i]
		clusters[c] = append(clusters[c], i)
	}
	out := clusters[:0]
	for _, members := range clusters {
		if len(members) > 0 {
			out = append(out, members)
		}
	}
	return out
}

// clusterStats returns the mean and standard deviation of the given members.
func clusterStats(values []float64, members []int) (mean, std float64) {
	if len(members) == 0 {
		return 0, 0
	}
	for _, i := range members {
		mean += values[i]
	}
	mean /= float64(len(members))
	for _, i := range members {
		d := values[i] - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(members)))
	return mean, std
}
