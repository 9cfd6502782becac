// Package cluster groups embedding vectors with deterministic k-means.
package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
)

// Options tunes KMeans. Zero fields take the defaults below.
type Options struct {
	Seed      uint64
	Restarts  int
	MaxIter   int
	Tolerance float64
}

// DefaultOptions returns seed 42, 10 restarts, 300 iterations and 1e-4
// tolerance.
func DefaultOptions() Options {
	return Options{Seed: 42, Restarts: 10, MaxIter: 300, Tolerance: 1e-4}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Restarts <= 0 {
		o.Restarts = d.Restarts
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	return o
}

// Result is a k-way partition of the input points.
type Result struct {
	// Labels[i] is the cluster of points[i], in [0, k).
	Labels    []int
	Centroids [][]float64
	Inertia   float64
}

// Members returns the indices of the points in each cluster.
func (r *Result) Members() [][]int {
	out := make([][]int, len(r.Centroids))
	for i, l := range r.Labels {
		out[l] = append(out[l], i)
	}
	return out
}

// EffectiveK is the cluster count used for n candidates: target, capped at
// half the candidates. Values below 2 mean clustering is not worthwhile.
func EffectiveK(n, target int) int {
	return min(target, n/2)
}

// KMeans partitions points into k clusters using k-means++ seeding and
// Lloyd iterations, keeping the restart with the lowest inertia. The
// generator is seeded from opts.Seed, so identical input yields identical
// labels.
func KMeans(points [][]float64, k int, opts Options) (*Result, error) {
	if len(points) == 0 {
		return nil, eris.New("cluster: no points")
	}
	if k < 1 || k > len(points) {
		return nil, eris.Errorf("cluster: k=%d outside 1-%d", k, len(points))
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, eris.New("cluster: zero-dimensional points")
	}
	for i, p := range points {
		if len(p) != dim {
			return nil, eris.Errorf("cluster: point %d has dimension %d, want %d", i, len(p), dim)
		}
	}

	opts = opts.withDefaults()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var best *Result
	for range opts.Restarts {
		r := lloyd(points, seedCentroids(points, k, rng), opts)
		if best == nil || r.Inertia < best.Inertia {
			best = r
		}
	}
	return best, nil
}

// seedCentroids picks k initial centroids with k-means++: each new centroid
// is drawn with probability proportional to its squared distance from the
// nearest centroid already chosen.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(len(points))]))

	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}

		next := 0
		if total == 0 {
			next = rng.IntN(len(points))
		} else {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		}

		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			dist[i] = math.Min(dist[i], sqDist(p, c))
		}
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, opts Options) *Result {
	k, dim := len(centroids), len(points[0])
	labels := make([]int, len(points))

	for range opts.MaxIter {
		assign(points, centroids, labels)

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			l := labels[i]
			counts[l]++
			for d, v := range p {
				sums[l][d] += v
			}
		}

		var shift float64
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed an empty cluster at the point farthest from its centroid.
				far := farthest(points, centroids, labels)
				sums[c] = clone(points[far])
				counts[c] = 1
				labels[far] = c
			}
			for d := range sums[c] {
				sums[c][d] /= float64(counts[c])
			}
			shift += sqDist(sums[c], centroids[c])
			centroids[c] = sums[c]
		}
		if shift <= opts.Tolerance {
			break
		}
	}

	inertia := assign(points, centroids, labels)
	return &Result{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// assign sets each label to the nearest centroid, lowest index on ties, and
// returns the summed squared distance.
func assign(points, centroids [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range points {
		bestC, bestD := 0, math.Inf(1)
		for c, cen := range centroids {
			if d := sqDist(p, cen); d < bestD {
				bestC, bestD = c, d
			}
		}
		labels[i] = bestC
		inertia += bestD
	}
	return inertia
}

func farthest(points, centroids [][]float64, labels []int) int {
	idx, dist := 0, -1.0
	for i, p := range points {
		if d := sqDist(p, centroids[labels[i]]); d > dist {
			idx, dist = i, d
		}
	}
	return idx
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
