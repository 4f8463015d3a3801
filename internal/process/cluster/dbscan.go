package cluster

import (
	"math"

	"github.com/civilian24601/amon-hen/internal/vector"
)

// noiseLabel marks points that belong to no dense region.
const noiseLabel = -1

// dbscan assigns a cluster label to every vector, noiseLabel for points in
// no dense region. Distance is cosine distance. A point is core when its
// epsilon-neighbourhood, itself included, holds at least minSamples points;
// clusters grow from core points and noise points reached during expansion
// become border members.
func dbscan(vectors [][]float32, epsilon float64, minSamples int) []int {
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = noiseLabel
	}

	visited := make([]bool, len(vectors))
	next := 0

	for i := range vectors {
		if visited[i] {
			continue
		}

		visited[i] = true

		neighbors := regionQuery(vectors, i, epsilon)
		if len(neighbors)+1 < minSamples {
			continue
		}

		labels[i] = next
		expand(vectors, neighbors, labels, visited, next, epsilon, minSamples)
		next++
	}

	return labels
}

func expand(vectors [][]float32, seeds []int, labels []int, visited []bool, label int, epsilon float64, minSamples int) {
	queue := append([]int(nil), seeds...)

	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]

		if labels[j] == noiseLabel {
			labels[j] = label
		}

		if visited[j] {
			continue
		}

		visited[j] = true

		neighbors := regionQuery(vectors, j, epsilon)
		if len(neighbors)+1 >= minSamples {
			queue = append(queue, neighbors...)
		}
	}
}

func regionQuery(vectors [][]float32, i int, epsilon float64) []int {
	var neighbors []int

	for j := range vectors {
		if j == i {
			continue
		}

		if cosineDistance(vectors[i], vectors[j]) <= epsilon {
			neighbors = append(neighbors, j)
		}
	}

	return neighbors
}

func cosineDistance(a, b []float32) float64 {
	return 1 - float64(vector.CosineSimilarity(a, b))
}

// groupByLabel collects point indices per cluster label in ascending label
// order. Groups below minClusterSize fold back into noise.
func groupByLabel(labels []int, minClusterSize int) [][]int {
	maxLabel := noiseLabel

	for _, label := range labels {
		if label > maxLabel {
			maxLabel = label
		}
	}

	raw := make([][]int, maxLabel+1)

	for idx, label := range labels {
		if label == noiseLabel {
			continue
		}

		raw[label] = append(raw[label], idx)
	}

	groups := make([][]int, 0, len(raw))

	for _, indices := range raw {
		if len(indices) < minClusterSize {
			continue
		}

		groups = append(groups, indices)
	}

	return groups
}

// meanVector averages the selected vectors without renormalising.
func meanVector(vectors [][]float32, indices []int) []float32 {
	dims := len(vectors[indices[0]])
	sum := make([]float64, dims)

	for _, idx := range indices {
		for d, v := range vectors[idx] {
			sum[d] += float64(v)
		}
	}

	centroid := make([]float32, dims)
	for d := range sum {
		centroid[d] = float32(sum[d] / float64(len(indices)))
	}

	return centroid
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64

	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}
