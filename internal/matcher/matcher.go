// Package matcher decides whether a query face embedding belongs to an
// enrolled identity.
package matcher

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// DefaultThreshold is the empirically calibrated match distance cutoff.
const DefaultThreshold = 0.45

// Unknown is the identity label for a query that matched nothing.
const Unknown = "Unknown"

// Result is a single matching decision.
type Result struct {
	Name     string  // matched identity, or Unknown
	Distance float64 // distance that produced the decision; +Inf for an empty gallery
	Known    bool    // true when Name is an enrolled identity
}

// EuclideanDistance computes the Euclidean distance between two embeddings.
// Embeddings of different lengths are not comparable and yield +Inf.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match scans the gallery for the nearest embedding to query and accepts it
// when the minimum distance is strictly below threshold. Ties are broken by
// the first occurrence in gallery order. An empty gallery yields Unknown
// immediately with no distance computation.
func Match(query []float32, g *gallery.Gallery, threshold float64) Result {
	if g.Len() == 0 {
		return Result{Name: Unknown, Distance: math.Inf(1)}
	}

	best := 0
	bestDist := EuclideanDistance(query, g.Embeddings[0])
	for i := 1; i < g.Len(); i++ {
		if d := EuclideanDistance(query, g.Embeddings[i]); d < bestDist {
			best = i
			bestDist = d
		}
	}

	if bestDist < threshold {
		return Result{Name: g.Names[best], Distance: bestDist, Known: true}
	}
	return Result{Name: Unknown, Distance: bestDist}
}
