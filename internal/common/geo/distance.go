// Package geo provides great-circle helpers for waypoint ordering and
// travel-time estimates.
package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"roadplan/internal/types"
)

const (
	// EarthRadiusKm is the mean Earth radius used for all distances.
	EarthRadiusKm = 6371.0
	// WalkingSpeedKmh is the assumed pace for synthetic walking durations.
	WalkingSpeedKmh = 5.0
)

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// Distance is HaversineKm over LatLng values.
func Distance(a, b types.LatLng) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// WalkingSeconds estimates a walking duration from straight-line distance.
func WalkingSeconds(a, b types.LatLng) int {
	hours := Distance(a, b) / WalkingSpeedKmh
	return int(math.Round(hours * 3600))
}

// NearestNeighbor orders points greedily starting from start: each step
// picks the unvisited point closest to the current position. Ties keep
// input order. The result is a permutation of 0..len(points)-1.
func NearestNeighbor(start types.LatLng, points []types.LatLng) []int {
	visited := make([]bool, len(points))
	order := make([]int, 0, len(points))
	cur := start
	for len(order) < len(points) {
		best := -1
		bestDist := math.Inf(1)
		for i, p := range points {
			if visited[i] {
				continue
			}
			if d := Distance(cur, p); d < bestDist {
				best, bestDist = i, d
			}
		}
		visited[best] = true
		order = append(order, best)
		cur = points[best]
	}
	return order
}
