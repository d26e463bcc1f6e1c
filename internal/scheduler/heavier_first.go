// Package scheduler orders independent jobs for a bounded worker pool.
package scheduler

import "sort"

// HeavierFirst returns job indices ordered by weight, heaviest first.
// Equal weights keep their input order.
func HeavierFirst(weights []int) []int {
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]] > weights[order[b]]
	})
	return order
}
