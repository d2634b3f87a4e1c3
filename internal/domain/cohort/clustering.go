package cohort

import (
	"math"
	"sort"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// Clustering defaults.
const (
	DefaultClusters     = 3
	maxKMeansIterations = 100
)

// Member is one record's group assignment.
type Member struct {
	Name       string  `json:"name"`
	Average    float64 `json:"average"`
	Attendance float64 `json:"attendance"`
	Group      int     `json:"group"`
}

// Group summarises one cluster. Groups are numbered from 1 in ascending
// order of their mean average, so group 1 is always the weakest.
type Group struct {
	Number         int     `json:"number"`
	Count          int     `json:"count"`
	MeanAverage    float64 `json:"mean_average"`
	MeanAttendance float64 `json:"mean_attendance"`
}

// Grouping is the result of KMeans.
type Grouping struct {
	K       int      `json:"k"`
	Groups  []Group  `json:"groups"`
	Members []Member `json:"members"`
}

type point struct{ x, y float64 }

// KMeans groups records on (average, attendance) with Lloyd's algorithm.
// Seeding is deterministic: the first centroid is the lowest point, each
// next one the point farthest from the centroids chosen so far. The same
// input always gives the same grouping. k is capped at the number of
// records; k <= 0 selects DefaultClusters.
func KMeans(aggs []grading.AggregatedRecord, k int) Grouping {
	if k <= 0 {
		k = DefaultClusters
	}
	if k > len(aggs) {
		k = len(aggs)
	}
	if k == 0 {
		return Grouping{Groups: []Group{}, Members: []Member{}}
	}

	points := make([]point, len(aggs))
	for i, a := range aggs {
		points[i] = point{x: a.Average, y: a.Attendance}
	}

	centroids := seed(points, k)
	labels := make([]int, len(points))
	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, p := range points {
			if best := nearest(p, centroids); best != labels[i] {
				labels[i] = best
				changed = true
			}
		}

		next := make([]point, k)
		counts := make([]int, k)
		for i, p := range points {
			next[labels[i]].x += p.x
			next[labels[i]].y += p.y
			counts[labels[i]]++
		}
		for c := range next {
			if counts[c] == 0 {
				// keep an emptied centroid where it was
				next[c] = centroids[c]
				continue
			}
			next[c].x /= float64(counts[c])
			next[c].y /= float64(counts[c])
		}
		centroids = next

		if !changed && iter > 0 {
			break
		}
	}

	return buildGrouping(aggs, labels, k)
}

func seed(points []point, k int) []point {
	first := 0
	for i, p := range points {
		q := points[first]
		if p.x < q.x || (p.x == q.x && p.y < q.y) {
			first = i
		}
	}
	centroids := []point{points[first]}
	for len(centroids) < k {
		far, farDist := -1, -1.0
		for i, p := range points {
			d := dist2(p, centroids[nearest(p, centroids)])
			if d > farDist {
				far, farDist = i, d
			}
		}
		centroids = append(centroids, points[far])
	}
	return centroids
}

func nearest(p point, centroids []point) int {
	best, bestDist := 0, math.Inf(1)
	for c, q := range centroids {
		if d := dist2(p, q); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func dist2(a, b point) float64 {
	dx, dy := a.x-b.x, a.y-b.y
	return dx*dx + dy*dy
}

func buildGrouping(aggs []grading.AggregatedRecord, labels []int, k int) Grouping {
	avgs := make([][]float64, k)
	atts := make([][]float64, k)
	for i, a := range aggs {
		avgs[labels[i]] = append(avgs[labels[i]], a.Average)
		atts[labels[i]] = append(atts[labels[i]], a.Attendance)
	}

	type raw struct {
		label int
		group Group
	}
	groups := make([]raw, 0, k)
	for c := 0; c < k; c++ {
		if len(avgs[c]) == 0 {
			continue
		}
		groups = append(groups, raw{label: c, group: Group{
			Count:          len(avgs[c]),
			MeanAverage:    shared.MeanRound1(avgs[c]),
			MeanAttendance: shared.MeanRound1(atts[c]),
		}})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].group.MeanAverage != groups[j].group.MeanAverage {
			return groups[i].group.MeanAverage < groups[j].group.MeanAverage
		}
		return groups[i].group.MeanAttendance < groups[j].group.MeanAttendance
	})

	renumber := make(map[int]int, len(groups))
	out := Grouping{K: k, Groups: make([]Group, len(groups))}
	for i, g := range groups {
		g.group.Number = i + 1
		renumber[g.label] = i + 1
		out.Groups[i] = g.group
	}

	out.Members = make([]Member, len(aggs))
	for i, a := range aggs {
		out.Members[i] = Member{
			Name:       a.Name,
			Average:    a.Average,
			Attendance: a.Attendance,
			Group:      renumber[labels[i]],
		}
	}
	return out
}
