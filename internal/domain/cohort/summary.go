// Package cohort derives cohort-wide views from aggregated records: the
// summary, top-N, chart series and k-means grouping. Nothing here is stored;
// every value is recomputed from the records it is given.
package cohort

import (
	"sort"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// DefaultTopN is the size of the top list when the caller does not set one.
const DefaultTopN = 5

// LevelBreakdown is the per-level part of a Summary.
type LevelBreakdown struct {
	Level          student.Level `json:"level"`
	Label          string        `json:"label"`
	Count          int           `json:"count"`
	Passed         int           `json:"passed"`
	PassPercentage float64       `json:"pass_percentage"`
	MeanAverage    float64       `json:"mean_average"`
}

// TopEntry is one row of the top-N list.
type TopEntry struct {
	Rank    int            `json:"rank"`
	Name    string         `json:"name"`
	ID      string         `json:"id,omitempty"`
	Average float64        `json:"average"`
	Letter  string         `json:"letter"`
	Status  grading.Status `json:"status"`
}

// Summary holds counts and means over a set of aggregated records.
type Summary struct {
	Total          int     `json:"total"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	PassPercentage float64 `json:"pass_percentage"`
	MeanAverage    float64 `json:"mean_average"`
	MeanAttendance float64 `json:"mean_attendance"`

	// Empty is true when there are no records; percentages and means are 0.
	Empty bool `json:"empty"`

	Levels []LevelBreakdown `json:"levels"`
	Top    []TopEntry       `json:"top"`

	// LevelFallbacks counts records whose level came from the session default.
	LevelFallbacks int `json:"level_fallbacks"`
}

// Summarize builds the cohort summary. topN <= 0 selects DefaultTopN.
func Summarize(aggs []grading.AggregatedRecord, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}

	s := Summary{
		Total: len(aggs),
		Empty: len(aggs) == 0,
	}

	averages := make([]float64, 0, len(aggs))
	attendance := make([]float64, 0, len(aggs))
	byLevel := make(map[student.Level][]grading.AggregatedRecord)

	for _, a := range aggs {
		if a.Passed() {
			s.Passed++
		}
		if a.LevelFallback() {
			s.LevelFallbacks++
		}
		averages = append(averages, a.Average)
		attendance = append(attendance, a.Attendance)
		byLevel[a.Level] = append(byLevel[a.Level], a)
	}

	s.Failed = s.Total - s.Passed
	s.PassPercentage = shared.Percentage(s.Passed, s.Total)
	s.MeanAverage = shared.MeanRound1(averages)
	s.MeanAttendance = shared.MeanRound1(attendance)

	s.Levels = make([]LevelBreakdown, 0, len(student.AllLevels))
	for _, lvl := range student.AllLevels {
		group := byLevel[lvl]
		lb := LevelBreakdown{Level: lvl, Label: lvl.Label(), Count: len(group)}
		avgs := make([]float64, 0, len(group))
		for _, a := range group {
			if a.Passed() {
				lb.Passed++
			}
			avgs = append(avgs, a.Average)
		}
		lb.PassPercentage = shared.Percentage(lb.Passed, lb.Count)
		lb.MeanAverage = shared.MeanRound1(avgs)
		s.Levels = append(s.Levels, lb)
	}

	for i, a := range TopN(aggs, topN) {
		s.Top = append(s.Top, TopEntry{
			Rank:    i + 1,
			Name:    a.Name,
			ID:      a.ID,
			Average: a.Average,
			Letter:  a.Letter,
			Status:  a.Status,
		})
	}

	return s
}

// TopN returns up to n records ordered by average, highest first. Ties are
// broken by name and then by source row so the order is stable.
func TopN(aggs []grading.AggregatedRecord, n int) []grading.AggregatedRecord {
	sorted := make([]grading.AggregatedRecord, len(aggs))
	copy(sorted, aggs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Average != sorted[j].Average {
			return sorted[i].Average > sorted[j].Average
		}
		if c := strings.Compare(sorted[i].Name, sorted[j].Name); c != 0 {
			return c < 0
		}
		return sorted[i].Row < sorted[j].Row
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Filter selects the records matching status and level. Empty filters match all.
func Filter(aggs []grading.AggregatedRecord, status grading.Status, level student.Level) []grading.AggregatedRecord {
	out := make([]grading.AggregatedRecord, 0, len(aggs))
	for _, a := range aggs {
		if status != "" && a.Status != status {
			continue
		}
		if level != "" && a.Level != level {
			continue
		}
		out = append(out, a)
	}
	return out
}
