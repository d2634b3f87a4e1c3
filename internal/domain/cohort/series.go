package cohort

import (
	"sort"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// HistogramBins is the number of equal-width bins over [0, 20].
const HistogramBins = 10

// NotSpecified labels records without a behavior tag.
const NotSpecified = "Not specified"

type PeriodMean struct {
	Period string  `json:"period"`
	Mean   float64 `json:"mean"`
}

type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

type ScatterPoint struct {
	Name       string         `json:"name"`
	Attendance float64        `json:"attendance"`
	Average    float64        `json:"average"`
	Status     grading.Status `json:"status"`
}

// BehaviorStats is box-plot data of averages for one behavior tag.
type BehaviorStats struct {
	Behavior string  `json:"behavior"`
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Median   float64 `json:"median"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
}

type LetterCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Series is everything the dashboard charts need.
type Series struct {
	PeriodMeans  []PeriodMean    `json:"period_means"`
	MinScoreLine float64         `json:"min_score_line"`
	Histogram    []HistogramBin  `json:"histogram"`
	Scatter      []ScatterPoint  `json:"scatter"`
	Behaviors    []BehaviorStats `json:"behaviors"`
	Letters      []LetterCount   `json:"letters"`
}

// BuildSeries derives chart data from aggregated records.
func BuildSeries(aggs []grading.AggregatedRecord, th grading.Thresholds, scale grading.Scale) Series {
	s := Series{
		MinScoreLine: th.Reference().MinScore,
		Scatter:      make([]ScatterPoint, 0, len(aggs)),
	}

	for p, col := range student.PeriodColumns {
		vals := make([]float64, 0, len(aggs))
		for _, a := range aggs {
			vals = append(vals, a.Scores[p])
		}
		s.PeriodMeans = append(s.PeriodMeans, PeriodMean{Period: col.DisplayName(), Mean: shared.MeanRound1(vals)})
	}

	width := shared.MaxScoreValue / HistogramBins
	s.Histogram = make([]HistogramBin, HistogramBins)
	for i := range s.Histogram {
		s.Histogram[i] = HistogramBin{Lower: float64(i) * width, Upper: float64(i+1) * width}
	}
	for _, a := range aggs {
		idx := int(a.Average / width)
		if idx >= HistogramBins {
			idx = HistogramBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		s.Histogram[idx].Count++
	}

	for _, a := range aggs {
		s.Scatter = append(s.Scatter, ScatterPoint{
			Name:       a.Name,
			Attendance: a.Attendance,
			Average:    a.Average,
			Status:     a.Status,
		})
	}

	s.Behaviors = behaviorStats(aggs)
	s.Letters = letterCounts(aggs, scale)
	return s
}

func behaviorStats(aggs []grading.AggregatedRecord) []BehaviorStats {
	groups := make(map[string][]float64)
	for _, a := range aggs {
		key := a.Behavior
		if key == "" {
			key = NotSpecified
		}
		groups[key] = append(groups[key], a.Average)
	}

	out := make([]BehaviorStats, 0, len(groups))
	for name, vals := range groups {
		sort.Float64s(vals)
		out = append(out, BehaviorStats{
			Behavior: name,
			Count:    len(vals),
			Min:      vals[0],
			Max:      vals[len(vals)-1],
			Median:   median(vals),
			Mean:     shared.MeanRound1(vals),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Behavior < out[j].Behavior })
	return out
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return shared.Round1((sorted[n/2-1] + sorted[n/2]) / 2)
}

func letterCounts(aggs []grading.AggregatedRecord, scale grading.Scale) []LetterCount {
	counts := make(map[string]int)
	for _, a := range aggs {
		counts[a.Letter]++
	}
	labels := append(scale.Labels(), grading.NotApplicable)
	out := make([]LetterCount, 0, len(labels))
	for _, l := range labels {
		if l == grading.NotApplicable && counts[l] == 0 {
			continue
		}
		out = append(out, LetterCount{Label: l, Count: counts[l]})
	}
	return out
}
