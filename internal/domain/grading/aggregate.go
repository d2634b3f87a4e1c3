package grading

import (
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// Status is the pass/fail outcome of a record.
type Status string

const (
	StatusPassed Status = "Passed"
	StatusFailed Status = "Failed"
)

// AggregatedRecord is a Record plus the values derived from it. The derived
// fields are only ever produced by Aggregate; to change them, change the
// record or the thresholds and aggregate again.
type AggregatedRecord struct {
	student.Record

	// Average is the mean of the period scores rounded to one decimal.
	Average       float64 `json:"average"`
	MinScore      float64 `json:"min_score"`
	MinAttendance float64 `json:"min_attendance"`
	Status        Status  `json:"status"`
	Letter        string  `json:"letter"`

	// BelowMinPeriods holds 0-based period indexes scored under MinScore.
	BelowMinPeriods []int `json:"below_min_periods,omitempty"`
}

// Passed reports whether the record passed.
func (a AggregatedRecord) Passed() bool { return a.Status == StatusPassed }

// MeetsScore reports whether the average reaches the minimum.
func (a AggregatedRecord) MeetsScore() bool { return a.Average >= a.MinScore }

// MeetsAttendance reports whether attendance reaches the minimum.
func (a AggregatedRecord) MeetsAttendance() bool { return a.Attendance >= a.MinAttendance }

// AggregateOne derives the computed fields of a single record.
func AggregateOne(r student.Record, th Thresholds, scale Scale) AggregatedRecord {
	lt := th.For(r.Level)
	avg := shared.MeanRound1(r.Scores[:])

	out := AggregatedRecord{
		Record:        r,
		Average:       avg,
		MinScore:      lt.MinScore,
		MinAttendance: lt.MinAttendance,
		Status:        StatusFailed,
		Letter:        scale.Classify(avg, lt.LetterGrades),
	}
	if avg >= lt.MinScore && r.Attendance >= lt.MinAttendance {
		out.Status = StatusPassed
	}
	for i, s := range r.Scores {
		if s < lt.MinScore {
			out.BelowMinPeriods = append(out.BelowMinPeriods, i)
		}
	}
	return out
}

// Aggregate derives every record. Output order matches input order.
func Aggregate(records []student.Record, th Thresholds, scale Scale) []AggregatedRecord {
	out := make([]AggregatedRecord, len(records))
	for i, r := range records {
		out[i] = AggregateOne(r, th, scale)
	}
	return out
}
