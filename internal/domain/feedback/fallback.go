package feedback

import (
	"fmt"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/grading"
)

// Fixed recommendations of the basic analysis.
const (
	RecommendReinforce  = "Reinforce the topics with the lowest scores"
	RecommendAttendance = "Improve class attendance"
	RecommendTutor      = "Consult the tutor if difficulties persist"
)

// Report is the deterministic analysis shown when no provider answered.
type Report struct {
	Student             string   `json:"student"`
	ScoreStatement      string   `json:"score_statement"`
	AttendanceStatement string   `json:"attendance_statement"`
	Recommendations     []string `json:"recommendations"`
}

// Fallback builds the basic analysis of one record. It is total: every
// aggregated record yields a report.
func Fallback(a grading.AggregatedRecord) Report {
	r := Report{Student: a.Name}

	if a.MeetsScore() {
		r.ScoreStatement = fmt.Sprintf("Final average (%s) meets the required minimum (%s)",
			formatNumber(a.Average), formatNumber(a.MinScore))
	} else {
		r.ScoreStatement = fmt.Sprintf("Final average (%s) is below the required minimum (%s)",
			formatNumber(a.Average), formatNumber(a.MinScore))
		r.Recommendations = append(r.Recommendations, RecommendReinforce)
	}

	if a.MeetsAttendance() {
		r.AttendanceStatement = fmt.Sprintf("Attendance (%s%%) meets the required minimum (%s%%)",
			formatNumber(a.Attendance), formatNumber(a.MinAttendance))
	} else {
		r.AttendanceStatement = fmt.Sprintf("Attendance (%s%%) is below the required minimum (%s%%)",
			formatNumber(a.Attendance), formatNumber(a.MinAttendance))
		r.Recommendations = append(r.Recommendations, RecommendAttendance)
	}

	r.Recommendations = append(r.Recommendations, RecommendTutor)
	return r
}

// String renders the report as plain text.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("Basic analysis")
	if r.Student != "" {
		b.WriteString(" for ")
		b.WriteString(r.Student)
	}
	b.WriteString("\n\n")
	b.WriteString(r.ScoreStatement)
	b.WriteString("\n")
	b.WriteString(r.AttendanceStatement)
	b.WriteString("\n\nRecommendations:\n")
	for _, rec := range r.Recommendations {
		b.WriteString("- ")
		b.WriteString(rec)
		b.WriteString("\n")
	}
	return b.String()
}
