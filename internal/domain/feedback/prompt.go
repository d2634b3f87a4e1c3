package feedback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/grading"
)

// Prompt is the text sent to a provider together with the student it is about.
type Prompt struct {
	Student string
	Text    string
}

// BuildPrompt renders the analysis request for one aggregated record.
func BuildPrompt(a grading.AggregatedRecord) Prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a teacher or tutor at a school. Analyse the academic performance of %s.\n\n", a.Name)

	b.WriteString("Academic data:\n")
	scores := make([]string, len(a.Scores))
	for i, s := range a.Scores {
		scores[i] = formatNumber(s)
	}
	fmt.Fprintf(&b, "- Period scores: %s\n", strings.Join(scores, ", "))
	fmt.Fprintf(&b, "- Final average: %s (passing minimum: %s)\n", formatNumber(a.Average), formatNumber(a.MinScore))
	fmt.Fprintf(&b, "- Attendance: %s%% (required minimum: %s%%)\n", formatNumber(a.Attendance), formatNumber(a.MinAttendance))

	behavior := a.Behavior
	if behavior == "" {
		behavior = "not specified"
	}
	fmt.Fprintf(&b, "- Behavior: %s\n", behavior)
	if a.Letter != "" && a.Letter != grading.NotApplicable {
		fmt.Fprintf(&b, "- Letter grade: %s\n", a.Letter)
	}
	fmt.Fprintf(&b, "- Level: %s\n", a.Level.Label())

	b.WriteString("\nProvide an educational analysis with:\n")
	b.WriteString("1. An evaluation of overall performance\n")
	b.WriteString("2. Strengths and areas of opportunity\n")
	b.WriteString("3. Specific recommendations for improvement\n")
	b.WriteString("4. Personalised strategies for the student's profile\n")
	b.WriteString("\nUse a professional but warm tone suitable for teachers and parents.\n")

	return Prompt{Student: a.Name, Text: b.String()}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
