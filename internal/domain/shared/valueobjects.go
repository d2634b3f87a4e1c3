package shared

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Score bounds on the vigesimal scale.
const (
	MinScoreValue = 0.0
	MaxScoreValue = 20.0
)

// Attendance bounds (percent).
const (
	MinAttendanceValue = 0.0
	MaxAttendanceValue = 100.0
)

// Score is a period score on the 0-20 scale.
type Score float64

// ClampScore forces v into [0, 20]. The second result reports whether v was changed.
func ClampScore(v float64) (Score, bool) {
	c := clamp(v, MinScoreValue, MaxScoreValue)
	return Score(c), c != v
}

// Float64 returns the underlying value.
func (s Score) Float64() float64 { return float64(s) }

// Attendance is a class attendance percentage in [0, 100].
type Attendance float64

// ClampAttendance forces v into [0, 100]. The second result reports whether v was changed.
func ClampAttendance(v float64) (Attendance, bool) {
	c := clamp(v, MinAttendanceValue, MaxAttendanceValue)
	return Attendance(c), c != v
}

// Float64 returns the underlying value.
func (a Attendance) Float64() float64 { return float64(a) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ═══════════════════════════════════════════════════════════════════════════
// Rounding
// ═══════════════════════════════════════════════════════════════════════════

// Round1 rounds v to one decimal place, half away from zero.
// Decimal arithmetic avoids binary artefacts such as 14.25 -> 14.2.
func Round1(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

// MeanRound1 returns the arithmetic mean of values rounded to one decimal.
// The sum is computed in decimal so the result does not depend on the
// order of values. An empty slice yields 0.
func MeanRound1(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Div(decimal.NewFromInt(int64(len(values)))).Round(1).Float64()
	return f
}

// Percentage returns part/total*100 rounded to one decimal, or 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		Float64()
	return f
}
