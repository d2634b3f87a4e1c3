package grading

import (
	"fmt"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// Default pass thresholds.
const (
	DefaultMinScore      = 11.0
	DefaultMinAttendance = 80.0
)

// LevelThreshold holds the pass rules of one level.
type LevelThreshold struct {
	MinScore      float64 `json:"min_score" koanf:"min_score" validate:"gte=0,lte=20"`
	MinAttendance float64 `json:"min_attendance" koanf:"min_attendance" validate:"gte=0,lte=100"`
	LetterGrades  bool    `json:"letter_grades" koanf:"letter_grades"`
}

// Thresholds is the grading configuration of one session. It is a value:
// changing settings builds a new Thresholds, it is never edited in place
// while records are being aggregated.
type Thresholds struct {
	Primary   LevelThreshold `json:"primary"`
	Secondary LevelThreshold `json:"secondary"`

	// SessionLevel is the level applied to untagged rows, or LevelMixed.
	SessionLevel student.Level `json:"session_level"`
}

// DefaultThresholds returns 11/20 and 80% for both levels with letter
// grades on for the primary level only.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Primary: LevelThreshold{
			MinScore:      DefaultMinScore,
			MinAttendance: DefaultMinAttendance,
			LetterGrades:  true,
		},
		Secondary: LevelThreshold{
			MinScore:      DefaultMinScore,
			MinAttendance: DefaultMinAttendance,
			LetterGrades:  false,
		},
		SessionLevel: student.LevelPrimary,
	}
}

// For returns the threshold of a record level. Records reach the engine
// with a concrete level, which Validate guarantees.
func (t Thresholds) For(level student.Level) LevelThreshold {
	if level == student.LevelSecondary {
		return t.Secondary
	}
	return t.Primary
}

// WithLevel returns a copy of t with the threshold of level replaced.
func (t Thresholds) WithLevel(level student.Level, lt LevelThreshold) Thresholds {
	switch level {
	case student.LevelPrimary:
		t.Primary = lt
	case student.LevelSecondary:
		t.Secondary = lt
	}
	return t
}

// Reference returns the threshold used for cohort-wide charts: the session
// level's, or the primary one when the session is mixed.
func (t Thresholds) Reference() LevelThreshold {
	if t.SessionLevel.IsConcrete() {
		return t.For(t.SessionLevel)
	}
	return t.Primary
}

// Validate checks ranges and the session level.
func (t Thresholds) Validate() error {
	var errs []string
	check := func(name string, lt LevelThreshold) {
		if lt.MinScore < shared.MinScoreValue || lt.MinScore > shared.MaxScoreValue {
			errs = append(errs, fmt.Sprintf("%s min score must be within 0-20, got %v", name, lt.MinScore))
		}
		if lt.MinAttendance < shared.MinAttendanceValue || lt.MinAttendance > shared.MaxAttendanceValue {
			errs = append(errs, fmt.Sprintf("%s min attendance must be within 0-100, got %v", name, lt.MinAttendance))
		}
	}
	check("primary", t.Primary)
	check("secondary", t.Secondary)
	if !t.SessionLevel.IsValidSessionLevel() {
		errs = append(errs, fmt.Sprintf("session level %q is not primary, secondary or mixed", t.SessionLevel))
	}

	if len(errs) > 0 {
		return shared.WrapError("grading", "Validate", shared.ErrValueOutOfRange,
			strings.Join(errs, "; "), shared.ErrInvalidThresholds)
	}
	return nil
}
