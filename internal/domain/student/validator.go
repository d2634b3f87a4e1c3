package student

import (
	"math"
	"strconv"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// ValidateOptions carries everything Validate needs from the session.
type ValidateOptions struct {
	// Required overrides DefaultRequired when non-empty.
	Required []Column

	// SessionLevel is applied to rows whose level tag is absent or not
	// recognised. LevelMixed (or the zero value) disables the fallback.
	SessionLevel Level
}

// ValidationReport is the result of a successful validation.
type ValidationReport struct {
	Records []Record

	// ClampedScores counts period-score cells forced into [0, 20].
	ClampedScores int
	// ClampedAttendance counts attendance cells forced into [0, 100].
	ClampedAttendance int
	// LevelFallbacks counts records that took the session level.
	LevelFallbacks int
	// SkippedRows counts fully blank rows.
	SkippedRows int
	// IgnoredColumns lists header cells that matched no known column.
	IgnoredColumns []string
}

// Validate turns a raw table into records. It is a pure function: the same
// table and options always give the same result.
//
// The first bad cell fails the whole batch; no partially valid dataset is
// ever returned.
func Validate(table RawTable, opts ValidateOptions) (*ValidationReport, error) {
	required := opts.Required
	if len(required) == 0 {
		required = DefaultRequired
	}

	index, ignored := mapHeader(table.Header)

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col.DisplayName())
		}
	}
	if len(missing) > 0 {
		return nil, &shared.MissingColumnsError{Names: missing}
	}

	report := &ValidationReport{
		Records:        make([]Record, 0, len(table.Rows)),
		IgnoredColumns: ignored,
	}

	for i, row := range table.Rows {
		rowNum := i + 1
		if isBlankRow(row) {
			report.SkippedRows++
			continue
		}

		cell := func(col Column) string {
			idx, ok := index[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		header := func(col Column) string {
			return strings.TrimSpace(table.Header[index[col]])
		}

		rec := Record{Row: rowNum}

		rec.Name = cell(ColName)
		if rec.Name == "" {
			return nil, &shared.MissingValueError{Field: header(ColName), Row: rowNum}
		}
		rec.ID = cell(ColID)
		rec.Behavior = cell(ColBehavior)

		for p, col := range PeriodColumns {
			raw := cell(col)
			v, err := ParseNumber(raw)
			if err != nil {
				return nil, &shared.NonNumericFieldError{Field: header(col), Row: rowNum, Value: raw}
			}
			s, clamped := shared.ClampScore(v)
			if clamped {
				report.ClampedScores++
			}
			rec.Scores[p] = s.Float64()
		}

		raw := cell(ColAttendance)
		v, err := ParseNumber(raw)
		if err != nil {
			return nil, &shared.NonNumericFieldError{Field: header(ColAttendance), Row: rowNum, Value: raw}
		}
		a, clamped := shared.ClampAttendance(v)
		if clamped {
			report.ClampedAttendance++
		}
		rec.Attendance = a.Float64()

		tag := cell(ColLevel)
		rec.LevelTag = tag
		if lvl, ok := ParseLevel(tag); ok {
			rec.Level = lvl
			rec.LevelSource = SourceTagged
		} else if opts.SessionLevel.IsConcrete() {
			rec.Level = opts.SessionLevel
			rec.LevelSource = SourceSessionDefault
			report.LevelFallbacks++
		} else {
			return nil, &shared.UnresolvedLevelError{Row: rowNum, Tag: tag}
		}

		report.Records = append(report.Records, rec)
	}

	return report, nil
}

func mapHeader(header []string) (map[Column]int, []string) {
	index := make(map[Column]int, len(header))
	var ignored []string
	for i, h := range header {
		col, ok := ResolveColumn(h)
		if !ok {
			if strings.TrimSpace(h) != "" {
				ignored = append(ignored, strings.TrimSpace(h))
			}
			continue
		}
		// first occurrence wins
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}
	return index, ignored
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseNumber reads a numeric cell. It accepts a comma decimal separator,
// a trailing percent sign and surrounding whitespace. Empty cells, NaN and
// infinities are errors.
func ParseNumber(s string) (float64, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimSuffix(t, "%")
	t = strings.TrimSpace(t)
	if strings.Contains(t, ",") && !strings.Contains(t, ".") {
		t = strings.Replace(t, ",", ".", 1)
	}
	if t == "" {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
