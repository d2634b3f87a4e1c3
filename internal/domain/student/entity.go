package student

import (
	"strings"
)

// PeriodCount is the number of grading periods per school year.
const PeriodCount = 4

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Record is one validated student row. Scores are clamped to [0, 20] and
// attendance to [0, 100]; a Record is never built from an unparseable cell.
type Record struct {
	// Row is the 1-based data row in the source table (header excluded).
	Row int `json:"row"`

	Name string `json:"name"`
	ID   string `json:"id,omitempty"`

	Level       Level       `json:"level"`
	LevelSource LevelSource `json:"level_source"`
	// LevelTag keeps the raw tag so a fallback can be explained to the user.
	LevelTag string `json:"level_tag,omitempty"`

	Scores     [PeriodCount]float64 `json:"scores"`
	Attendance float64              `json:"attendance"`
	Behavior   string               `json:"behavior,omitempty"`
}

// Key identifies the record inside a dataset: the ID when present, the name otherwise.
func (r Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// Matches reports whether query names this record, by ID or by
// case-insensitive name.
func (r Record) Matches(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	if r.ID != "" && r.ID == q {
		return true
	}
	return strings.EqualFold(r.Name, q)
}

// LevelFallback reports whether the level came from the session default.
func (r Record) LevelFallback() bool {
	return r.LevelSource == SourceSessionDefault
}

// RawTable is the untyped output of an input adapter: a header row and the
// data rows as strings.
type RawTable struct {
	Header []string
	Rows   [][]string
}
