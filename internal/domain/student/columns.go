package student

import (
	"strings"
)

// Column is a canonical column identifier, independent of the header text
// used in a particular file.
type Column string

const (
	ColName       Column = "name"
	ColID         Column = "id"
	ColLevel      Column = "level"
	ColPeriod1    Column = "period1"
	ColPeriod2    Column = "period2"
	ColPeriod3    Column = "period3"
	ColPeriod4    Column = "period4"
	ColAttendance Column = "attendance"
	ColBehavior   Column = "behavior"
)

// PeriodColumns lists the score columns in period order.
var PeriodColumns = [PeriodCount]Column{ColPeriod1, ColPeriod2, ColPeriod3, ColPeriod4}

// DefaultRequired are the columns every dataset must carry.
var DefaultRequired = []Column{ColName, ColPeriod1, ColPeriod2, ColPeriod3, ColPeriod4, ColAttendance}

// DisplayName is the header written by exports and used in error messages.
func (c Column) DisplayName() string {
	switch c {
	case ColName:
		return "Name"
	case ColID:
		return "ID"
	case ColLevel:
		return "Level"
	case ColPeriod1:
		return "Bim1"
	case ColPeriod2:
		return "Bim2"
	case ColPeriod3:
		return "Bim3"
	case ColPeriod4:
		return "Bim4"
	case ColAttendance:
		return "Attendance"
	case ColBehavior:
		return "Behavior"
	default:
		return string(c)
	}
}

var columnAliases = map[string]Column{
	"name":       ColName,
	"nombre":     ColName,
	"student":    ColName,
	"estudiante": ColName,
	"alumno":     ColName,

	"id":     ColID,
	"code":   ColID,
	"codigo": ColID,
	"dni":    ColID,

	"level": ColLevel,
	"nivel": ColLevel,
	"grade": ColLevel,
	"grado": ColLevel,

	"attendance": ColAttendance,
	"asistencia": ColAttendance,

	"behavior":  ColBehavior,
	"behaviour": ColBehavior,
	"conducta":  ColBehavior,
}

func init() {
	for i, col := range PeriodColumns {
		n := string(rune('1' + i))
		for _, prefix := range []string{"bim", "bimestre", "p", "period", "periodo"} {
			columnAliases[prefix+n] = col
		}
	}
}

var headerNormalizer = strings.NewReplacer(
	" ", "", "_", "", "-", "", ".", "",
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
)

// ResolveColumn maps a header cell to its canonical column.
func ResolveColumn(header string) (Column, bool) {
	h := strings.TrimPrefix(strings.TrimSpace(header), "\ufeff")
	key := headerNormalizer.Replace(strings.ToLower(h))
	col, ok := columnAliases[key]
	return col, ok
}
