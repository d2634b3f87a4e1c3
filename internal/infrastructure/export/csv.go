// Package export renders aggregated records as downloadable reports. Every
// writer builds the full document in memory first, so a failure never leaves
// a partial file behind.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// CSVHeader is the header row of the annotated table.
var CSVHeader = []string{
	"Name", "ID", "Level", "Bim1", "Bim2", "Bim3", "Bim4",
	"Attendance", "Behavior", "Average", "MinScore", "MinAttendance", "Status", "Letter",
}

// WriteCSV writes the annotated table as UTF-8, comma-delimited CSV.
func WriteCSV(w io.Writer, aggs []grading.AggregatedRecord) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(CSVHeader); err != nil {
		return wrapExport("WriteCSV", err)
	}
	for _, a := range aggs {
		row := []string{
			a.Name,
			a.ID,
			string(a.Level),
			num(a.Scores[0]), num(a.Scores[1]), num(a.Scores[2]), num(a.Scores[3]),
			num(a.Attendance),
			a.Behavior,
			num(a.Average),
			num(a.MinScore),
			num(a.MinAttendance),
			string(a.Status),
			a.Letter,
		}
		if err := cw.Write(row); err != nil {
			return wrapExport("WriteCSV", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return wrapExport("WriteCSV", err)
	}

	if _, err := buf.WriteTo(w); err != nil {
		return wrapExport("WriteCSV", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func wrapExport(op string, err error) error {
	return shared.WrapError("export", op, shared.ErrExport, fmt.Sprintf("%s failed", op), err)
}
