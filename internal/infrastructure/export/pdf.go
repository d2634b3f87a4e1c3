package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// ErrNoStudents is returned when a PDF is requested for an empty selection.
var ErrNoStudents = errors.New("no students selected")

// PDFOptions controls the report document.
type PDFOptions struct {
	Title string
	// Letters adds a letter-grade column to the score table.
	Letters bool
}

// DefaultPDFOptions returns the standard report title with letters shown.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{Title: "Academic Report", Letters: true}
}

// WritePDF renders one page per record. If anything fails while building,
// nothing is written to w.
func WritePDF(w io.Writer, aggs []grading.AggregatedRecord, scale grading.Scale, opts PDFOptions) error {
	if len(aggs) == 0 {
		return wrapExport("WritePDF", ErrNoStudents)
	}
	if opts.Title == "" {
		opts.Title = DefaultPDFOptions().Title
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(opts.Title, true)
	pdf.SetMargins(20, 20, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, a := range aggs {
		addStudentPage(pdf, tr, a, scale, opts)
		if pdf.Err() {
			return wrapExport("WritePDF", pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return wrapExport("WritePDF", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return wrapExport("WritePDF", err)
	}
	return nil
}

func addStudentPage(pdf *fpdf.Fpdf, tr func(string) string, a grading.AggregatedRecord, scale grading.Scale, opts PDFOptions) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(opts.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr(a.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Level: "+a.Level.Label()), "", 1, "L", false, 0, "")
	if a.ID != "" {
		pdf.CellFormat(0, 6, tr("ID: "+a.ID), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	showLetters := opts.Letters && a.Letter != grading.NotApplicable
	scoreW, letterW := 60.0, 30.0

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(50, 7, "Period", "1", 0, "L", true, 0, "")
	if showLetters {
		pdf.CellFormat(scoreW, 7, "Score", "1", 0, "C", true, 0, "")
		pdf.CellFormat(letterW, 7, "Letter", "1", 1, "C", true, 0, "")
	} else {
		pdf.CellFormat(scoreW, 7, "Score", "1", 1, "C", true, 0, "")
	}

	pdf.SetFont("Helvetica", "", 10)
	for i, col := range student.PeriodColumns {
		pdf.CellFormat(50, 7, col.DisplayName(), "1", 0, "L", false, 0, "")
		if showLetters {
			pdf.CellFormat(scoreW, 7, num(a.Scores[i]), "1", 0, "C", false, 0, "")
			pdf.CellFormat(letterW, 7, scale.Classify(a.Scores[i], true), "1", 1, "C", false, 0, "")
		} else {
			pdf.CellFormat(scoreW, 7, num(a.Scores[i]), "1", 1, "C", false, 0, "")
		}
	}
	pdf.Ln(4)

	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	line("Average:", fmt.Sprintf("%s (minimum %s)", num(a.Average), num(a.MinScore)))
	if showLetters {
		line("Letter grade:", a.Letter)
	}
	line("Attendance:", fmt.Sprintf("%s%% (minimum %s%%)", num(a.Attendance), num(a.MinAttendance)))
	line("Status:", string(a.Status))
	if a.Behavior != "" {
		line("Behavior:", a.Behavior)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Recommendations", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, rec := range recommendations(a) {
		pdf.MultiCell(0, 6, tr("- "+rec), "", "L", false)
	}
}

// recommendations picks the block shown on a student page by the pass/fail
// branch.
func recommendations(a grading.AggregatedRecord) []string {
	if a.Passed() {
		return []string{
			"Keep up the current study habits and attendance",
			"Take on extension activities in the strongest subjects",
		}
	}
	return feedback.Fallback(a).Recommendations
}
