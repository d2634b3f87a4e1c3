package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/application/query"
)

var reportFlags struct {
	inputFlags
	format   string
	out      string
	students []string
	top      int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a CSV, PDF or summary report from a table",
	Long: `Validate a table with the configured thresholds and write a report.

Formats:
  csv      per-student results with averages, letters and status
  pdf      one page per student (use --student to select)
  summary  cohort counts, means and the top students as JSON

Examples:
  # CSV report to stdout
  gradebook report --input grades.xlsx --format csv

  # PDF for two students
  gradebook report --sample --format pdf --student "Ana Mendoza" --student "Luis García" --out report.pdf`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportFlags.register(reportCmd)
	reportCmd.Flags().StringVarP(&reportFlags.format, "format", "f", "csv", "csv, pdf or summary")
	reportCmd.Flags().StringVarP(&reportFlags.out, "out", "o", "", "output file (stdout when empty)")
	reportCmd.Flags().StringArrayVar(&reportFlags.students, "student", nil, "student name or ID (repeatable)")
	reportCmd.Flags().IntVar(&reportFlags.top, "top", 0, "number of top students in the summary")
}

func runReport(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(reportFlags.format)
	switch format {
	case "csv", "pdf", "summary":
	default:
		return fmt.Errorf("unknown format %q", reportFlags.format)
	}
	if format == "pdf" && (reportFlags.out == "" || reportFlags.out == "-") {
		return errBinaryToTerminal
	}

	ctx := cmd.Context()
	s, err := openOffline(ctx, reportFlags.inputFlags, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if format == "summary" {
		summary, err := s.getSummary.Handle(ctx, query.GetSummaryQuery{SessionID: s.id, TopN: reportFlags.top})
		if err != nil {
			return err
		}
		body, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		return writeOutput(cmd, reportFlags.out, append(body, '\n'))
	}

	res, err := s.exportReport.Handle(ctx, command.ExportReportCommand{
		SessionID: s.id,
		Format:    command.Format(format),
		Students:  reportFlags.students,
	})
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, reportFlags.out, res.Body); err != nil {
		return err
	}
	if reportFlags.out != "" && reportFlags.out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d students, %d bytes)\n", reportFlags.out, res.Students, len(res.Body))
	}
	return nil
}
