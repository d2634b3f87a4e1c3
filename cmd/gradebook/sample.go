package main

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/internal/domain/student"
)

var sampleOut string

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write the built-in sample table as CSV",
	Long: `Write the demonstration dataset as CSV. It is a starting template for
real tables: one row per student, four period scores, attendance and
behavior.

Examples:
  gradebook sample > grades.csv
  gradebook sample --out grades.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		body, err := sampleCSV()
		if err != nil {
			return err
		}
		return writeOutput(cmd, sampleOut, body)
	},
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleOut, "out", "o", "", "output file (stdout when empty)")
}

func sampleCSV() ([]byte, error) {
	t := student.SampleTable()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, fmt.Errorf("failed to write sample header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("failed to write sample rows: %w", err)
	}
	return buf.Bytes(), nil
}
