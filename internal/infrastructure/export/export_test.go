package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

func sampleAggregates(t *testing.T) []grading.AggregatedRecord {
	t.Helper()
	report, err := student.Validate(student.SampleTable(), student.ValidateOptions{SessionLevel: student.LevelPrimary})
	require.NoError(t, err)
	return grading.Aggregate(report.Records, grading.DefaultThresholds(), grading.DefaultScale())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleAggregates(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, "MinAttendance", rows[0][11])
	assert.Equal(t, []string{
		"Juan Pérez", "", "primary", "14", "15", "13", "16", "95", "Bueno", "14.5", "11", "80", "Passed", "A",
	}, rows[1])
	assert.Equal(t, []string{
		"Luis García", "", "primary", "8", "9", "10", "12", "70", "Bajo", "9.8", "11", "80", "Failed", "C",
	}, rows[5])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{CSVHeader}, rows)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_WriterError(t *testing.T) {
	err := WriteCSV(failingWriter{}, sampleAggregates(t))
	assert.ErrorIs(t, err, shared.ErrExport)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	aggs := sampleAggregates(t)
	require.NoError(t, WritePDF(&buf, aggs, grading.DefaultScale(), DefaultPDFOptions()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	var single bytes.Buffer
	require.NoError(t, WritePDF(&single, aggs[:1], grading.DefaultScale(), PDFOptions{Letters: false}))
	assert.True(t, bytes.HasPrefix(single.Bytes(), []byte("%PDF-")))
	assert.Less(t, single.Len(), buf.Len())
}

func TestWritePDF_NoStudents(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDF(&buf, nil, grading.DefaultScale(), DefaultPDFOptions())
	assert.ErrorIs(t, err, shared.ErrExport)
	assert.ErrorIs(t, err, ErrNoStudents)
	assert.Zero(t, buf.Len())
}

func TestRecommendations(t *testing.T) {
	aggs := sampleAggregates(t)
	assert.Contains(t, recommendations(aggs[0]), "Keep up the current study habits and attendance")

	failed := recommendations(aggs[4])
	assert.Contains(t, failed, "Reinforce the topics with the lowest scores")
	assert.Contains(t, failed, "Improve class attendance")
}
