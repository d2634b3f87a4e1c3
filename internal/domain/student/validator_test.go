package student

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/internal/domain/shared"
)

var sampleHeader = []string{"Nombre", "Bim1", "Bim2", "Bim3", "Bim4", "Asistencia", "Conducta"}

func TestValidate_SampleRows(t *testing.T) {
	table := RawTable{
		Header: sampleHeader,
		Rows: [][]string{
			{"Juan Pérez", "14", "15", "13", "16", "95", "Bueno"},
			{"Luis García", "8", "9", "10", "12", "70", "Bajo"},
		},
	}

	report, err := Validate(table, ValidateOptions{SessionLevel: LevelPrimary})
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	juan := report.Records[0]
	assert.Equal(t, 1, juan.Row)
	assert.Equal(t, "Juan Pérez", juan.Name)
	assert.Equal(t, [PeriodCount]float64{14, 15, 13, 16}, juan.Scores)
	assert.Equal(t, 95.0, juan.Attendance)
	assert.Equal(t, "Bueno", juan.Behavior)
	assert.Equal(t, LevelPrimary, juan.Level)
	assert.Equal(t, SourceSessionDefault, juan.LevelSource)
	assert.True(t, juan.LevelFallback())

	assert.Equal(t, 2, report.LevelFallbacks)
	assert.Zero(t, report.ClampedScores)
}

func TestValidate_MissingColumns(t *testing.T) {
	table := RawTable{
		Header: []string{"Nombre", "Bim1", "Bim2", "Bim3"},
		Rows:   [][]string{{"Ana", "1", "2", "3"}},
	}

	_, err := Validate(table, ValidateOptions{SessionLevel: LevelPrimary})
	require.Error(t, err)

	var missing *shared.MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"Bim4", "Attendance"}, missing.Names)
	assert.True(t, shared.IsValidation(err))
}

func TestValidate_NonNumericFailsWholeBatch(t *testing.T) {
	table := RawTable{
		Header: sampleHeader,
		Rows: [][]string{
			{"Juan", "14", "15", "13", "16", "95", ""},
			{"María", "16", "abc", "18", "17", "98", ""},
			{"Carlos", "11", "12", "xx", "13", "85", ""},
		},
	}

	report, err := Validate(table, ValidateOptions{SessionLevel: LevelPrimary})
	assert.Nil(t, report)

	var nonNumeric *shared.NonNumericFieldError
	require.True(t, errors.As(err, &nonNumeric))
	assert.Equal(t, "Bim2", nonNumeric.Field)
	assert.Equal(t, 2, nonNumeric.Row)
	assert.Equal(t, "abc", nonNumeric.Value)
}

func TestValidate_EmptyNumericCellIsRejected(t *testing.T) {
	table := RawTable{
		Header: sampleHeader,
		Rows:   [][]string{{"Juan", "14", "15", "13", "16", "", ""}},
	}

	_, err := Validate(table, ValidateOptions{SessionLevel: LevelPrimary})
	var nonNumeric *shared.NonNumericFieldError
	require.True(t, errors.As(err, &nonNumeric))
	assert.Equal(t, "Asistencia", nonNumeric.Field)
}

func TestValidate_ClampsOutOfRange(t *testing.T) {
	table := RawTable{
		Header: sampleHeader,
		Rows:   [][]string{{"Ana", "25", "-2", "19,5", "18", "120%", ""}},
	}

	report, err := Validate(table, ValidateOptions{SessionLevel: LevelSecondary})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, [PeriodCount]float64{20, 0, 19.5, 18}, rec.Scores)
	assert.Equal(t, 100.0, rec.Attendance)
	assert.Equal(t, 2, report.ClampedScores)
	assert.Equal(t, 1, report.ClampedAttendance)
}

func TestValidate_LevelResolution(t *testing.T) {
	header := append([]string{"Nivel"}, sampleHeader...)
	table := RawTable{
		Header: header,
		Rows: [][]string{
			{"3ro Primaria", "Ana", "18", "17", "19", "18", "97", ""},
			{"Secundaria", "Luis", "8", "9", "10", "12", "70", ""},
			{"??", "Carlos", "11", "12", "10", "13", "85", ""},
		},
	}

	report, err := Validate(table, ValidateOptions{SessionLevel: LevelSecondary})
	require.NoError(t, err)
	assert.Equal(t, LevelPrimary, report.Records[0].Level)
	assert.Equal(t, SourceTagged, report.Records[0].LevelSource)
	assert.Equal(t, LevelSecondary, report.Records[1].Level)
	assert.Equal(t, LevelSecondary, report.Records[2].Level)
	assert.Equal(t, SourceSessionDefault, report.Records[2].LevelSource)
	assert.Equal(t, "??", report.Records[2].LevelTag)
	assert.Equal(t, 1, report.LevelFallbacks)

	_, err = Validate(table, ValidateOptions{SessionLevel: LevelMixed})
	var unresolved *shared.UnresolvedLevelError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, 3, unresolved.Row)
	assert.Equal(t, "??", unresolved.Tag)
}

func TestValidate_EmptyNameAndBlankRows(t *testing.T) {
	table := RawTable{
		Header: sampleHeader,
		Rows: [][]string{
			{"", "", "", "", "", "", ""},
			{" ", "14", "15", "13", "16", "95", ""},
		},
	}

	_, err := Validate(table, ValidateOptions{SessionLevel: LevelPrimary})
	var missing *shared.MissingValueError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 2, missing.Row)
	assert.Equal(t, "Nombre", missing.Field)
}

func TestValidate_IgnoresExtraColumnsAndAliases(t *testing.T) {
	table := RawTable{
		Header: []string{"Student", "Code", "P1", "P2", "Period 3", "bimestre_4", "Attendance", "Notes"},
		Rows:   [][]string{{"Ana", "A-01", "18", "17", "19", "18", "97", "n/a"}},
	}

	report, err := Validate(table, ValidateOptions{SessionLevel: LevelPrimary})
	require.NoError(t, err)
	assert.Equal(t, "A-01", report.Records[0].ID)
	assert.Equal(t, []string{"Notes"}, report.IgnoredColumns)
}

func TestValidate_IsDeterministic(t *testing.T) {
	table := RawTable{
		Header: sampleHeader,
		Rows:   [][]string{{"Juan", "14", "15", "13", "16", "95", "Bueno"}},
	}
	opts := ValidateOptions{SessionLevel: LevelPrimary}

	first, err := Validate(table, opts)
	require.NoError(t, err)
	second, err := Validate(table, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"14", 14, false},
		{" 14.5 ", 14.5, false},
		{"14,5", 14.5, false},
		{"95%", 95, false},
		{"", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseNumber(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
