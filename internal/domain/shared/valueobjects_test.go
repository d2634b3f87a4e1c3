package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampScore(t *testing.T) {
	s, changed := ClampScore(25)
	assert.Equal(t, Score(20), s)
	assert.True(t, changed)

	s, changed = ClampScore(-3)
	assert.Equal(t, Score(0), s)
	assert.True(t, changed)

	s, changed = ClampScore(12.5)
	assert.Equal(t, Score(12.5), s)
	assert.False(t, changed)
}

func TestClampAttendance(t *testing.T) {
	a, changed := ClampAttendance(120)
	assert.Equal(t, Attendance(100), a)
	assert.True(t, changed)

	a, changed = ClampAttendance(80)
	assert.Equal(t, Attendance(80), a)
	assert.False(t, changed)
}

func TestRound1_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 14.3, Round1(14.25))
	assert.Equal(t, 14.5, Round1(14.5))
	assert.Equal(t, 10.0, Round1(9.95))
	assert.Equal(t, 0.0, Round1(0))
}

func TestMeanRound1(t *testing.T) {
	assert.Equal(t, 14.5, MeanRound1([]float64{14, 15, 13, 16}))
	assert.Equal(t, 14.5, MeanRound1([]float64{16, 13, 15, 14}))
	assert.Equal(t, 14.3, MeanRound1([]float64{14, 14, 14, 15}))
	assert.Equal(t, 0.0, MeanRound1(nil))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 60.0, Percentage(3, 5))
	assert.Equal(t, 33.3, Percentage(1, 3))
	assert.Equal(t, 66.7, Percentage(2, 3))
	assert.Equal(t, 0.0, Percentage(0, 0))
}

func TestDatasetErrors_MatchKinds(t *testing.T) {
	var err error = &NonNumericFieldError{Field: "Bim2", Row: 4, Value: "x"}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "Bim2")
	assert.Contains(t, err.Error(), "row 4")

	err = &MissingColumnsError{Names: []string{"Asistencia", "Bim4"}}
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "Asistencia, Bim4")

	assert.True(t, IsValidation(&UnresolvedLevelError{Row: 2, Tag: "??"}))
	assert.True(t, IsValidation(&MissingValueError{Field: "Nombre", Row: 1}))

	assert.True(t, IsNotFound(ErrSessionNotFound))
	assert.True(t, IsExternalService(ErrProviderTimeout))
	assert.False(t, IsExternalService(ErrNoDataset))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError("export", "PDF", ErrExport, "render report", cause)
	assert.True(t, errors.Is(err, ErrExport))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "export.PDF: render report: disk full", err.Error())
}
