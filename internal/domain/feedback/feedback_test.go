package feedback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

func aggregated(scores [4]float64, attendance float64, behavior string) grading.AggregatedRecord {
	r := student.Record{
		Row:         1,
		Name:        "Juan Pérez",
		Level:       student.LevelPrimary,
		LevelSource: student.SourceTagged,
		Scores:      scores,
		Attendance:  attendance,
		Behavior:    behavior,
	}
	return grading.AggregateOne(r, grading.DefaultThresholds(), grading.DefaultScale())
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(aggregated([4]float64{14, 15, 13, 16}, 95, "Bueno"))

	assert.Equal(t, "Juan Pérez", p.Student)
	assert.Contains(t, p.Text, "Juan Pérez")
	assert.Contains(t, p.Text, "Period scores: 14, 15, 13, 16")
	assert.Contains(t, p.Text, "Final average: 14.5 (passing minimum: 11)")
	assert.Contains(t, p.Text, "Attendance: 95% (required minimum: 80%)")
	assert.Contains(t, p.Text, "Behavior: Bueno")
	assert.Contains(t, p.Text, "Letter grade: A")
	assert.Contains(t, p.Text, "Personalised strategies")
	assert.Contains(t, p.Text, "professional but warm")
}

func TestBuildPrompt_MissingBehaviorAndLetters(t *testing.T) {
	a := aggregated([4]float64{14, 15, 13, 16}, 95, "")
	a.Letter = grading.NotApplicable

	p := BuildPrompt(a)
	assert.Contains(t, p.Text, "Behavior: not specified")
	assert.NotContains(t, p.Text, "Letter grade")
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name       string
		scores     [4]float64
		attendance float64
		wantRecs   []string
		scoreWord  string
		attendWord string
	}{
		{
			name:       "passing on both",
			scores:     [4]float64{14, 15, 13, 16},
			attendance: 95,
			wantRecs:   []string{RecommendTutor},
			scoreWord:  "meets",
			attendWord: "meets",
		},
		{
			name:       "low attendance",
			scores:     [4]float64{14, 15, 13, 16},
			attendance: 70,
			wantRecs:   []string{RecommendAttendance, RecommendTutor},
			scoreWord:  "meets",
			attendWord: "below",
		},
		{
			name:       "failing on both",
			scores:     [4]float64{8, 9, 10, 12},
			attendance: 70,
			wantRecs:   []string{RecommendReinforce, RecommendAttendance, RecommendTutor},
			scoreWord:  "below",
			attendWord: "below",
		},
		{
			name:       "exactly at minimum",
			scores:     [4]float64{11, 11, 11, 11},
			attendance: 80,
			wantRecs:   []string{RecommendTutor},
			scoreWord:  "meets",
			attendWord: "meets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Fallback(aggregated(tt.scores, tt.attendance, ""))
			assert.Equal(t, tt.wantRecs, r.Recommendations)
			assert.Contains(t, r.ScoreStatement, tt.scoreWord)
			assert.Contains(t, r.AttendanceStatement, tt.attendWord)
		})
	}
}

func TestReport_String(t *testing.T) {
	s := Fallback(aggregated([4]float64{8, 9, 10, 12}, 70, "")).String()

	assert.Contains(t, s, "Final average (9.8) is below the required minimum (11)")
	assert.Contains(t, s, "Attendance (70%) is below the required minimum (80%)")
	assert.Contains(t, s, "- "+RecommendTutor)
}

func TestResolve(t *testing.T) {
	a := aggregated([4]float64{14, 15, 13, 16}, 70, "")
	cfg := ProviderConfig{Provider: ProviderAnthropic, APIKey: "k"}

	t.Run("success", func(t *testing.T) {
		var got ProviderConfig
		req := RequesterFunc(func(_ context.Context, p Prompt, c ProviderConfig) Result {
			got = c
			return Success(c.Provider, "Great work")
		})

		out := Resolve(context.Background(), req, a, cfg)
		assert.Equal(t, SourceAI, out.Source)
		assert.Equal(t, "Great work", out.Text)
		assert.Nil(t, out.Fallback)
		assert.Equal(t, DefaultTimeout, got.Timeout)
	})

	t.Run("unavailable", func(t *testing.T) {
		req := RequesterFunc(func(context.Context, Prompt, ProviderConfig) Result {
			return Unavailable(ProviderAnthropic, "status 500")
		})

		out := Resolve(context.Background(), req, a, cfg)
		assert.Equal(t, SourceFallback, out.Source)
		require.NotNil(t, out.Fallback)
		assert.Equal(t, "status 500", out.Reason)
		assert.Contains(t, out.Text, "Final average (14.5)")
		assert.Contains(t, out.Text, "Attendance (70%)")
	})

	t.Run("disabled", func(t *testing.T) {
		out := Resolve(context.Background(), nil, a, cfg)
		assert.Equal(t, SourceFallback, out.Source)

		out = Resolve(context.Background(), RequesterFunc(func(context.Context, Prompt, ProviderConfig) Result {
			t.Fatal("requester must not be called")
			return Result{}
		}), a, ProviderConfig{Provider: ProviderNone})
		assert.Equal(t, SourceFallback, out.Source)
	})
}
