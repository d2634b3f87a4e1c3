package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
	"github.com/aula-hub/gradebook/internal/infrastructure/persistence/memory"
)

var testNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type flags map[string]bool

func (f flags) IsEnabled(name, _ string) bool {
	on, ok := f[name]
	return !ok || on
}

func newStore() *memory.SessionStore {
	return memory.NewSessionStore().WithClock(func() time.Time { return testNow })
}

func settings() session.Settings {
	return session.Settings{
		Thresholds: grading.DefaultThresholds(),
		Feedback:   session.FeedbackSettings{Provider: feedback.ProviderNone},
	}
}

// seed stores a session holding the sample dataset.
func seed(t *testing.T, store *memory.SessionStore) *session.Session {
	t.Helper()
	sess := session.New(settings(), session.DefaultTTL, testNow)
	report, err := student.Validate(student.SampleTable(), student.ValidateOptions{SessionLevel: student.LevelPrimary})
	require.NoError(t, err)
	sess.ReplaceDataset(session.NewDataset(session.SampleSource, report, testNow), testNow)
	require.NoError(t, store.Save(context.Background(), sess))
	return sess
}

func seedEmpty(t *testing.T, store *memory.SessionStore) *session.Session {
	t.Helper()
	sess := session.New(settings(), session.DefaultTTL, testNow)
	require.NoError(t, store.Save(context.Background(), sess))
	return sess
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

func TestGetSession(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetSessionHandler(store)

	dto, err := h.Handle(context.Background(), GetSessionQuery{SessionID: sess.ID})
	require.NoError(t, err)

	want := &DatasetDTO{
		Source:         session.SampleSource,
		LoadedAt:       testNow,
		Records:        5,
		LevelFallbacks: 5,
	}
	if diff := cmp.Diff(want, dto.Dataset); diff != "" {
		t.Errorf("dataset mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, sess.ID, dto.ID)
	assert.Equal(t, testNow.Add(session.DefaultTTL), dto.ExpiresAt)
}

func TestGetSession_Errors(t *testing.T) {
	store := newStore()
	h := NewGetSessionHandler(store)

	_, err := h.Handle(context.Background(), GetSessionQuery{})
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)

	_, err = h.Handle(context.Background(), GetSessionQuery{SessionID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetSession_WithoutDataset(t *testing.T) {
	store := newStore()
	sess := seedEmpty(t, store)

	dto, err := NewGetSessionHandler(store).Handle(context.Background(), GetSessionQuery{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Nil(t, dto.Dataset)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetRecords(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetRecordsHandler(store, grading.DefaultScale())

	tests := []struct {
		name  string
		query GetRecordsQuery
		want  []string
	}{
		{
			name:  "no filters",
			query: GetRecordsQuery{},
			want:  []string{"Juan Pérez", "María López", "Carlos Quispe", "Ana Mendoza", "Luis García"},
		},
		{
			name:  "failed only",
			query: GetRecordsQuery{Status: "FAILED"},
			want:  []string{"Luis García"},
		},
		{
			name:  "passed primary",
			query: GetRecordsQuery{Status: "passed", Level: "primary"},
			want:  []string{"Juan Pérez", "María López", "Carlos Quispe", "Ana Mendoza"},
		},
		{
			name:  "secondary has nobody",
			query: GetRecordsQuery{Level: "secondary"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.SessionID = sess.ID
			res, err := h.Handle(context.Background(), q)
			require.NoError(t, err)

			names := make([]string, 0, len(res.Records))
			for _, r := range res.Records {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, 5, res.Total)
			assert.Equal(t, 5, res.LevelFallbacks)
		})
	}
}

func TestGetRecords_InvalidFilters(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetRecordsHandler(store, grading.DefaultScale())

	_, err := h.Handle(context.Background(), GetRecordsQuery{SessionID: sess.ID, Status: "maybe"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetRecordsQuery{SessionID: sess.ID, Level: "tertiary"})
	assert.True(t, shared.IsValidation(err))
}

func TestGetRecords_NoDataset(t *testing.T) {
	store := newStore()
	sess := seedEmpty(t, store)

	_, err := NewGetRecordsHandler(store, grading.DefaultScale()).
		Handle(context.Background(), GetRecordsQuery{SessionID: sess.ID})
	assert.ErrorIs(t, err, shared.ErrNoDataset)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

func TestGetSummary(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetSummaryHandler(store, grading.DefaultScale(), 3, nil)

	s, err := h.Handle(context.Background(), GetSummaryQuery{SessionID: sess.ID})
	require.NoError(t, err)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 80.0, s.PassPercentage)
	assert.Equal(t, 5, s.LevelFallbacks)
	require.Len(t, s.Top, 3)
	assert.Equal(t, "Ana Mendoza", s.Top[0].Name)
	assert.Equal(t, 1, s.Top[0].Rank)
}

func TestGetSummary_TopNBounds(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetSummaryHandler(store, grading.DefaultScale(), 0, nil)

	s, err := h.Handle(context.Background(), GetSummaryQuery{SessionID: sess.ID, TopN: 2})
	require.NoError(t, err)
	assert.Len(t, s.Top, 2)

	s, err = h.Handle(context.Background(), GetSummaryQuery{SessionID: sess.ID, TopN: 1000})
	require.NoError(t, err)
	assert.Len(t, s.Top, 5)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetCharts(t *testing.T) {
	store := newStore()
	sess := seed(t, store)

	series, err := NewGetChartsHandler(store, grading.DefaultScale(), nil).
		Handle(context.Background(), GetChartsQuery{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Len(t, series.PeriodMeans, 4)
	assert.Len(t, series.Scatter, 5)
	assert.Equal(t, float64(grading.DefaultMinScore), series.MinScoreLine)
}

func TestGetCharts_Disabled(t *testing.T) {
	store := newStore()
	sess := seed(t, store)

	_, err := NewGetChartsHandler(store, grading.DefaultScale(), flags{config.FeatureAnalyticsCharts: false}).
		Handle(context.Background(), GetChartsQuery{SessionID: sess.ID})
	assert.ErrorIs(t, err, shared.ErrFeatureDisabled)
}

func TestGetClusters(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetClustersHandler(store, grading.DefaultScale(), 0, nil)

	g, err := h.Handle(context.Background(), GetClustersQuery{SessionID: sess.ID, K: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, g.K)
	assert.Len(t, g.Members, 5)

	for _, m := range g.Members {
		if m.Name == "Luis García" {
			assert.Equal(t, 1, m.Group)
		}
	}

	// Repeated runs give the same grouping.
	again, err := h.Handle(context.Background(), GetClustersQuery{SessionID: sess.ID, K: 2})
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

func TestGetClusters_Validation(t *testing.T) {
	store := newStore()
	sess := seed(t, store)

	h := NewGetClustersHandler(store, grading.DefaultScale(), 0, nil)
	_, err := h.Handle(context.Background(), GetClustersQuery{SessionID: sess.ID, K: MaxClusters + 1})
	assert.True(t, shared.IsValidation(err))

	h = NewGetClustersHandler(store, grading.DefaultScale(), 0, flags{config.FeatureAnalyticsClusters: false})
	_, err = h.Handle(context.Background(), GetClustersQuery{SessionID: sess.ID})
	assert.ErrorIs(t, err, shared.ErrFeatureDisabled)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

func TestGetStudent(t *testing.T) {
	store := newStore()
	sess := seed(t, store)
	h := NewGetStudentHandler(store, grading.DefaultScale())

	detail, err := h.Handle(context.Background(), GetStudentQuery{SessionID: sess.ID, Student: "luis garcía"})
	require.NoError(t, err)
	assert.Equal(t, "Luis García", detail.Record.Name)
	assert.Equal(t, grading.StatusFailed, detail.Record.Status)
	assert.Contains(t, detail.Analysis.Recommendations, feedback.RecommendReinforce)
	assert.Contains(t, detail.Analysis.Recommendations, feedback.RecommendAttendance)

	_, err = h.Handle(context.Background(), GetStudentQuery{SessionID: sess.ID, Student: "Nobody"})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}
