package query

import (
	"context"
	"fmt"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/domain/cohort"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHART SERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetChartsQuery names the session.
type GetChartsQuery struct {
	SessionID string
}

// GetChartsHandler serves the dashboard chart series.
type GetChartsHandler struct {
	sessions SessionReader
	scale    grading.Scale
	features FeatureChecker
}

func NewGetChartsHandler(sessions SessionReader, scale grading.Scale, features FeatureChecker) *GetChartsHandler {
	return &GetChartsHandler{sessions: sessions, scale: orDefaultScale(scale), features: orAllEnabled(features)}
}

func (h *GetChartsHandler) Handle(ctx context.Context, q GetChartsQuery) (*cohort.Series, error) {
	sess, aggs, err := aggregated(ctx, h.sessions, q.SessionID, h.scale)
	if err != nil {
		return nil, fmt.Errorf("get_charts: %w", err)
	}
	if !h.features.IsEnabled(config.FeatureAnalyticsCharts, sess.ID) {
		return nil, fmt.Errorf("get_charts: %w", shared.ErrFeatureDisabled)
	}
	series := cohort.BuildSeries(aggs, sess.Settings.Thresholds, h.scale)
	return &series, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT GROUPS
// ══════════════════════════════════════════════════════════════════════════════

// MaxClusters caps k.
const MaxClusters = 10

// GetClustersQuery names the session and the number of groups.
type GetClustersQuery struct {
	SessionID string
	// K <= 0 selects the configured default.
	K int
}

// Validate checks k.
func (q GetClustersQuery) Validate() error {
	if q.K > MaxClusters {
		return shared.NewDomainError("query", "GetClusters", shared.ErrValueOutOfRange,
			fmt.Sprintf("k must be at most %d", MaxClusters))
	}
	return nil
}

// GetClustersHandler groups students by average and attendance.
type GetClustersHandler struct {
	sessions SessionReader
	scale    grading.Scale
	defaultK int
	features FeatureChecker
}

func NewGetClustersHandler(sessions SessionReader, scale grading.Scale, defaultK int, features FeatureChecker) *GetClustersHandler {
	if defaultK <= 0 {
		defaultK = cohort.DefaultClusters
	}
	return &GetClustersHandler{
		sessions: sessions,
		scale:    orDefaultScale(scale),
		defaultK: defaultK,
		features: orAllEnabled(features),
	}
}

func (h *GetClustersHandler) Handle(ctx context.Context, q GetClustersQuery) (*cohort.Grouping, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_clusters: %w", err)
	}
	sess, aggs, err := aggregated(ctx, h.sessions, q.SessionID, h.scale)
	if err != nil {
		return nil, fmt.Errorf("get_clusters: %w", err)
	}
	if !h.features.IsEnabled(config.FeatureAnalyticsClusters, sess.ID) {
		return nil, fmt.Errorf("get_clusters: %w", shared.ErrFeatureDisabled)
	}

	k := q.K
	if k <= 0 {
		k = h.defaultK
	}
	grouping := cohort.KMeans(aggs, k)
	return &grouping, nil
}
