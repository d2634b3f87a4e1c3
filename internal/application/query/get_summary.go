package query

import (
	"context"
	"fmt"

	"github.com/aula-hub/gradebook/internal/domain/cohort"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUMMARY QUERY
// Cohort counts, pass percentages, means, the per-level breakdown and the
// top-N list.
// ══════════════════════════════════════════════════════════════════════════════

// MaxTopN caps the top list.
const MaxTopN = 100

// GetSummaryQuery names the session and the size of the top list.
type GetSummaryQuery struct {
	SessionID string
	// TopN <= 0 selects the configured default.
	TopN int
}

// GetSummaryHandler handles the GetSummaryQuery.
type GetSummaryHandler struct {
	sessions    SessionReader
	scale       grading.Scale
	defaultTopN int
	log         *logger.Logger
}

func NewGetSummaryHandler(sessions SessionReader, scale grading.Scale, defaultTopN int, log *logger.Logger) *GetSummaryHandler {
	if defaultTopN <= 0 {
		defaultTopN = cohort.DefaultTopN
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetSummaryHandler{sessions: sessions, scale: orDefaultScale(scale), defaultTopN: defaultTopN, log: log}
}

func (h *GetSummaryHandler) Handle(ctx context.Context, q GetSummaryQuery) (*cohort.Summary, error) {
	top := q.TopN
	if top <= 0 {
		top = h.defaultTopN
	}
	if top > MaxTopN {
		top = MaxTopN
	}

	sess, aggs, err := aggregated(ctx, h.sessions, q.SessionID, h.scale)
	if err != nil {
		return nil, fmt.Errorf("get_summary: %w", err)
	}

	summary := cohort.Summarize(aggs, top)
	if summary.LevelFallbacks > 0 {
		h.log.Warn("summary includes records with the session level",
			logger.SessionID(sess.ID),
			logger.Int("records", summary.LevelFallbacks),
		)
	}
	return &summary, nil
}
