package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/cohort"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECORDS QUERY
// Lists the aggregated records of a session, optionally filtered.
// ══════════════════════════════════════════════════════════════════════════════

// GetRecordsQuery holds the filters. Empty filters match everything.
type GetRecordsQuery struct {
	SessionID string

	// Status is "passed" or "failed", case-insensitive.
	Status string

	// Level is "primary" or "secondary".
	Level string
}

// Validate parses the filters.
func (q GetRecordsQuery) Validate() (grading.Status, student.Level, error) {
	var status grading.Status
	switch strings.ToLower(strings.TrimSpace(q.Status)) {
	case "":
	case "passed":
		status = grading.StatusPassed
	case "failed":
		status = grading.StatusFailed
	default:
		return "", "", shared.NewDomainError("query", "GetRecords", shared.ErrInvalidInput,
			fmt.Sprintf("unknown status filter %q", q.Status))
	}

	var level student.Level
	if l := strings.TrimSpace(q.Level); l != "" {
		parsed, ok := student.ParseLevel(l)
		if !ok {
			return "", "", shared.NewDomainError("query", "GetRecords", shared.ErrInvalidInput,
				fmt.Sprintf("unknown level filter %q", q.Level))
		}
		level = parsed
	}
	return status, level, nil
}

// RecordsResult is the filtered list.
type RecordsResult struct {
	Records []grading.AggregatedRecord `json:"records"`
	// Total counts all records before filtering.
	Total          int `json:"total"`
	LevelFallbacks int `json:"level_fallbacks"`
}

// GetRecordsHandler handles the GetRecordsQuery.
type GetRecordsHandler struct {
	sessions SessionReader
	scale    grading.Scale
}

func NewGetRecordsHandler(sessions SessionReader, scale grading.Scale) *GetRecordsHandler {
	return &GetRecordsHandler{sessions: sessions, scale: orDefaultScale(scale)}
}

func (h *GetRecordsHandler) Handle(ctx context.Context, q GetRecordsQuery) (*RecordsResult, error) {
	status, level, err := q.Validate()
	if err != nil {
		return nil, fmt.Errorf("get_records: %w", err)
	}
	_, aggs, err := aggregated(ctx, h.sessions, q.SessionID, h.scale)
	if err != nil {
		return nil, fmt.Errorf("get_records: %w", err)
	}

	res := &RecordsResult{
		Records: cohort.Filter(aggs, status, level),
		Total:   len(aggs),
	}
	for _, a := range aggs {
		if a.LevelFallback() {
			res.LevelFallbacks++
		}
	}
	return res, nil
}
