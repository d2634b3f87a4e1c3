package query

import (
	"context"
	"fmt"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// GetStudentQuery looks up one student by ID or name.
type GetStudentQuery struct {
	SessionID string
	Student   string
}

// StudentDetail is one aggregated record with its basic analysis.
type StudentDetail struct {
	Record   grading.AggregatedRecord `json:"record"`
	Analysis feedback.Report          `json:"analysis"`
}

// GetStudentHandler handles the GetStudentQuery. It never calls a provider.
type GetStudentHandler struct {
	sessions SessionReader
	scale    grading.Scale
}

func NewGetStudentHandler(sessions SessionReader, scale grading.Scale) *GetStudentHandler {
	return &GetStudentHandler{sessions: sessions, scale: orDefaultScale(scale)}
}

func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (*StudentDetail, error) {
	_, aggs, err := aggregated(ctx, h.sessions, q.SessionID, h.scale)
	if err != nil {
		return nil, fmt.Errorf("get_student: %w", err)
	}
	for _, a := range aggs {
		if a.Matches(q.Student) {
			return &StudentDetail{Record: a, Analysis: feedback.Fallback(a)}, nil
		}
	}
	return nil, fmt.Errorf("get_student: %q: %w", q.Student, shared.ErrStudentNotFound)
}
