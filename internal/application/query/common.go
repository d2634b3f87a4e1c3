// Package query contains the read side of the dashboard. Queries never
// modify a session: every derived value is recomputed from the stored
// records and the session's current settings.
package query

import (
	"context"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// SessionReader is the part of session.Store queries need.
type SessionReader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// FeatureChecker reports whether an optional feature is on for a session.
type FeatureChecker interface {
	IsEnabled(name, sessionID string) bool
}

type allEnabled struct{}

func (allEnabled) IsEnabled(string, string) bool { return true }

func orAllEnabled(f FeatureChecker) FeatureChecker {
	if f == nil {
		return allEnabled{}
	}
	return f
}

func orDefaultScale(s grading.Scale) grading.Scale {
	if len(s.Bands()) == 0 {
		return grading.DefaultScale()
	}
	return s
}

func getSession(ctx context.Context, r SessionReader, id string) (*session.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrSessionNotFound
	}
	return r.Get(ctx, id)
}

// aggregated loads a session and derives its records.
func aggregated(ctx context.Context, r SessionReader, id string, scale grading.Scale) (*session.Session, []grading.AggregatedRecord, error) {
	sess, err := getSession(ctx, r, id)
	if err != nil {
		return nil, nil, err
	}
	aggs, err := sess.Aggregated(scale)
	if err != nil {
		return nil, nil, err
	}
	return sess, aggs, nil
}
