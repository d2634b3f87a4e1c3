package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST FEEDBACK COMMAND
// Produces narrative feedback for one student. The provider selected in the
// session settings is asked first; when it cannot answer, the deterministic
// basic analysis is returned instead. The command never fails because of a
// provider.
// ══════════════════════════════════════════════════════════════════════════════

// RequestFeedbackCommand names the student and carries request-scoped
// credentials. Keys are used for this call only and never stored.
type RequestFeedbackCommand struct {
	SessionID string
	// Student is a record ID or a case-insensitive name.
	Student string

	APIKey         string
	FallbackAPIKey string
}

// Validate validates the command.
func (c RequestFeedbackCommand) Validate() error {
	if strings.TrimSpace(c.Student) == "" {
		return shared.NewDomainError("feedback", "Request", shared.ErrEmptyValue, "student is required")
	}
	return nil
}

// RequestFeedbackResult holds the outcome and the record it is about.
type RequestFeedbackResult struct {
	Outcome feedback.Outcome
	Record  grading.AggregatedRecord
}

// ChainFunc wraps a requester so it also tries fallback providers.
type ChainFunc func(next feedback.Requester, fallbacks ...feedback.ProviderConfig) feedback.Requester

// RequestFeedbackConfig contains configuration for the handler.
type RequestFeedbackConfig struct {
	Scale   grading.Scale
	Timeout time.Duration

	// ServerKey returns the configured credential of a provider. It is used
	// when the request brings no key of its own.
	ServerKey func(feedback.Provider) string

	// Chain adds the session's fallback provider. Nil disables fallback
	// providers; the basic analysis still applies.
	Chain ChainFunc

	Features FeatureChecker
	TTL      time.Duration
	Now      func() time.Time
	Logger   *logger.Logger
}

// RequestFeedbackHandler handles the RequestFeedbackCommand.
type RequestFeedbackHandler struct {
	store     session.Store
	requester feedback.Requester
	publisher shared.EventPublisher
	config    RequestFeedbackConfig
	features  FeatureChecker
	now       func() time.Time
	log       *logger.Logger
}

// NewRequestFeedbackHandler creates a new RequestFeedbackHandler.
func NewRequestFeedbackHandler(
	store session.Store,
	requester feedback.Requester,
	publisher shared.EventPublisher,
	cfg RequestFeedbackConfig,
) *RequestFeedbackHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = feedback.DefaultTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	if len(cfg.Scale.Bands()) == 0 {
		cfg.Scale = grading.DefaultScale()
	}
	return &RequestFeedbackHandler{
		store:     store,
		requester: requester,
		publisher: orNop(publisher),
		config:    cfg,
		features:  orAllEnabled(cfg.Features),
		now:       orNow(cfg.Now),
		log:       orNopLogger(cfg.Logger),
	}
}

// Handle resolves feedback for the student.
func (h *RequestFeedbackHandler) Handle(ctx context.Context, cmd RequestFeedbackCommand) (*RequestFeedbackResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("request_feedback: validation failed: %w", err)
	}

	sess, err := loadSession(ctx, h.store, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("request_feedback: %w", err)
	}
	aggs, err := sess.Aggregated(h.config.Scale)
	if err != nil {
		return nil, fmt.Errorf("request_feedback: %w", err)
	}
	rec, ok := findAggregated(aggs, cmd.Student)
	if !ok {
		return nil, fmt.Errorf("request_feedback: %q: %w", cmd.Student, shared.ErrStudentNotFound)
	}

	fs := sess.Settings.Feedback
	primary := feedback.ProviderConfig{
		Provider: fs.Provider,
		Model:    fs.Model,
		APIKey:   h.credential(cmd.APIKey, fs.Provider),
		Timeout:  h.config.Timeout,
	}

	var req feedback.Requester
	if h.features.IsEnabled(config.FeatureFeedbackAI, sess.ID) {
		req = h.requester
		if fs.FallbackProvider != "" && h.config.Chain != nil && req != nil &&
			h.features.IsEnabled(config.FeatureFeedbackFallback, sess.ID) {
			req = h.config.Chain(req, feedback.ProviderConfig{
				Provider: fs.FallbackProvider,
				Model:    fs.FallbackModel,
				APIKey:   h.credential(cmd.FallbackAPIKey, fs.FallbackProvider),
				Timeout:  h.config.Timeout,
			})
		}
	}

	start := time.Now()
	out := feedback.Resolve(ctx, req, rec, primary)

	log := h.log.With(logger.SessionID(sess.ID), logger.Student(rec.Name), logger.Provider(string(out.Provider)))
	if out.Source == feedback.SourceFallback {
		log.Warn("feedback provider unavailable, using basic analysis",
			logger.String("reason", out.Reason), logger.Latency(time.Since(start)))
	} else {
		log.Info("feedback generated", logger.Float64("average", rec.Average), logger.Latency(time.Since(start)))
	}

	if key := strings.TrimSpace(cmd.APIKey); key != "" {
		now := h.now()
		sess.RecordKey(key)
		sess.Touch(h.config.TTL, now)
		if err := h.store.Save(ctx, sess); err != nil {
			// the feedback is already computed; losing the fingerprint is harmless
			log.Warn("failed to save session after feedback", logger.Err(err))
		}
	}

	publish(h.publisher, h.log, shared.NewFeedbackResolvedEvent(
		sess.ID, rec.Name, string(out.Source), string(out.Provider), h.now()))

	return &RequestFeedbackResult{Outcome: out, Record: rec}, nil
}

func (h *RequestFeedbackHandler) credential(requestKey string, p feedback.Provider) string {
	if k := strings.TrimSpace(requestKey); k != "" {
		return k
	}
	if h.config.ServerKey != nil {
		return h.config.ServerKey(p)
	}
	return ""
}

func findAggregated(aggs []grading.AggregatedRecord, query string) (grading.AggregatedRecord, bool) {
	for _, a := range aggs {
		if a.Matches(query) {
			return a, true
		}
	}
	return grading.AggregatedRecord{}, false
}
