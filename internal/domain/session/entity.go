// Package session holds the per-user working state of the dashboard: the
// grading settings chosen by the user and the dataset currently loaded.
//
// A Session is always passed explicitly to use cases. Nothing in the domain
// reads ambient state, so two sessions never observe each other's settings.
package session

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// DefaultTTL is how long an idle session lives.
const DefaultTTL = 2 * time.Hour

// SampleSource names the built-in demonstration dataset.
const SampleSource = "sample"

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// FeedbackSettings selects the providers used for AI feedback.
type FeedbackSettings struct {
	Provider         feedback.Provider `json:"provider"`
	Model            string            `json:"model,omitempty"`
	FallbackProvider feedback.Provider `json:"fallback_provider,omitempty"`
	FallbackModel    string            `json:"fallback_model,omitempty"`

	// KeyFingerprint identifies the last credential used with this session.
	// The credential itself is never stored.
	KeyFingerprint string `json:"key_fingerprint,omitempty"`
}

// Settings is the user-adjustable configuration of a session.
type Settings struct {
	Thresholds grading.Thresholds `json:"thresholds"`
	Feedback   FeedbackSettings   `json:"feedback"`
}

// Validate checks thresholds and provider names.
func (s Settings) Validate() error {
	if err := s.Thresholds.Validate(); err != nil {
		return err
	}
	for _, p := range []feedback.Provider{s.Feedback.Provider, s.Feedback.FallbackProvider} {
		if p != "" && !p.IsValid() {
			return shared.NewDomainError("session", "Validate", shared.ErrInvalidInput,
				"unknown feedback provider: "+string(p))
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DATASET
// ══════════════════════════════════════════════════════════════════════════════

// Dataset is a validated table loaded into a session.
type Dataset struct {
	Source   string           `json:"source"`
	LoadedAt time.Time        `json:"loaded_at"`
	Records  []student.Record `json:"records"`

	ClampedScores     int      `json:"clamped_scores"`
	ClampedAttendance int      `json:"clamped_attendance"`
	LevelFallbacks    int      `json:"level_fallbacks"`
	SkippedRows       int      `json:"skipped_rows"`
	IgnoredColumns    []string `json:"ignored_columns,omitempty"`
}

// NewDataset wraps a validation report.
func NewDataset(source string, report *student.ValidationReport, now time.Time) *Dataset {
	return &Dataset{
		Source:            source,
		LoadedAt:          now,
		Records:           report.Records,
		ClampedScores:     report.ClampedScores,
		ClampedAttendance: report.ClampedAttendance,
		LevelFallbacks:    report.LevelFallbacks,
		SkippedRows:       report.SkippedRows,
		IgnoredColumns:    report.IgnoredColumns,
	}
}

// ApplySessionLevel moves records whose level came from the session default
// to level. Tagged records are never touched. It returns how many records
// changed; a non-concrete level changes nothing.
func (d *Dataset) ApplySessionLevel(level student.Level) int {
	if d == nil || !level.IsConcrete() {
		return 0
	}
	changed := 0
	for i := range d.Records {
		r := &d.Records[i]
		if r.LevelFallback() && r.Level != level {
			r.Level = level
			changed++
		}
	}
	return changed
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Session is one user's working state.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Settings Settings `json:"settings"`
	Dataset  *Dataset `json:"dataset,omitempty"`
}

// New creates a session with a fresh ID.
func New(settings Settings, ttl time.Duration, now time.Time) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
		Settings:  settings,
	}
}

// IsExpired reports whether the session outlived its TTL.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Touch extends the expiry after activity.
func (s *Session) Touch(ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// TTL returns the remaining lifetime.
func (s *Session) TTL(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ReplaceSettings swaps the settings for a new value.
func (s *Session) ReplaceSettings(settings Settings, now time.Time) {
	s.Settings = settings
	s.UpdatedAt = now
}

// ReplaceDataset swaps the loaded dataset. A failed load never calls this,
// so the previous dataset survives validation errors.
func (s *Session) ReplaceDataset(ds *Dataset, now time.Time) {
	s.Dataset = ds
	s.UpdatedAt = now
}

// HasDataset reports whether a dataset is loaded.
func (s *Session) HasDataset() bool {
	return s.Dataset != nil
}

// Aggregated derives the records of the current dataset with the session
// thresholds.
func (s *Session) Aggregated(scale grading.Scale) ([]grading.AggregatedRecord, error) {
	if !s.HasDataset() {
		return nil, shared.ErrNoDataset
	}
	return grading.Aggregate(s.Dataset.Records, s.Settings.Thresholds, scale), nil
}

// RecordKey remembers which credential was last used, as a fingerprint.
func (s *Session) RecordKey(apiKey string) {
	if fp := Fingerprint(apiKey); fp != "" {
		s.Settings.Feedback.KeyFingerprint = fp
	}
}

// Fingerprint returns a short, non-reversible identifier for a credential.
// An empty key has no fingerprint.
func Fingerprint(apiKey string) string {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
