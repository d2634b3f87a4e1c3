package config

import (
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags toggles optional parts of the dashboard. A flag can also be
// rolled out to a percentage of sessions; a session stays in its bucket for
// its whole life.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature is a single flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is the share of sessions (0-100) that see the feature.
	RolloutPercent int
}

// Flag names.
const (
	FeatureFeedbackAI        = "feedback.ai"                // call external providers for feedback
	FeatureFeedbackFallback  = "feedback.fallback_provider" // second provider when the first fails
	FeatureAnalyticsClusters = "analytics.clustering"       // k-means student groups
	FeatureAnalyticsCharts   = "analytics.charts"           // chart series endpoint
	FeatureExportPDF         = "export.pdf"                 // PDF report export
)

// LoadFeatureFlags reads overrides from the process environment.
func LoadFeatureFlags() *FeatureFlags {
	return LoadFeatureFlagsFrom(os.Getenv)
}

// LoadFeatureFlagsFrom reads overrides through lookup.
// Format: GRADEBOOK_FEATURE_<NAME>=true|false|<percent>
// Example: GRADEBOOK_FEATURE_FEEDBACK_AI=false
// Example: GRADEBOOK_FEATURE_ANALYTICS_CLUSTERING=25
func LoadFeatureFlagsFrom(lookup func(string) string) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()

	for name, f := range ff.features {
		val := strings.TrimSpace(lookup(featureNameToEnvKey(name)))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			f.Enabled = b
			f.RolloutPercent = 0
			if b {
				f.RolloutPercent = 100
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			f.Enabled = p > 0
			f.RolloutPercent = p
		}
	}
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	add := func(name, desc string) {
		ff.features[name] = &Feature{Name: name, Description: desc, Enabled: true, RolloutPercent: 100}
	}
	add(FeatureFeedbackAI, "Request narrative feedback from external providers")
	add(FeatureFeedbackFallback, "Try the configured fallback provider when the first one is unavailable")
	add(FeatureAnalyticsClusters, "Group students by average and attendance")
	add(FeatureAnalyticsCharts, "Serve chart series for the dashboard")
	add(FeatureExportPDF, "Allow PDF report export")
}

// featureNameToEnvKey converts a flag name to its environment key.
// "feedback.ai" -> "GRADEBOOK_FEATURE_FEEDBACK_AI"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return envPrefix + "FEATURE_" + key
}

// IsEnabled reports whether the feature is on for the session. An empty
// session ID only sees fully rolled-out features.
func (ff *FeatureFlags) IsEnabled(name, sessionID string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}
	if f.RolloutPercent >= 100 {
		return true
	}
	if sessionID == "" {
		return false
	}
	return inRollout(sessionID, name, f.RolloutPercent)
}

func inRollout(sessionID, name string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(sessionID))
	return int(h.Sum32()%100) < percent
}

// SetRolloutPercent changes a flag at runtime.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	f.RolloutPercent = percent
	f.Enabled = percent > 0
	return nil
}

func (ff *FeatureFlags) EnableFeature(name string) error  { return ff.SetRolloutPercent(name, 100) }
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }

// All returns copies of every flag, sorted by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
