package feedback

import (
	"context"

	"github.com/aula-hub/gradebook/internal/domain/grading"
)

// Source tells where the feedback text came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Outcome is the feedback delivered to the user for one student.
type Outcome struct {
	Student  string   `json:"student"`
	Source   Source   `json:"source"`
	Provider Provider `json:"provider,omitempty"`
	Text     string   `json:"text"`

	// Fallback is set when Source is SourceFallback.
	Fallback *Report `json:"fallback,omitempty"`

	// Reason explains why the provider was not used. Not shown to end users.
	Reason string `json:"-"`
}

// Resolve asks req for feedback on a and falls back to the basic analysis
// when the result is Unavailable. A nil requester or ProviderNone skips the
// call.
func Resolve(ctx context.Context, req Requester, a grading.AggregatedRecord, cfg ProviderConfig) Outcome {
	var res Result
	switch {
	case req == nil || cfg.Provider == ProviderNone || cfg.Provider == "":
		res = Unavailable(cfg.Provider, "ai feedback disabled")
	default:
		res = req.RequestFeedback(ctx, BuildPrompt(a), cfg.WithDefaults())
	}

	if res.OK() {
		return Outcome{
			Student:  a.Name,
			Source:   SourceAI,
			Provider: res.Provider(),
			Text:     res.Text(),
		}
	}

	report := Fallback(a)
	return Outcome{
		Student:  a.Name,
		Source:   SourceFallback,
		Provider: res.Provider(),
		Text:     report.String(),
		Fallback: &report,
		Reason:   res.Reason(),
	}
}
