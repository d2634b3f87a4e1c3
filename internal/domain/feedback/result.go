// Package feedback describes narrative feedback for one student: the prompt
// sent to a language-model provider, the two-variant result of that call and
// the deterministic report used when the provider is unavailable.
package feedback

import (
	"context"
	"time"
)

// Provider names a language-model backend.
type Provider string

const (
	ProviderAnthropic   Provider = "anthropic"
	ProviderHuggingFace Provider = "huggingface"
	ProviderGemini      Provider = "gemini"
	ProviderNone        Provider = "none"
)

// AllProviders lists the providers a session may select.
var AllProviders = []Provider{ProviderAnthropic, ProviderHuggingFace, ProviderGemini}

// IsValid reports whether p names a known provider.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderHuggingFace, ProviderGemini, ProviderNone:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// ProviderConfig selects and authenticates one provider call.
type ProviderConfig struct {
	Provider Provider
	Model    string

	// APIKey is the caller-supplied credential. It is never persisted.
	APIKey string

	Timeout time.Duration
}

// WithDefaults fills an empty Timeout.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Result is either Success with generated text or Unavailable with a reason.
// Callers branch on OK only; the reason is for logs.
type Result struct {
	ok       bool
	text     string
	reason   string
	provider Provider
}

// Success builds a successful result.
func Success(provider Provider, text string) Result {
	return Result{ok: true, text: text, provider: provider}
}

// Unavailable builds a failed result.
func Unavailable(provider Provider, reason string) Result {
	return Result{reason: reason, provider: provider}
}

func (r Result) OK() bool           { return r.ok }
func (r Result) Text() string       { return r.text }
func (r Result) Reason() string     { return r.reason }
func (r Result) Provider() Provider { return r.provider }

// Requester is the boundary to a text-generation service. Implementations
// must map every failure (timeout, HTTP status, transport error, empty text)
// to Unavailable and never return an error or panic.
type Requester interface {
	RequestFeedback(ctx context.Context, prompt Prompt, cfg ProviderConfig) Result
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, prompt Prompt, cfg ProviderConfig) Result

func (f RequesterFunc) RequestFeedback(ctx context.Context, prompt Prompt, cfg ProviderConfig) Result {
	return f(ctx, prompt, cfg)
}
