// Package llm implements feedback.Requester on top of hosted text-generation
// APIs: the Anthropic Messages API, the HuggingFace Inference API and Google
// Gemini through the genai SDK.
//
// Every call is rate limited per provider and guarded by a circuit breaker.
// Whatever goes wrong is reported as feedback.Unavailable; the caller then
// shows the deterministic fallback. Calls are never retried.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/circuitbreaker"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the provider endpoints and the protection settings shared by
// all providers.
type Config struct {
	AnthropicBaseURL   string
	HuggingFaceBaseURL string
	// GeminiBaseURL overrides the SDK default when set.
	GeminiBaseURL string

	// Timeout applies when the request config does not set one.
	Timeout time.Duration

	// RatePerMinute and Burst configure one limiter per provider.
	RatePerMinute float64
	Burst         int

	BreakerFailures int
	BreakerCoolDown time.Duration

	// HTTPClient is shared by all providers. Nil builds one with no
	// client-level timeout; per-call deadlines come from the context.
	HTTPClient *http.Client

	Logger   *logger.Logger
	Observer Observer
}

// DefaultConfig returns production endpoints, 30 requests per minute and a
// breaker that opens after three failures for one minute.
func DefaultConfig() Config {
	return Config{
		AnthropicBaseURL:   DefaultAnthropicBaseURL,
		HuggingFaceBaseURL: DefaultHuggingFaceBaseURL,
		Timeout:            feedback.DefaultTimeout,
		RatePerMinute:      30,
		Burst:              5,
		BreakerFailures:    3,
		BreakerCoolDown:    time.Minute,
	}
}

// Observer receives one event per provider call.
type Observer interface {
	ObserveFeedback(provider string, ok bool, reason string, latency time.Duration)
	ObserveBreakerState(provider string, state circuitbreaker.State)
}

// generator is one provider backend.
type generator interface {
	Provider() feedback.Provider
	DefaultModel() string
	Generate(ctx context.Context, prompt, model, apiKey string) (string, error)
}

type guardedGenerator struct {
	generator
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client dispatches feedback requests to the provider named in the request.
type Client struct {
	config     Config
	log        *logger.Logger
	generators map[feedback.Provider]*guardedGenerator
}

var _ feedback.Requester = (*Client)(nil)

// NewClient builds a client for all known providers.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.AnthropicBaseURL == "" {
		cfg.AnthropicBaseURL = def.AnthropicBaseURL
	}
	if cfg.HuggingFaceBaseURL == "" {
		cfg.HuggingFaceBaseURL = def.HuggingFaceBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = def.RatePerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	c := &Client{
		config:     cfg,
		log:        cfg.Logger.With(logger.Component("llm")),
		generators: make(map[feedback.Provider]*guardedGenerator),
	}

	for _, g := range []generator{
		&anthropicGenerator{baseURL: cfg.AnthropicBaseURL, hc: cfg.HTTPClient},
		&huggingFaceGenerator{baseURL: cfg.HuggingFaceBaseURL, hc: cfg.HTTPClient},
		&geminiGenerator{baseURL: cfg.GeminiBaseURL, hc: cfg.HTTPClient},
	} {
		c.generators[g.Provider()] = &guardedGenerator{
			generator: g,
			limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), cfg.Burst),
			breaker: circuitbreaker.ProviderBreaker(
				string(g.Provider()), cfg.BreakerFailures, cfg.BreakerCoolDown, c.onStateChange,
				circuitbreaker.WithIsFailure(countsAgainstProvider)),
		}
	}
	return c
}

func (c *Client) onStateChange(name string, from, to circuitbreaker.State) {
	c.log.Warn("provider circuit state changed",
		logger.Provider(name),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
	if c.config.Observer != nil {
		c.config.Observer.ObserveBreakerState(name, to)
	}
}

// RequestFeedback implements feedback.Requester.
func (c *Client) RequestFeedback(ctx context.Context, prompt feedback.Prompt, cfg feedback.ProviderConfig) feedback.Result {
	start := time.Now()
	res := c.request(ctx, prompt, cfg)

	latency := time.Since(start)
	if res.OK() {
		c.log.Info("feedback generated",
			logger.Provider(string(cfg.Provider)), logger.Student(prompt.Student), logger.Latency(latency))
	} else {
		c.log.Warn("feedback provider unavailable",
			logger.Provider(string(cfg.Provider)), logger.Student(prompt.Student),
			logger.String("reason", res.Reason()), logger.Latency(latency))
	}
	if c.config.Observer != nil {
		c.config.Observer.ObserveFeedback(string(cfg.Provider), res.OK(), reasonLabel(res.Reason()), latency)
	}
	return res
}

func (c *Client) request(ctx context.Context, prompt feedback.Prompt, cfg feedback.ProviderConfig) feedback.Result {
	g, ok := c.generators[cfg.Provider]
	if !ok {
		return feedback.Unavailable(cfg.Provider, "unknown provider")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return feedback.Unavailable(cfg.Provider, "missing credential")
	}
	model := cfg.Model
	if model == "" {
		model = g.DefaultModel()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return feedback.Unavailable(cfg.Provider, "rate limited: "+err.Error())
	}

	var text string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = g.Generate(ctx, prompt.Text, model, apiKey)
		return err
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, shared.ErrProviderTimeout) {
			err = shared.ErrProviderTimeout
		}
		return feedback.Unavailable(cfg.Provider, err.Error())
	}
	return feedback.Success(cfg.Provider, text)
}

// countsAgainstProvider keeps empty completions out of the breaker: the
// provider answered, it just had nothing to say.
func countsAgainstProvider(err error) bool {
	return !errors.Is(err, shared.ErrProviderEmpty)
}

// BreakerState exposes the breaker position of a provider, for readiness
// reporting.
func (c *Client) BreakerState(p feedback.Provider) (circuitbreaker.State, bool) {
	g, ok := c.generators[p]
	if !ok {
		return circuitbreaker.StateClosed, false
	}
	return g.breaker.State(), true
}

// reasonLabel folds free-form reasons into a small set of metric labels.
func reasonLabel(reason string) string {
	switch {
	case reason == "":
		return "none"
	case strings.Contains(reason, "circuit breaker"), strings.Contains(reason, "half-open"):
		return "circuit_open"
	case strings.Contains(reason, "timed out"), strings.Contains(reason, "deadline"):
		return "timeout"
	case strings.Contains(reason, "rate limited"):
		return "rate_limited"
	case strings.Contains(reason, "missing credential"):
		return "missing_credential"
	case strings.Contains(reason, "status"):
		return "http_status"
	case strings.Contains(reason, "no text"):
		return "empty"
	default:
		return "transport"
	}
}
