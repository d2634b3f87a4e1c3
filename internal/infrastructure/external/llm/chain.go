package llm

import (
	"context"
	"strings"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// Chain tries the requested provider first and then each fallback provider
// in order. The first Success wins; if all fail the reasons are joined.
//
// The whole chain shares the request's Timeout: fallbacks get whatever is
// left of it, never a fresh budget.
type Chain struct {
	next      feedback.Requester
	fallbacks []feedback.ProviderConfig
}

var _ feedback.Requester = (*Chain)(nil)

// NewChain wraps next with fallback providers. Fallbacks naming the same
// provider as the request, or no provider, are skipped.
func NewChain(next feedback.Requester, fallbacks ...feedback.ProviderConfig) *Chain {
	return &Chain{next: next, fallbacks: fallbacks}
}

func (c *Chain) RequestFeedback(ctx context.Context, prompt feedback.Prompt, cfg feedback.ProviderConfig) feedback.Result {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	res := c.next.RequestFeedback(ctx, prompt, cfg)
	if res.OK() {
		return res
	}

	reasons := []string{labelReason(cfg.Provider, res.Reason())}
	for _, fb := range c.fallbacks {
		if fb.Provider == "" || fb.Provider == feedback.ProviderNone || fb.Provider == cfg.Provider {
			continue
		}
		deadline, _ := ctx.Deadline()
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			reasons = append(reasons, labelReason(fb.Provider, "skipped: "+shared.ErrProviderTimeout.Error()))
			break
		}
		if fb.Timeout <= 0 || fb.Timeout > remaining {
			fb.Timeout = remaining
		}
		r := c.next.RequestFeedback(ctx, prompt, fb)
		if r.OK() {
			return r
		}
		reasons = append(reasons, labelReason(fb.Provider, r.Reason()))
	}
	return feedback.Unavailable(cfg.Provider, strings.Join(reasons, "; "))
}

// labelReason prefixes reason with the provider name unless the transport
// error already carries it.
func labelReason(p feedback.Provider, reason string) string {
	prefix := string(p) + ": "
	if strings.HasPrefix(reason, prefix) {
		return reason
	}
	return prefix + reason
}
