package llm

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/failsafe-go/failsafe-go/timeout"
)

// CallPolicy bounds outbound generator calls: a per-call timeout and a small
// fixed retry count with capped backoff. A slow or failing provider degrades
// the single item, never the whole batch.
type CallPolicy struct {
	executor failsafe.Executor[string]
}

// NewCallPolicy builds the default policy: maxRetries extra attempts with
// backoff from 1s capped at 10s, each attempt bounded by callTimeout.
func NewCallPolicy(maxRetries int, callTimeout time.Duration) *CallPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if callTimeout <= 0 {
		callTimeout = 90 * time.Second
	}

	retry := retrypolicy.NewBuilder[string]().
		WithBackoff(time.Second, 10*time.Second).
		WithMaxRetries(maxRetries).
		Build()
	to := timeout.New[string](callTimeout)

	return &CallPolicy{executor: failsafe.With(retry, to)}
}

// Generate runs a provider call under the policy.
func (p *CallPolicy) Generate(ctx context.Context, provider Provider, prompt string, maxTokens int) (string, error) {
	return p.executor.WithContext(ctx).Get(func() (string, error) {
		return provider.Generate(ctx, prompt, maxTokens)
	})
}
