package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/joestump/templatesmith/internal/config"
	"github.com/joestump/templatesmith/internal/metrics"
)

// RetryPolicy bounds every provider call.
type RetryPolicy struct {
	MaxAttempts    int
	CallTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// PolicyFromConfig reads the retry policy from the llm config section.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.LLM.MaxAttempts,
		CallTimeout:    cfg.LLM.CallTimeout,
		InitialBackoff: cfg.LLM.InitialBackoff,
		MaxBackoff:     cfg.LLM.MaxBackoff,
	}
}

// Retrying wraps a Generator with a per-attempt deadline and exponential
// backoff between attempts. When the last attempt hit its deadline the
// returned error wraps ErrTimeout.
type Retrying struct {
	next     Generator
	provider string
	policy   RetryPolicy
	logger   *zap.Logger
}

// NewRetrying wraps next. provider labels metrics and log lines.
func NewRetrying(next Generator, provider string, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, provider: provider, policy: policy, logger: logger}
}

func (r *Retrying) Generate(ctx context.Context, p Prompt) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		out, err := r.attempt(ctx, p)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if !errors.Is(err, ErrTimeout) && !Retryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	b := backoff.NewExponentialBackOff()
	if r.policy.InitialBackoff > 0 {
		b.InitialInterval = r.policy.InitialBackoff
	}
	if r.policy.MaxBackoff > 0 {
		b.MaxInterval = r.policy.MaxBackoff
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.LLMRetriesTotal.WithLabelValues(r.provider).Inc()
			r.logger.Warn("llm call failed, retrying",
				zap.String("provider", r.provider),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %d attempt(s): %w", r.provider, attempt, err)
	}
	return out, nil
}

func (r *Retrying) attempt(ctx context.Context, p Prompt) (string, error) {
	callCtx := ctx
	if r.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.policy.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.next.Generate(callCtx, p)
	metrics.LLMCallDuration.WithLabelValues(r.provider).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.LLMCallsTotal.WithLabelValues(r.provider, "ok").Inc()
		return out, nil
	case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		metrics.LLMCallsTotal.WithLabelValues(r.provider, "timeout").Inc()
		return "", fmt.Errorf("%w after %s: %w", ErrTimeout, r.policy.CallTimeout, err)
	default:
		metrics.LLMCallsTotal.WithLabelValues(r.provider, "error").Inc()
		return "", err
	}
}
