package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// ModelClient is the model invocation boundary. Implementations send one
// prompt and return the raw response text; retry and timeout policy lives
// in the caller, not the client.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AgentClient invokes the model through a go-agents chat agent. Agents are
// cheap to construct, so each call builds its own, matching how parallel
// callers are expected to use the library.
type AgentClient struct {
	cfg gaconfig.AgentConfig
}

// NewAgentClient creates a ModelClient from an agent configuration.
func NewAgentClient(cfg gaconfig.AgentConfig) *AgentClient {
	return &AgentClient{cfg: cfg}
}

func (c *AgentClient) Complete(ctx context.Context, prompt string) (string, error) {
	a, err := agent.New(&c.cfg)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chat call: %w", err)
	}

	return resp.Content(), nil
}

// completeWithRetry wraps a model call with a per-call timeout and a bounded
// retry loop with linear backoff. Context cancellation is respected between
// attempts, never mid-call beyond the per-call timeout.
func completeWithRetry(
	ctx context.Context,
	client ModelClient,
	prompt string,
	maxRetries int,
	backoff time.Duration,
	timeout time.Duration,
	logger *slog.Logger,
) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff * time.Duration(attempt)):
			}
			logger.Warn("retrying model call", "attempt", attempt, "error", lastErr)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		content, err := client.Complete(callCtx, prompt)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("%w: %w", ErrAxisResolutionFailed, lastErr)
}
