package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// Config carries the tuning knobs for one pipeline instance. Values come
// from the service configuration layer; Validate runs once at composition.
type Config struct {
	MaxChunkTokens int
	OverlapTokens  int
	CharsPerToken  int
	SafetyFactor   float64
	MaxRulePasses  int
	MaxRetries     int
	RetryBackoff   time.Duration
	CallTimeout    time.Duration
	Concurrency    int
	AutoCorrect    bool
	SummaryAxis    string
}

// EffectiveMaxTokens is the chunk budget after the safety factor.
func (c Config) EffectiveMaxTokens() int {
	max := int(float64(c.MaxChunkTokens) * c.SafetyFactor)
	if max < 1 {
		max = c.MaxChunkTokens
	}
	return max
}

// Validate checks the configuration, failing fast before any model call.
func (c Config) Validate() error {
	if c.MaxChunkTokens < 1 {
		return fmt.Errorf("%w: max_chunk_tokens must be positive", ErrConfiguration)
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.MaxChunkTokens {
		return fmt.Errorf("%w: overlap_tokens must be in [0, max_chunk_tokens)", ErrConfiguration)
	}
	if c.SafetyFactor <= 0 || c.SafetyFactor > 1 {
		return fmt.Errorf("%w: token_safety_factor must be in (0, 1]", ErrConfiguration)
	}
	if c.MaxRulePasses < 1 {
		return fmt.Errorf("%w: max_rule_passes must be positive", ErrConfiguration)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive", ErrConfiguration)
	}
	return nil
}

// Runtime bundles the dependencies that pipeline nodes require.
// It is constructed by higher-level composition code from Infrastructure and
// Domain systems.
type Runtime struct {
	Config   Config
	Taxonomy taxonomy.System
	Client   ModelClient
	Cache    *Cache
	Limiter  Limiter
	Logger   *slog.Logger
}
