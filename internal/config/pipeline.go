package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
)

const (
	EnvPipelineMaxChunkTokens = "MAILCLS_PIPELINE_MAX_CHUNK_TOKENS"
	EnvPipelineOverlapTokens  = "MAILCLS_PIPELINE_OVERLAP_TOKENS"
	EnvPipelineCharsPerToken  = "MAILCLS_PIPELINE_CHARS_PER_TOKEN"
	EnvPipelineSafetyFactor   = "MAILCLS_PIPELINE_TOKEN_SAFETY_FACTOR"
	EnvPipelineMaxRulePasses  = "MAILCLS_PIPELINE_MAX_RULE_PASSES"
	EnvPipelineMaxRetries     = "MAILCLS_PIPELINE_MAX_RETRIES"
	EnvPipelineRetryBackoff   = "MAILCLS_PIPELINE_RETRY_BACKOFF"
	EnvPipelineCallTimeout    = "MAILCLS_PIPELINE_CALL_TIMEOUT"
	EnvPipelineConcurrency    = "MAILCLS_PIPELINE_CONCURRENCY"
	EnvPipelineAutoCorrect    = "MAILCLS_PIPELINE_AUTO_CORRECT"
	EnvPipelineSummaryAxis    = "MAILCLS_PIPELINE_SUMMARY_AXIS"
)

// PipelineConfig holds the classification pipeline tuning parameters.
type PipelineConfig struct {
	MaxChunkTokens    int     `toml:"max_chunk_tokens"`
	OverlapTokens     int     `toml:"overlap_tokens"`
	CharsPerToken     int     `toml:"chars_per_token"`
	TokenSafetyFactor float64 `toml:"token_safety_factor"`
	MaxRulePasses     int     `toml:"max_rule_passes"`
	MaxRetries        int     `toml:"max_retries"`
	RetryBackoff      string  `toml:"retry_backoff"`
	CallTimeout       string  `toml:"call_timeout"`
	Concurrency       int     `toml:"concurrency"`
	AutoCorrect       *bool   `toml:"auto_correct"`
	SummaryAxis       string  `toml:"summary_axis"`
}

// ToPipeline converts the finalized configuration into the pipeline's
// runtime configuration.
func (c *PipelineConfig) ToPipeline() pipeline.Config {
	backoff, _ := time.ParseDuration(c.RetryBackoff)
	timeout, _ := time.ParseDuration(c.CallTimeout)

	autoCorrect := true
	if c.AutoCorrect != nil {
		autoCorrect = *c.AutoCorrect
	}

	return pipeline.Config{
		MaxChunkTokens: c.MaxChunkTokens,
		OverlapTokens:  c.OverlapTokens,
		CharsPerToken:  c.CharsPerToken,
		SafetyFactor:   c.TokenSafetyFactor,
		MaxRulePasses:  c.MaxRulePasses,
		MaxRetries:     c.MaxRetries,
		RetryBackoff:   backoff,
		CallTimeout:    timeout,
		Concurrency:    c.Concurrency,
		AutoCorrect:    autoCorrect,
		SummaryAxis:    c.SummaryAxis,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.MaxChunkTokens != 0 {
		c.MaxChunkTokens = overlay.MaxChunkTokens
	}
	if overlay.OverlapTokens != 0 {
		c.OverlapTokens = overlay.OverlapTokens
	}
	if overlay.CharsPerToken != 0 {
		c.CharsPerToken = overlay.CharsPerToken
	}
	if overlay.TokenSafetyFactor != 0 {
		c.TokenSafetyFactor = overlay.TokenSafetyFactor
	}
	if overlay.MaxRulePasses != 0 {
		c.MaxRulePasses = overlay.MaxRulePasses
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.RetryBackoff != "" {
		c.RetryBackoff = overlay.RetryBackoff
	}
	if overlay.CallTimeout != "" {
		c.CallTimeout = overlay.CallTimeout
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.AutoCorrect != nil {
		c.AutoCorrect = overlay.AutoCorrect
	}
	if overlay.SummaryAxis != "" {
		c.SummaryAxis = overlay.SummaryAxis
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.MaxChunkTokens == 0 {
		c.MaxChunkTokens = 32000
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = 200
	}
	if c.CharsPerToken == 0 {
		c.CharsPerToken = 4
	}
	if c.TokenSafetyFactor == 0 {
		c.TokenSafetyFactor = 0.9
	}
	if c.MaxRulePasses == 0 {
		c.MaxRulePasses = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = "2s"
	}
	if c.CallTimeout == "" {
		c.CallTimeout = "90s"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.SummaryAxis == "" {
		c.SummaryAxis = "resume"
	}
}

func (c *PipelineConfig) loadEnv() {
	setInt := func(envVar string, target *int) {
		if v := os.Getenv(envVar); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}

	setInt(EnvPipelineMaxChunkTokens, &c.MaxChunkTokens)
	setInt(EnvPipelineOverlapTokens, &c.OverlapTokens)
	setInt(EnvPipelineCharsPerToken, &c.CharsPerToken)
	setInt(EnvPipelineMaxRulePasses, &c.MaxRulePasses)
	setInt(EnvPipelineMaxRetries, &c.MaxRetries)
	setInt(EnvPipelineConcurrency, &c.Concurrency)

	if v := os.Getenv(EnvPipelineSafetyFactor); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.TokenSafetyFactor = f
		}
	}
	if v := os.Getenv(EnvPipelineRetryBackoff); v != "" {
		c.RetryBackoff = v
	}
	if v := os.Getenv(EnvPipelineCallTimeout); v != "" {
		c.CallTimeout = v
	}
	if v := os.Getenv(EnvPipelineAutoCorrect); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoCorrect = &b
		}
	}
	if v := os.Getenv(EnvPipelineSummaryAxis); v != "" {
		c.SummaryAxis = v
	}
}

func (c *PipelineConfig) validate() error {
	if _, err := time.ParseDuration(c.RetryBackoff); err != nil {
		return fmt.Errorf("invalid retry_backoff: %w", err)
	}
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}
	return c.ToPipeline().Validate()
}
