package resilience

import (
	"time"

	"github.com/sells-group/listing-dedupe/internal/config"
)

// FromOracleConfig derives the retry policy and breaker settings used for
// deep-analysis calls.
func FromOracleConfig(cfg config.OracleConfig) (RetryPolicy, BreakerConfig) {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}

	b := BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.ResetTimeoutSecs) * time.Second,
	}
	return p, b
}
