package dedupe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/model"
	"github.com/sells-group/listing-dedupe/internal/resilience"
)

// PropertySummary is the subset of a record sent to the oracle.
type PropertySummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address,omitempty"`
	MonthlyRent *float64 `json:"monthly_rent,omitempty"`
	SalePrice   *float64 `json:"sale_price,omitempty"`
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	AreaSqm     *float64 `json:"area_sqm,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// maxDescriptionRunes bounds the description forwarded to the oracle.
const maxDescriptionRunes = 1200

// Summarize builds the oracle summary of p.
func Summarize(p *model.PropertyRecord) PropertySummary {
	desc := []rune(p.Description)
	if len(desc) > maxDescriptionRunes {
		desc = desc[:maxDescriptionRunes]
	}
	return PropertySummary{
		ID:          p.ID,
		Title:       p.Title,
		Description: string(desc),
		Address:     p.Address(),
		MonthlyRent: p.MonthlyRent,
		SalePrice:   p.SalePrice,
		Bedrooms:    p.Bedrooms,
		Bathrooms:   p.Bathrooms,
		AreaSqm:     p.AreaSqm,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
	}
}

// Oracle performs a semantic comparison of two listings.
type Oracle interface {
	Analyze(ctx context.Context, a, b PropertySummary) (Verdict, error)
}

// AnalyzerOptions tunes a DeepAnalyzer.
type AnalyzerOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             resilience.RetryPolicy
	Breaker           resilience.BreakerConfig
}

// AnalyzerOptionsFrom derives AnalyzerOptions from the oracle config.
func AnalyzerOptionsFrom(cfg config.OracleConfig) AnalyzerOptions {
	retry, breaker := resilience.FromOracleConfig(cfg)
	retry.OnRetry = resilience.LogRetry("dedupe.deep_analysis")
	breaker.OnStateChange = func(from, to resilience.BreakerState) {
		zap.L().Warn("dedupe: oracle circuit breaker transition",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return AnalyzerOptions{
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             retry,
		Breaker:           breaker,
	}
}

// DeepAnalyzer wraps an Oracle with a per-call timeout, a rate limit,
// retries and a circuit breaker, and converts every failure into the
// fallback verdict.
type DeepAnalyzer struct {
	oracle  Oracle
	timeout time.Duration
	limiter *rate.Limiter
	retry   resilience.RetryPolicy
	breaker *resilience.Breaker
}

// NewDeepAnalyzer wraps oracle. A zero RequestsPerSecond disables rate
// limiting and a zero Timeout defaults to 30s.
func NewDeepAnalyzer(oracle Oracle, opts AnalyzerOptions) *DeepAnalyzer {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &DeepAnalyzer{
		oracle:  oracle,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(limit, 1),
		retry:   opts.Retry,
		breaker: resilience.NewBreaker(opts.Breaker),
	}
}

// Analyze compares a and b. Oracle failures resolve to FallbackVerdict and a
// nil error. The error is non-nil only when ctx ended before a verdict was
// produced; the caller should discard the pair in that case.
func (d *DeepAnalyzer) Analyze(ctx context.Context, a, b *model.PropertyRecord) (Verdict, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		return d.fallback(a, b, err), nil
	}

	sa, sb := Summarize(a), Summarize(b)
	v, err := resilience.Retry(ctx, d.retry, func(ctx context.Context) (Verdict, error) {
		return resilience.Call(ctx, d.breaker, func(ctx context.Context) (Verdict, error) {
			callCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			return d.oracle.Analyze(callCtx, sa, sb)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		return d.fallback(a, b, err), nil
	}

	v = v.Normalize()
	v.Fallback = false
	return v, nil
}

func (d *DeepAnalyzer) fallback(a, b *model.PropertyRecord, err error) Verdict {
	cause := "oracle error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		cause = "oracle timeout"
	case errors.Is(err, ErrMalformedVerdict):
		cause = "malformed oracle response"
	case errors.Is(err, resilience.ErrBreakerOpen):
		cause = "oracle circuit open"
	}
	zap.L().Warn("dedupe: deep analysis degraded, using fallback verdict",
		zap.String("pair", NewPairKey(a.ID, b.ID).String()),
		zap.String("cause", cause),
		zap.Error(err),
	)
	return FallbackVerdict(cause)
}
