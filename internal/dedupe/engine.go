// Package dedupe finds listings in a property portfolio that likely
// describe the same real-world property.
//
// A run enumerates eligible pairs, scores each pair locally, forwards pairs
// that clear the duplicate threshold to a deep-analysis oracle and keeps the
// verdicts that meet the acceptance thresholds.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/model"
)

// RunOptions scopes a single run.
type RunOptions struct {
	// OwnerID restricts eligibility to records of this owner when set.
	OwnerID string
	// Override is merged over the engine config for this run only.
	Override *ConfigPatch
}

// Stats counts what happened to the pairs of a run.
type Stats struct {
	EligibleProperties int  `json:"eligible_properties"`
	PairsEnumerated    int  `json:"pairs_enumerated"`
	PairsPassedFunnel  int  `json:"pairs_passed_funnel"`
	OracleUsed         bool `json:"oracle_used"`
	OracleCalls        int  `json:"oracle_calls"`
	FallbackCount      int  `json:"fallback_count"`
	Accepted           int  `json:"accepted"`
	Rejected           int  `json:"rejected"`
	Cancelled          bool `json:"cancelled"`
}

// Result is the outcome of a run.
type Result struct {
	RunID     string              `json:"run_id"`
	OwnerID   string              `json:"owner_id,omitempty"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration_ns"`
	Config    config.DedupeConfig `json:"config"`
	Matches   []DuplicateMatch    `json:"matches"`
	Stats     Stats               `json:"stats"`
}

// Summary converts the result into its persisted run record.
func (r *Result) Summary() model.Run {
	status := model.RunStatusComplete
	if r.Stats.Cancelled {
		status = model.RunStatusCancelled
	}
	return model.Run{
		ID:                 r.RunID,
		OwnerID:            r.OwnerID,
		Status:             status,
		EligibleProperties: r.Stats.EligibleProperties,
		PairsEnumerated:    r.Stats.PairsEnumerated,
		PairsPassedFunnel:  r.Stats.PairsPassedFunnel,
		OracleUsed:         r.Stats.OracleUsed,
		OracleCalls:        r.Stats.OracleCalls,
		FallbackCount:      r.Stats.FallbackCount,
		MatchCount:         len(r.Matches),
		StartedAt:          r.StartedAt,
		Duration:           r.Duration,
	}
}

// Engine runs duplicate scans. It is safe for concurrent use; runs share
// nothing but a snapshot of the engine config taken at start.
type Engine struct {
	analyzer    *DeepAnalyzer
	concurrency int
	now         func() time.Time

	mu  sync.RWMutex
	cfg config.DedupeConfig
}

// NewEngine validates cfg and returns an engine. A nil analyzer disables
// deep analysis: every funnel-passed pair then gets the fallback verdict.
// concurrency bounds in-flight oracle calls.
func NewEngine(cfg config.DedupeConfig, analyzer *DeepAnalyzer, concurrency int) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, eris.Wrap(err, "dedupe: new engine")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		analyzer:    analyzer,
		concurrency: concurrency,
		now:         time.Now,
		cfg:         Clone(cfg),
	}, nil
}

// Config returns a deep copy of the current config.
func (e *Engine) Config() config.DedupeConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Clone(e.cfg)
}

// UpdateConfig merges p over the current config. An invalid result is
// rejected and the current config is kept.
func (e *Engine) UpdateConfig(p ConfigPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := p.Apply(e.cfg)
	if err := ValidateConfig(next); err != nil {
		return eris.Wrap(err, "dedupe: update config")
	}
	e.cfg = next
	return nil
}

// scored is a pair that cleared the funnel.
type scored struct {
	pair      Pair
	breakdown ScoreBreakdown
}

// Run scans records for duplicates. Cancelling ctx stops new oracle calls;
// the partial result is returned together with the wrapped context error.
func (e *Engine) Run(ctx context.Context, records []model.PropertyRecord, opts RunOptions) (*Result, error) {
	cfg := e.Config()
	if opts.Override != nil {
		cfg = opts.Override.Apply(cfg)
		if err := ValidateConfig(cfg); err != nil {
			return nil, eris.Wrap(err, "dedupe: run override")
		}
	}

	res := &Result{
		RunID:     uuid.NewString(),
		OwnerID:   opts.OwnerID,
		StartedAt: e.now(),
		Config:    cfg,
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("owner_id", opts.OwnerID))

	eligible := FilterEligible(records, StatusEligibility(cfg.ExcludedStatuses, opts.OwnerID))
	res.Stats.EligibleProperties = len(eligible)
	log.Info("dedupe: run started",
		zap.Int("records", len(records)),
		zap.Int("eligible", len(eligible)),
	)

	funnel := e.funnel(ctx, eligible, cfg, &res.Stats)
	candidates := e.analyze(ctx, funnel, &res.Stats)

	matches, rejected := NewClassifier(cfg).Classify(candidates)
	res.Matches = matches
	res.Stats.Accepted = len(matches)
	res.Stats.Rejected = rejected
	res.Duration = e.now().Sub(res.StartedAt)

	if err := ctx.Err(); err != nil {
		res.Stats.Cancelled = true
		log.Warn("dedupe: run cancelled, returning partial result",
			zap.Int("matches", len(matches)),
			zap.Error(err),
		)
		return res, eris.Wrap(err, "dedupe: run cancelled")
	}

	log.Info("dedupe: run complete",
		zap.Int("pairs", res.Stats.PairsEnumerated),
		zap.Int("funnel_passed", res.Stats.PairsPassedFunnel),
		zap.Int("oracle_calls", res.Stats.OracleCalls),
		zap.Int("fallbacks", res.Stats.FallbackCount),
		zap.Int("matches", len(matches)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// funnel scores every pair and keeps those at or above the duplicate threshold.
func (e *Engine) funnel(ctx context.Context, eligible []*model.PropertyRecord, cfg config.DedupeConfig, stats *Stats) []scored {
	scorer := NewBasicScorer(cfg)
	var passed []scored
	for pair := range EnumeratePairs(eligible) {
		if ctx.Err() != nil {
			break
		}
		stats.PairsEnumerated++
		bd := scorer.Score(pair.A, pair.B)
		if bd.Basic < cfg.DuplicateThreshold {
			continue
		}
		passed = append(passed, scored{pair: pair, breakdown: bd})
	}
	stats.PairsPassedFunnel = len(passed)
	return passed
}

// analyze obtains a verdict for every funnel-passed pair. Pairs whose oracle
// call was abandoned because ctx ended are left out.
func (e *Engine) analyze(ctx context.Context, passed []scored, stats *Stats) []Candidate {
	if e.analyzer == nil {
		out := make([]Candidate, 0, len(passed))
		for _, s := range passed {
			out = append(out, Candidate{
				Pair:      s.pair,
				Breakdown: s.breakdown,
				Verdict:   FallbackVerdict("deep analysis disabled"),
			})
		}
		stats.FallbackCount = len(out)
		return out
	}

	stats.OracleUsed = len(passed) > 0
	verdicts := make([]*Verdict, len(passed))
	var calls atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range passed {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			calls.Add(1)
			v, err := e.analyzer.Analyze(ctx, passed[i].pair.A, passed[i].pair.B)
			if err != nil {
				return nil
			}
			verdicts[i] = &v
			return nil
		})
	}
	_ = g.Wait()

	stats.OracleCalls = int(calls.Load())
	out := make([]Candidate, 0, len(passed))
	for i, v := range verdicts {
		if v == nil {
			continue
		}
		if v.Fallback {
			stats.FallbackCount++
		}
		out = append(out, Candidate{Pair: passed[i].pair, Breakdown: passed[i].breakdown, Verdict: *v})
	}
	return out
}

// MatchRecords flattens the ranked matches for persistence. Rank starts at 1.
func (r *Result) MatchRecords() []model.Match {
	out := make([]model.Match, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = model.Match{
			RunID:          r.RunID,
			Rank:           i + 1,
			PairKey:        m.Key.String(),
			PropertyAID:    m.PropertyA.ID,
			PropertyBID:    m.PropertyB.ID,
			BasicScore:     m.Breakdown.Basic,
			Similarity:     m.Similarity,
			Confidence:     m.Confidence,
			Recommendation: string(m.Recommendation),
			UsedFallback:   m.UsedFallback,
			Explanation:    m.Explanation,
			Reasons:        m.Reasons,
		}
	}
	return out
}
