package dedupe

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/pkg/anthropic"
)

// ClaudeOracle is an Oracle backed by the Anthropic Messages API.
type ClaudeOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewClaudeOracle returns an oracle that calls client with the model
// settings from cfg.
func NewClaudeOracle(client anthropic.Client, cfg config.AnthropicConfig) *ClaudeOracle {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ClaudeOracle{client: client, model: cfg.Model, maxTokens: maxTokens}
}

// Analyze asks the model for a verdict on a and b.
func (o *ClaudeOracle) Analyze(ctx context.Context, a, b PropertySummary) (Verdict, error) {
	temp := 0.0
	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(deepAnalysisSystemPrompt, ""),
		Messages:    []anthropic.Message{{Role: "user", Content: buildComparePrompt(a, b)}},
		Temperature: &temp,
	})
	if err != nil {
		return Verdict{}, eris.Wrap(err, "dedupe: claude analyze")
	}

	resp.Usage.LogCost(o.model, "dedupe_deep_analysis")
	o.mu.Lock()
	o.usage.Add(resp.Usage)
	o.mu.Unlock()

	return ParseVerdict(resp.Text())
}

// Usage returns the tokens consumed so far.
func (o *ClaudeOracle) Usage() anthropic.TokenUsage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage
}
