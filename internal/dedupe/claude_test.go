package dedupe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/resilience"
	"github.com/sells-group/listing-dedupe/pkg/anthropic"
	anthropicmocks "github.com/sells-group/listing-dedupe/pkg/anthropic/mocks"
)

func claudeConfig() config.AnthropicConfig {
	return config.AnthropicConfig{Key: "sk-test", Model: "claude-haiku-4-5-20251001", MaxTokens: 512}
}

func TestClaudeOracle_Analyze(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 512 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 &&
			strings.Contains(req.Messages[0].Content, `"id": "a"`) &&
			strings.Contains(req.Messages[0].Content, `"id": "b"`)
	})).Return(&anthropic.MessageResponse{
		Model: "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{
			Type: "text",
			Text: "```json\n{\"similarity_score\": 96, \"confidence\": 90, \"reasons\": [\"same address\"], \"explanation\": \"Same unit.\", \"recommendation\": \"merge\"}\n```",
		}},
		Usage: anthropic.TokenUsage{InputTokens: 800, OutputTokens: 60},
	}, nil).Once()

	o := NewClaudeOracle(client, claudeConfig())
	a, b := listing("a", "Loft", 1000), listing("b", "Loft", 1000)
	v, err := o.Analyze(context.Background(), Summarize(&a), Summarize(&b))
	require.NoError(t, err)
	assert.Equal(t, 96.0, v.Similarity)
	assert.Equal(t, RecommendMerge, v.Recommendation)
	assert.Equal(t, []string{"same address"}, v.Reasons)
	assert.Equal(t, int64(800), o.Usage().InputTokens)
}

func TestClaudeOracle_ErrorKeepsTransience(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Once()

	o := NewClaudeOracle(client, claudeConfig())
	_, err := o.Analyze(context.Background(), PropertySummary{ID: "a"}, PropertySummary{ID: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedupe: claude analyze")
	assert.True(t, resilience.IsTransient(err))
}

func TestClaudeOracle_MalformedResponse(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "These look similar."}},
	}, nil).Once()

	o := NewClaudeOracle(client, claudeConfig())
	_, err := o.Analyze(context.Background(), PropertySummary{ID: "a"}, PropertySummary{ID: "b"})
	assert.ErrorIs(t, err, ErrMalformedVerdict)
}

func TestBuildComparePrompt(t *testing.T) {
	p := buildComparePrompt(PropertySummary{ID: "a", Title: "Loft"}, PropertySummary{ID: "b", Title: "Flat"})
	assert.Contains(t, p, "Listing A:")
	assert.Contains(t, p, `"title": "Loft"`)
	assert.Contains(t, p, "Listing B:")
	assert.Contains(t, p, `"title": "Flat"`)
}
