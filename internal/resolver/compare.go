package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/config"
	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/pkg/anthropic"
)

const compareSystemText = "You are a parts specialist comparing two candidate OEM part numbers. Return a valid JSON object only."

const comparePrompt = `Two different part numbers were found for the same request. Compare them.

Original request: %s
Equipment: %s

Part A: %s
Part A description: %s

Part B: %s
Part B description: %s

Explain whether these are the same class of part, which one better matches the request, and whether they are interchangeable.

Return a valid JSON object:
{"key_differences": "<differences>", "recommendation": "<which part and why>", "interchangeable": <bool>, "explanation": "<reasoning>"}`

// manualReviewComparison is returned when the AI comparison itself fails.
var manualReviewComparison = model.Comparison{
	KeyDifferences:  "comparison unavailable",
	Recommendation:  "manual review needed: automated comparison failed",
	Interchangeable: false,
	Explanation:     "the comparison service did not return a usable answer; review both part numbers by hand",
}

// Comparator explains the difference between two validated candidates that
// disagree on the part number.
type Comparator struct {
	ai    anthropic.Client
	aiCfg config.AnthropicConfig
}

// NewComparator creates a Comparator.
func NewComparator(ai anthropic.Client, aiCfg config.AnthropicConfig) *Comparator {
	return &Comparator{ai: ai, aiCfg: aiCfg}
}

// Compare asks the AI to contrast two candidates against the original
// request. On failure it returns a fixed manual-review payload, never an
// error.
func (c *Comparator) Compare(ctx context.Context, a, b *model.PartCandidate, q model.PartQuery) *model.Comparison {
	prompt := fmt.Sprintf(comparePrompt,
		q.Description,
		joinNonEmpty(q.Make, q.Model, q.Year),
		a.OEMPartNumber, a.Description,
		b.OEMPartNumber, b.Description,
	)

	var result model.Comparison
	if err := askJSON(ctx, c.ai, c.aiCfg.SonnetModel, c.aiCfg.MaxTokens, compareSystemText, prompt, &result); err != nil {
		zap.L().Warn("comparator: AI comparison failed",
			zap.String("part_a", a.OEMPartNumber),
			zap.String("part_b", b.OEMPartNumber),
			zap.Error(err),
		)
		fallback := manualReviewComparison
		return &fallback
	}

	result.PartNumbersMatch = false
	return &result
}
