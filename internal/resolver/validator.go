package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/config"
	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// validationResultCap limits how many combined search results feed the AI
// judge.
const validationResultCap = 8

const validateSystemText = "You are a parts specialist verifying OEM part numbers against market evidence. Return a valid JSON object only."

const validatePrompt = `Verify this OEM part number against the search results below.

Part number: %s
Equipment: %s
Requested part: %s

Search results:
%s

Judge:
1. Does this part number exist in the market?
2. Is it appropriate for the stated equipment?
3. Does it match the requested part description?
4. CRITICAL: is the found part the same TYPE of component as requested? A sensor is not a fan. A thermostat is not a motor. If the type differs, the part is invalid no matter how well the number matches.

Return a valid JSON object:
{"is_valid": <bool>, "confidence_score": <0.0-1.0>, "assessment": "<brief reasoning>", "part_description": "<what the part actually is>", "part_type_match": <bool>}`

// Validator double-checks a candidate part number with a secondary search
// plus an AI judgment, including the type-match veto.
type Validator struct {
	search serpapi.Client
	ai     anthropic.Client
	aiCfg  config.AnthropicConfig
}

// NewValidator creates a Validator.
func NewValidator(search serpapi.Client, ai anthropic.Client, aiCfg config.AnthropicConfig) *Validator {
	return &Validator{search: search, ai: ai, aiCfg: aiCfg}
}

// Validate runs the secondary search and AI judgment for a part number. It
// never returns an error; failures come back as an invalid result carrying
// the failure in Assessment so the pipeline can proceed with other sources.
func (v *Validator) Validate(ctx context.Context, partNumber string, q model.PartQuery, noCache bool) *model.ValidationResult {
	query := fmt.Sprintf("%s %s OEM part specifications", partNumber, joinNonEmpty(q.Make, q.Model))

	resp, err := v.search.Search(ctx, query, serpapi.SearchOptions{Num: validationResultCap, NoCache: noCache})
	if err != nil {
		zap.L().Warn("validator: search failed",
			zap.String("part_number", partNumber),
			zap.Error(err),
		)
		return &model.ValidationResult{
			IsValid:         false,
			ConfidenceScore: 0.0,
			Assessment:      "validation search failed: " + err.Error(),
		}
	}

	snippets := collectValidationSnippets(resp, validationResultCap)
	if snippets == "" {
		return &model.ValidationResult{
			IsValid:         false,
			ConfidenceScore: 0.0,
			Assessment:      "no results found",
		}
	}

	prompt := fmt.Sprintf(validatePrompt,
		partNumber,
		joinNonEmpty(q.Make, q.Model, q.Year),
		q.Description,
		snippets,
	)

	var result model.ValidationResult
	if err := askJSON(ctx, v.ai, v.aiCfg.HaikuModel, v.aiCfg.MaxTokens, validateSystemText, prompt, &result); err != nil {
		zap.L().Warn("validator: AI judgment failed",
			zap.String("part_number", partNumber),
			zap.Error(err),
		)
		return &model.ValidationResult{
			IsValid:         false,
			ConfidenceScore: 0.0,
			Assessment:      "validation judgment failed: " + err.Error(),
		}
	}

	// Type mismatch is an absolute veto, regardless of the AI's own verdict.
	if !result.PartTypeMatch {
		result.IsValid = false
		result.ConfidenceScore = 0.0
	}

	return &result
}

// collectValidationSnippets flattens organic and shopping hits into a text
// block for the judge, capped at max entries.
func collectValidationSnippets(resp *serpapi.SearchResponse, max int) string {
	var b strings.Builder
	count := 0
	for _, r := range resp.Organic {
		if count >= max {
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		count++
	}
	for _, r := range resp.Shopping {
		if count >= max {
			break
		}
		fmt.Fprintf(&b, "- [listing] %s (%s) %s\n", r.Title, r.Source, r.Price)
		count++
	}
	return b.String()
}
