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

// webResultCap limits how many organic hits feed the AI extraction.
const webResultCap = 5

const webSystemText = "You are a parts specialist identifying OEM part numbers from web search results. Return a valid JSON object only."

const webExtractPrompt = `Find the OEM part number for this component from the search results below.

Equipment: %s
Equipment model number: %s
Requested part: %s

Search results:
%s

Rules:
- Only return a part number that appears in the search results.
- If no part number is found, return an empty string.
- The part MUST be the same type of component as requested. Confidence MUST be 0 if the type does not match.
- The part number must NOT be the equipment's model number. The model number identifies the whole machine, not a replacement component.

Return a valid JSON object:
{"oem_part_number": "<number or empty string>", "manufacturer": "<manufacturer or empty>", "description": "<what the part is>", "confidence": <0.0-1.0>, "alternate_part_numbers": ["<other numbers for the same component>"], "sources": [{"title": "<title>", "url": "<url>"}]}`

// WebFinder resolves a part from general web search snippets via AI
// extraction.
type WebFinder struct {
	search    serpapi.Client
	ai        anthropic.Client
	validator *Validator
	aiCfg     config.AnthropicConfig
}

// NewWebFinder creates a WebFinder.
func NewWebFinder(search serpapi.Client, ai anthropic.Client, validator *Validator, aiCfg config.AnthropicConfig) *WebFinder {
	return &WebFinder{search: search, ai: ai, validator: validator, aiCfg: aiCfg}
}

// Find searches the web for the part and asks the AI to extract a part
// number from the result snippets. A returned number equal to the equipment
// model number is a known hallucination and gets its confidence zeroed.
func (f *WebFinder) Find(ctx context.Context, q model.PartQuery, noCache bool) *model.PartCandidate {
	candidate := &model.PartCandidate{Source: model.SourceAIWebSearch}

	query := joinNonEmpty(q.Description, q.Make, q.Model, q.Year, "OEM part number specifications")
	resp, err := f.search.Search(ctx, query, serpapi.SearchOptions{Num: webResultCap, NoCache: noCache})
	if err != nil {
		zap.L().Warn("web finder: search failed", zap.String("query", query), zap.Error(err))
		candidate.Error = err.Error()
		return candidate
	}

	var sources []model.SearchSource
	var snippets strings.Builder
	for i, r := range resp.Organic {
		if i >= webResultCap {
			break
		}
		sources = append(sources, model.SearchSource{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
		fmt.Fprintf(&snippets, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
	}
	if len(sources) == 0 {
		return candidate
	}

	prompt := fmt.Sprintf(webExtractPrompt,
		joinNonEmpty(q.Make, q.Model, q.Year),
		q.Model,
		q.Description,
		snippets.String(),
	)

	var answer partAnswer
	if err := askJSON(ctx, f.ai, f.aiCfg.SonnetModel, f.aiCfg.MaxTokens, webSystemText, prompt, &answer); err != nil {
		zap.L().Warn("web finder: extraction failed", zap.Error(err))
		candidate.Error = err.Error()
		candidate.Sources = sources
		return candidate
	}

	candidate.Sources = answer.Sources
	if len(candidate.Sources) == 0 {
		candidate.Sources = sources
	}

	if answer.OEMPartNumber == "" {
		return candidate
	}

	candidate.Found = true
	candidate.OEMPartNumber = answer.OEMPartNumber
	candidate.Manufacturer = answer.Manufacturer
	candidate.Description = answer.Description
	candidate.Confidence = answer.Confidence
	candidate.AlternatePartNumbers = answer.AlternatePartNumbers

	// Model-number veto: the AI regularly mistakes the machine's own model
	// number for a component part number.
	if q.Model != "" && equalFold(candidate.OEMPartNumber, q.Model) {
		candidate.Confidence = 0
		candidate.ModelNumberWarning = fmt.Sprintf(
			"returned part number %q matches the equipment model number", candidate.OEMPartNumber)
		return candidate
	}

	candidate.Validation = f.validator.Validate(ctx, candidate.OEMPartNumber, q, noCache)

	return candidate
}
