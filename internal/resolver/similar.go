package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/parts-cli/internal/config"
	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// noPartSentinel is what the AI returns when a listing title carries no
// part number.
const noPartSentinel = "NO_PART_FOUND"

// Compatibility heuristic scores. Deliberately permissive: the fallback
// over-includes so a human has more options to vet.
const (
	confidenceMakeMatch  = 0.7
	confidenceModelMatch = 0.6
	confidenceGeneric    = 0.5
)

const similarSystemText = "You extract part numbers from product listing titles. Reply with the part number alone, or NO_PART_FOUND."

const similarExtractPrompt = `Extract the part number from this product listing title. Reply with ONLY the part number, nothing else. If the title contains no part number, reply with exactly NO_PART_FOUND.

Title: %s`

// knownBrands is the fixed manufacturer list used to guess a brand from a
// listing title, lowercase for matching.
var knownBrands = []string{
	"hobart", "vulcan", "true", "traulsen", "hoshizaki", "manitowoc",
	"scotsman", "garland", "frymaster", "pitco", "cleveland", "blodgett",
	"southbend", "beverage-air", "turbo air", "delfield", "lincoln",
	"bunn", "waring", "vitamix",
}

// brandCaser canonicalizes a matched lowercase brand for display.
var brandCaser = cases.Title(language.English)

// SimilarFinder runs the lower-trust shopping fallback: broad queries, AI
// part-number extraction from listing titles, and a light compatibility
// heuristic. Its results are for human review, never auto-recommended.
type SimilarFinder struct {
	search serpapi.Client
	ai     anthropic.Client
	aiCfg  config.AnthropicConfig
}

// NewSimilarFinder creates a SimilarFinder.
func NewSimilarFinder(search serpapi.Client, ai anthropic.Client, aiCfg config.AnthropicConfig) *SimilarFinder {
	return &SimilarFinder{search: search, ai: ai, aiCfg: aiCfg}
}

// Find runs up to three shopping queries and returns deduplicated similar
// parts, capped at maxResults. failedPartNumber is excluded from the output.
func (f *SimilarFinder) Find(ctx context.Context, q model.PartQuery, failedPartNumber string, maxResults int, noCache bool) []model.SimilarPart {
	if maxResults <= 0 {
		maxResults = 10
	}

	queries := []string{
		joinNonEmpty(q.Description, q.Make, q.Model, "part number"),
		joinNonEmpty(q.Description, q.Make, "replacement part"),
		joinNonEmpty(q.Description, "OEM part"),
	}

	seen := map[string]bool{}
	if pn := strings.ToUpper(strings.TrimSpace(failedPartNumber)); pn != "" {
		seen[pn] = true
	}

	var parts []model.SimilarPart
	for _, query := range queries {
		if len(parts) >= maxResults {
			break
		}

		listings, err := f.search.SearchShopping(ctx, query, serpapi.SearchOptions{NoCache: noCache})
		if err != nil {
			zap.L().Warn("similar finder: shopping search failed",
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}

		for _, listing := range listings {
			if len(parts) >= maxResults {
				break
			}

			partNumber := f.extractFromTitle(ctx, listing.Title)
			if partNumber == "" {
				continue
			}

			key := strings.ToUpper(partNumber)
			if seen[key] {
				continue
			}
			seen[key] = true

			parts = append(parts, model.SimilarPart{
				PartNumber:      partNumber,
				Description:     listing.Title,
				Manufacturer:    guessManufacturer(listing.Title, q.Make),
				ImageURL:        f.findImage(ctx, partNumber, q.Description, listing.Thumbnail),
				ConfidenceScore: compatibilityConfidence(listing.Title, q),
				Source:          listing.Source,
				Price:           listing.Price,
			})
		}
	}

	return parts
}

// extractFromTitle asks the AI for a part number from the title alone. This
// is intentionally cheaper and looser than full validation.
func (f *SimilarFinder) extractFromTitle(ctx context.Context, title string) string {
	resp, err := f.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     f.aiCfg.HaikuModel,
		MaxTokens: 64,
		System:    similarSystemText,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(similarExtractPrompt, title)},
		},
	})
	if err != nil {
		zap.L().Debug("similar finder: title extraction failed", zap.Error(err))
		return ""
	}

	answer := strings.TrimSpace(anthropic.Text(resp))
	if answer == "" || strings.Contains(answer, noPartSentinel) {
		return ""
	}
	return answer
}

// findImage attaches a product image, preferring the listing's own thumbnail
// over a secondary image search. Best effort.
func (f *SimilarFinder) findImage(ctx context.Context, partNumber, description, thumbnail string) string {
	if thumbnail != "" {
		return thumbnail
	}
	imageURL, err := f.search.SearchImage(ctx, joinNonEmpty(partNumber, description))
	if err != nil {
		zap.L().Debug("similar finder: image search failed", zap.Error(err))
		return ""
	}
	return imageURL
}

// compatibilityConfidence scores how likely the listing fits the requested
// equipment. Not a filter: unmatched listings stay as generic similar parts.
func compatibilityConfidence(title string, q model.PartQuery) float64 {
	lower := strings.ToLower(title)
	switch {
	case q.Make != "" && strings.Contains(lower, strings.ToLower(q.Make)):
		return confidenceMakeMatch
	case q.Model != "" && strings.Contains(lower, strings.ToLower(q.Model)):
		return confidenceModelMatch
	case q.Description != "" && strings.Contains(lower, strings.ToLower(q.Description)):
		return confidenceModelMatch
	default:
		return confidenceGeneric
	}
}

// guessManufacturer looks for a known brand in the listing title, falling
// back to the requested make.
func guessManufacturer(title, requestedMake string) string {
	lower := strings.ToLower(title)
	for _, brand := range knownBrands {
		if strings.Contains(lower, brand) {
			return brandCaser.String(brand)
		}
	}
	return requestedMake
}
