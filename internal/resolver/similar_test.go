package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// titleAI extracts the part number as the first whitespace-delimited token
// of the listing title, or the sentinel when the title starts with "no".
func titleAI() *mockAI {
	return &mockAI{
		createFn: func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			content := req.Messages[0].Content
			title := content[strings.Index(content, "Title: ")+len("Title: "):]
			fields := strings.Fields(title)
			if len(fields) == 0 || strings.EqualFold(fields[0], "no") {
				return aiText(noPartSentinel), nil
			}
			return aiText(fields[0]), nil
		},
	}
}

func shoppingResults(titles ...string) []serpapi.ShoppingResult {
	out := make([]serpapi.ShoppingResult, len(titles))
	for i, title := range titles {
		out[i] = serpapi.ShoppingResult{
			Title:  title,
			URL:    "https://shop.example.com/item",
			Price:  "$49.99",
			Source: "PartsTown",
		}
	}
	return out
}

func TestSimilarFinderDedupesAndExcludesFailedPart(t *testing.T) {
	search := &mockSearch{
		shoppingFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) ([]serpapi.ShoppingResult, error) {
			return shoppingResults(
				"WS-424 Hobart replacement motor",
				"ws-424 Hobart mixer motor duplicate",
				"BAD-111 failed part relisting",
				"MT-505 generic mixer motor",
			), nil
		},
	}

	f := NewSimilarFinder(search, titleAI(), testAICfg)
	parts := f.Find(context.Background(), model.PartQuery{
		Description: "bowl lift motor", Make: "Hobart", Model: "A200",
	}, "BAD-111", 10, false)

	var numbers []string
	for _, p := range parts {
		numbers = append(numbers, strings.ToUpper(p.PartNumber))
	}
	assert.Contains(t, numbers, "WS-424")
	assert.Contains(t, numbers, "MT-505")
	assert.NotContains(t, numbers, "BAD-111")
	// Case-insensitive dedupe collapses the ws-424 relisting, but all three
	// queries return the same listings so only unique numbers survive.
	assert.Len(t, parts, 2)
}

func TestSimilarFinderSentinelSkipsListing(t *testing.T) {
	search := &mockSearch{
		shoppingFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) ([]serpapi.ShoppingResult, error) {
			return shoppingResults("no part number in this title"), nil
		},
	}

	f := NewSimilarFinder(search, titleAI(), testAICfg)
	parts := f.Find(context.Background(), model.PartQuery{Description: "motor"}, "", 10, false)

	assert.Empty(t, parts)
}

func TestSimilarFinderRespectsMaxResults(t *testing.T) {
	search := &mockSearch{
		shoppingFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) ([]serpapi.ShoppingResult, error) {
			return shoppingResults(
				"PN-001 motor", "PN-002 motor", "PN-003 motor",
				"PN-004 motor", "PN-005 motor",
			), nil
		},
	}

	f := NewSimilarFinder(search, titleAI(), testAICfg)
	parts := f.Find(context.Background(), model.PartQuery{Description: "motor"}, "", 3, false)

	assert.Len(t, parts, 3)
}

func TestCompatibilityConfidence(t *testing.T) {
	q := model.PartQuery{Description: "bowl lift motor", Make: "Hobart", Model: "A200"}

	tests := []struct {
		title string
		want  float64
	}{
		{"Hobart mixer motor WS-424", confidenceMakeMatch},
		{"A200 mixer motor WS-424", confidenceModelMatch},
		{"replacement bowl lift motor WS-424", confidenceModelMatch},
		{"generic kitchen motor", confidenceGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.InDelta(t, tt.want, compatibilityConfidence(tt.title, q), 1e-9)
		})
	}
}

func TestGuessManufacturer(t *testing.T) {
	assert.Equal(t, "Hobart", guessManufacturer("HOBART mixer motor", "Vulcan"))
	assert.Equal(t, "Turbo Air", guessManufacturer("turbo air compressor fan", ""))
	assert.Equal(t, "Acme", guessManufacturer("generic motor", "Acme"))
	assert.Equal(t, "", guessManufacturer("generic motor", ""))
}

func TestSimilarFinderAttachesListingMetadata(t *testing.T) {
	search := &mockSearch{
		shoppingFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) ([]serpapi.ShoppingResult, error) {
			return []serpapi.ShoppingResult{{
				Title:     "WS-424 Hobart motor",
				URL:       "https://shop.example.com/ws-424",
				Price:     "$129.00",
				Source:    "PartsTown",
				Thumbnail: "https://img.example.com/ws-424.jpg",
			}}, nil
		},
	}

	f := NewSimilarFinder(search, titleAI(), testAICfg)
	parts := f.Find(context.Background(), model.PartQuery{
		Description: "bowl lift motor", Make: "Hobart",
	}, "", 10, false)

	require.Len(t, parts, 1)
	p := parts[0]
	assert.Equal(t, "WS-424", p.PartNumber)
	assert.Equal(t, "PartsTown", p.Source)
	assert.Equal(t, "$129.00", p.Price)
	assert.Equal(t, "https://img.example.com/ws-424.jpg", p.ImageURL)
	assert.Equal(t, "Hobart", p.Manufacturer)
	assert.InDelta(t, confidenceMakeMatch, p.ConfidenceScore, 1e-9)
}
