package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// webTestAI answers the extraction prompt with the given part answer and the
// validation prompt with a passing verdict.
func webTestAI(t *testing.T, answer partAnswer) *mockAI {
	t.Helper()
	return &mockAI{
		createFn: func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if strings.Contains(req.Messages[0].Content, "Verify this OEM part number") {
				return aiJSON(t, map[string]any{
					"is_valid": true, "confidence_score": 0.8,
					"part_type_match": true,
				}), nil
			}
			return aiJSON(t, answer), nil
		},
	}
}

func TestWebFinderModelNumberVeto(t *testing.T) {
	search := &mockSearch{
		searchFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
			return organicResults(5), nil
		},
	}
	ai := webTestAI(t, partAnswer{OEMPartNumber: "A200", Confidence: 0.9})

	f := NewWebFinder(search, ai, NewValidator(search, ai, testAICfg), testAICfg)
	c := f.Find(context.Background(), model.PartQuery{
		Description: "Bowl Lift Motor", Make: "Hobart", Model: "A200",
	}, false)

	require.True(t, c.Found)
	assert.Equal(t, "A200", c.OEMPartNumber)
	assert.Zero(t, c.Confidence)
	assert.NotEmpty(t, c.ModelNumberWarning)
	assert.Nil(t, c.Validation)
}

func TestWebFinderModelNumberVetoIsCaseInsensitive(t *testing.T) {
	search := &mockSearch{
		searchFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
			return organicResults(3), nil
		},
	}
	ai := webTestAI(t, partAnswer{OEMPartNumber: "a200", Confidence: 0.9})

	f := NewWebFinder(search, ai, NewValidator(search, ai, testAICfg), testAICfg)
	c := f.Find(context.Background(), model.PartQuery{Description: "motor", Model: "A200"}, false)

	assert.Zero(t, c.Confidence)
	assert.NotEmpty(t, c.ModelNumberWarning)
}

func TestWebFinderExtractsAndValidates(t *testing.T) {
	search := &mockSearch{
		searchFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
			return organicResults(5), nil
		},
	}
	ai := webTestAI(t, partAnswer{
		OEMPartNumber: "00-917676",
		Manufacturer:  "Hobart",
		Description:   "bowl lift motor assembly",
		Confidence:    0.8,
	})

	f := NewWebFinder(search, ai, NewValidator(search, ai, testAICfg), testAICfg)
	c := f.Find(context.Background(), model.PartQuery{
		Description: "Bowl Lift Motor", Make: "Hobart", Model: "A200",
	}, false)

	require.True(t, c.Found)
	assert.Equal(t, "00-917676", c.OEMPartNumber)
	assert.Equal(t, model.SourceAIWebSearch, c.Source)
	require.NotNil(t, c.Validation)
	assert.True(t, c.Validation.IsValid)
	// Sources default to the collected search results.
	assert.Len(t, c.Sources, 5)
}

func TestWebFinderSearchErrorFoldsIntoCandidate(t *testing.T) {
	search := &mockSearch{
		searchFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
			return nil, errors.New("timeout")
		},
	}

	f := NewWebFinder(search, &mockAI{}, NewValidator(search, &mockAI{}, testAICfg), testAICfg)
	c := f.Find(context.Background(), model.PartQuery{Description: "motor"}, false)

	assert.False(t, c.Found)
	assert.Contains(t, c.Error, "timeout")
}

func TestWebFinderEmptyAnswerStaysNotFound(t *testing.T) {
	search := &mockSearch{
		searchFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
			return organicResults(3), nil
		},
	}
	ai := webTestAI(t, partAnswer{OEMPartNumber: ""})

	f := NewWebFinder(search, ai, NewValidator(search, ai, testAICfg), testAICfg)
	c := f.Find(context.Background(), model.PartQuery{Description: "motor"}, false)

	assert.False(t, c.Found)
	assert.Empty(t, c.Error)
}
