package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/quality"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

func newTestManualFinder(t *testing.T, manualText string, answer partAnswer) *ManualFinder {
	t.Helper()

	search := &mockSearch{
		searchFn: func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
			return &serpapi.SearchResponse{Organic: []serpapi.OrganicResult{
				{Title: "Service Parts Manual", URL: "https://manuals.example.com/a200.pdf"},
			}}, nil
		},
	}
	ai := &mockAI{
		createFn: func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if strings.Contains(req.Messages[0].Content, "Verify this OEM part number") {
				return aiJSON(t, map[string]any{
					"is_valid": true, "confidence_score": 0.8, "part_type_match": true,
				}), nil
			}
			return aiJSON(t, answer), nil
		},
	}
	fetch := &mockFetcher{
		downloadFn: func(ctx context.Context, rawURL, dir string) (string, error) {
			return "/tmp/test-manuals/a200.pdf", nil
		},
	}

	return NewManualFinder(
		search, ai, fetch, &mockExtractor{text: manualText},
		newTestStore(t), NewValidator(search, ai, testAICfg),
		quality.DefaultRules(), testAICfg, t.TempDir(),
	)
}

func TestManualFinderPlaceholderRejection(t *testing.T) {
	tests := []struct {
		name string
		pn   string
	}{
		{"XXXX placeholder", "XXXX-1234"},
		{"embedded XXXX", "00-XXXX76"},
		{"known bad prefix", "1019999"},
		{"too short", "A1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestManualFinder(t, "bowl lift motor 00-917676", partAnswer{
				OEMPartNumber: tt.pn,
				Confidence:    0.95,
			})

			c := f.Find(context.Background(), model.PartQuery{
				Description: "Bowl Lift Motor", Make: "Hobart", Model: "A200",
			}, false)

			assert.False(t, c.Found)
			assert.Empty(t, c.OEMPartNumber)
			assert.Zero(t, c.Confidence)
			assert.True(t, c.PlaceholderRejected)
		})
	}
}

func TestManualFinderHappyPath(t *testing.T) {
	f := newTestManualFinder(t,
		"REPLACEMENT PARTS LIST\nBowl Lift Motor ............ 00-917676",
		partAnswer{
			OEMPartNumber: "00-917676",
			Manufacturer:  "Hobart",
			Description:   "bowl lift motor",
			Confidence:    0.9,
		},
	)

	c := f.Find(context.Background(), model.PartQuery{
		Description: "Bowl Lift Motor", Make: "Hobart", Model: "A200",
	}, false)

	require.True(t, c.Found)
	assert.Equal(t, "00-917676", c.OEMPartNumber)
	assert.Equal(t, model.SourceManualSearch, c.Source)
	assert.Equal(t, "Service Parts Manual", c.ManualTitle)
	assert.Equal(t, "https://manuals.example.com/a200.pdf", c.ManualURL)
	require.NotNil(t, c.Validation)
	assert.True(t, c.Validation.IsValid)
}

func TestManualFinderEmptyAnswer(t *testing.T) {
	f := newTestManualFinder(t, "unrelated manual text", partAnswer{OEMPartNumber: ""})

	c := f.Find(context.Background(), model.PartQuery{Description: "bowl lift motor"}, false)

	assert.False(t, c.Found)
	assert.False(t, c.PlaceholderRejected)
	assert.Empty(t, c.Error)
}

func TestBuildSearchTerms(t *testing.T) {
	terms := buildSearchTerms("Bowl Lift Motor")

	// Full phrase first, then meaningful words, then the trailing words.
	require.NotEmpty(t, terms)
	assert.Equal(t, "Bowl Lift Motor", terms[0])
	assert.Contains(t, terms, "Bowl")
	assert.Contains(t, terms, "Lift")
	assert.Contains(t, terms, "Motor")
	assert.Contains(t, terms, "Lift Motor")

	assert.Empty(t, buildSearchTerms("   "))
}

func TestBuildExcerptsFindsContextWindows(t *testing.T) {
	filler := strings.Repeat("x", 2000)
	text := filler + " Bowl Lift Motor part 00-917676 " + filler

	excerpts := buildExcerpts(text, "Bowl Lift Motor")

	assert.Contains(t, excerpts, "00-917676")
	assert.LessOrEqual(t, len(excerpts), snippetsCharCap+snippetsMax*100)
}

func TestBuildExcerptsFallsBackToHeadAndTail(t *testing.T) {
	text := strings.Repeat("a", 3000) + strings.Repeat("z", 3000)

	excerpts := buildExcerpts(text, "bowl lift motor")

	assert.Contains(t, excerpts, "[...]")
	assert.True(t, strings.HasPrefix(excerpts, "aaa"))
	assert.True(t, strings.HasSuffix(excerpts, "zzz"))
}

func TestBuildExcerptsShortTextReturnedWhole(t *testing.T) {
	text := "short manual with no matches"
	assert.Equal(t, text, buildExcerpts(text, "bowl lift motor"))
}
