package resolver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/parts-cli/internal/store"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// mockSearch implements serpapi.Client with function fields.
type mockSearch struct {
	searchFn   func(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error)
	shoppingFn func(ctx context.Context, query string, opts serpapi.SearchOptions) ([]serpapi.ShoppingResult, error)
	imageFn    func(ctx context.Context, query string) (string, error)
}

func (m *mockSearch) Search(ctx context.Context, query string, opts serpapi.SearchOptions) (*serpapi.SearchResponse, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, opts)
	}
	return &serpapi.SearchResponse{}, nil
}

func (m *mockSearch) SearchShopping(ctx context.Context, query string, opts serpapi.SearchOptions) ([]serpapi.ShoppingResult, error) {
	if m.shoppingFn != nil {
		return m.shoppingFn(ctx, query, opts)
	}
	return nil, nil
}

func (m *mockSearch) SearchImage(ctx context.Context, query string) (string, error) {
	if m.imageFn != nil {
		return m.imageFn(ctx, query)
	}
	return "", nil
}

// organicResults builds a response with n generic organic hits.
func organicResults(n int) *serpapi.SearchResponse {
	resp := &serpapi.SearchResponse{}
	for i := 0; i < n; i++ {
		resp.Organic = append(resp.Organic, serpapi.OrganicResult{
			Title:   "Result",
			URL:     "https://example.com/part",
			Snippet: "OEM replacement part listing",
		})
	}
	return resp
}

// mockAI implements anthropic.Client with a function field.
type mockAI struct {
	createFn func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return m.createFn(ctx, req)
}

// aiText wraps a string as a single-block AI response.
func aiText(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s}},
	}
}

// aiJSON marshals v as the AI's answer.
func aiJSON(t *testing.T, v any) *anthropic.MessageResponse {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return aiText(string(data))
}

// mockFetcher implements fetcher.Fetcher.
type mockFetcher struct {
	downloadFn func(ctx context.Context, rawURL, dir string) (string, error)
}

func (m *mockFetcher) DownloadToFile(ctx context.Context, rawURL, dir string) (string, error) {
	return m.downloadFn(ctx, rawURL, dir)
}

// mockExtractor implements ocr.Extractor.
type mockExtractor struct {
	text string
	err  error
}

func (m *mockExtractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	return m.text, m.err
}

// newTestStore opens an in-memory SQLite store with the schema applied.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}
