package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL))
}

func TestSearch(t *testing.T) {
	var gotParams url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"organic_results": [
				{"title": "Hobart A200 parts", "link": "https://parts.example.com", "snippet": "OEM parts list"}
			],
			"shopping_results": [
				{"title": "Bowl Lift Motor", "link": "https://shop.example.com", "price": "$129.00", "source": "PartsTown"}
			]
		}`))
	})

	resp, err := c.Search(context.Background(), "hobart a200 bowl lift motor", SearchOptions{Num: 5})
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotParams.Get("api_key"))
	assert.Equal(t, "google", gotParams.Get("engine"))
	assert.Equal(t, "hobart a200 bowl lift motor", gotParams.Get("q"))
	assert.Equal(t, "5", gotParams.Get("num"))
	assert.Empty(t, gotParams.Get("no_cache"))

	require.Len(t, resp.Organic, 1)
	assert.Equal(t, "https://parts.example.com", resp.Organic[0].URL)
	require.Len(t, resp.Shopping, 1)
	assert.Equal(t, "$129.00", resp.Shopping[0].Price)
}

func TestSearchNoCache(t *testing.T) {
	var gotParams url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Search(context.Background(), "q", SearchOptions{NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, "true", gotParams.Get("no_cache"))
}

func TestSearchShopping(t *testing.T) {
	var gotParams url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"shopping_results": [
				{"title": "WS-424 motor", "link": "https://shop.example.com/ws-424", "price": "$50", "source": "PartsTown", "thumbnail": "https://img.example.com/t.jpg"}
			]
		}`))
	})

	results, err := c.SearchShopping(context.Background(), "hobart motor", SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "google_shopping", gotParams.Get("engine"))
	require.Len(t, results, 1)
	assert.Equal(t, "https://img.example.com/t.jpg", results[0].Thumbnail)
}

func TestSearchImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google_images", r.URL.Query().Get("engine"))
		_, _ = w.Write([]byte(`{
			"images_results": [
				{"original": "", "thumbnail": "https://img.example.com/thumb.jpg"},
				{"original": "https://img.example.com/full.jpg"}
			]
		}`))
	})

	// The first hit with any URL wins, preferring original over thumbnail.
	got, err := c.SearchImage(context.Background(), "WS-424 motor")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/thumb.jpg", got)
}

func TestSearchImageEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images_results": []}`))
	})

	got, err := c.SearchImage(context.Background(), "obscure part")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchNon200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}

func TestSearchMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := c.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
