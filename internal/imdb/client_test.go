package imdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrate/reelrate/internal/domain"
)

func TestClientLookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "tt0111161", r.URL.Query().Get("i"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Title": "The Shawshank Redemption",
			"Year": "1994",
			"Plot": "Two imprisoned men bond over a number of years.",
			"Poster": "https://example.com/poster.jpg",
			"Director": "Frank Darabont",
			"Genre": "Drama",
			"Runtime": "142 min",
			"imdbRating": "9.3",
			"imdbID": "tt0111161",
			"Response": "True"
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)

	meta, err := client.Lookup(context.Background(), "tt0111161")
	require.NoError(t, err)
	assert.Equal(t, "tt0111161", meta.ImdbID)
	assert.Equal(t, "The Shawshank Redemption", meta.Title)
	assert.Equal(t, "1994", meta.Year)
	assert.Equal(t, "Frank Darabont", meta.Director)
	assert.Equal(t, "9.3", meta.ImdbRating)
}

func TestClientLookup_UnknownID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Response": "False", "Error": "Incorrect IMDb ID."}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)

	_, err := client.Lookup(context.Background(), "tt9999999")
	assert.ErrorIs(t, err, domain.ErrMetadataNotFound)
}

func TestClientLookup_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)

	_, err := client.Lookup(context.Background(), "tt0111161")
	assert.Error(t, err)
}

func TestClientLookup_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Lookup(ctx, "tt0111161")
		require.Error(t, err)
	}
	require.Equal(t, 5, requests)

	// Sixth lookup fails fast without touching the upstream.
	_, err := client.Lookup(ctx, "tt0111161")
	require.Error(t, err)
	assert.Equal(t, 5, requests)
}

func TestClientLookup_NotFoundDoesNotTripBreaker(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Response": "False", "Error": "Incorrect IMDb ID."}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.Lookup(ctx, "tt9999999")
		require.ErrorIs(t, err, domain.ErrMetadataNotFound)
	}
	assert.Equal(t, 10, requests, "Unknown ids must keep reaching the upstream")
}
