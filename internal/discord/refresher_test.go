package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrate/reelrate/internal/domain"
)

func refresherTestMovie() *domain.Movie {
	return &domain.Movie{
		ImdbID:    "tt0111161",
		GuildID:   "guild-1",
		ChannelID: "channel-1",
		MessageID: "msg-1",
		Title:     "The Shawshank Redemption",
	}
}

func TestEmbedRefresher_UpdatesAudienceRating(t *testing.T) {
	var edited []Embed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "msg-1",
				"channel_id": "channel-1",
				"embeds": [{
					"title": "The Shawshank Redemption (1994)",
					"fields": [
						{"name": "Director", "value": "Frank Darabont"},
						{"name": "Audience Rating", "value": "No votes yet"}
					]
				}]
			}`))
		case http.MethodPatch:
			var payload messagePayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			edited = payload.Embeds
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "msg-1"}`))
		}
	}))
	defer srv.Close()

	refresher := NewEmbedRefresher(NewRestClient("test-token", srv.URL))

	err := refresher.Refresh(context.Background(), refresherTestMovie(), domain.RatingStats{Average: 8.5, Count: 2})
	require.NoError(t, err)

	require.Len(t, edited, 1)
	require.Len(t, edited[0].Fields, 2)
	assert.Equal(t, "Frank Darabont", edited[0].Fields[0].Value, "Other fields must be preserved")
	assert.Equal(t, "⭐ 8.5 (2 votes)", edited[0].Fields[1].Value)
}

func TestEmbedRefresher_MessageGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	refresher := NewEmbedRefresher(NewRestClient("test-token", srv.URL))

	err := refresher.Refresh(context.Background(), refresherTestMovie(), domain.RatingStats{})
	assert.ErrorIs(t, err, domain.ErrMessageGone)
}

func TestEmbedRefresher_MessageWithoutEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg-1", "channel_id": "channel-1", "embeds": []}`))
	}))
	defer srv.Close()

	refresher := NewEmbedRefresher(NewRestClient("test-token", srv.URL))

	err := refresher.Refresh(context.Background(), refresherTestMovie(), domain.RatingStats{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMessageGone)
}
