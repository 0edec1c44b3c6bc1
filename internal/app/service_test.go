package app

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrate/reelrate/internal/discord"
	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/rating"
)

// --- Fakes ---

type memMovieStore struct {
	mu     sync.Mutex
	movies map[domain.StatsKey]*domain.Movie
}

func newMemMovieStore() *memMovieStore {
	return &memMovieStore{movies: make(map[domain.StatsKey]*domain.Movie)}
}

func (s *memMovieStore) Create(_ context.Context, movie *domain.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[movie.Key()]; ok {
		return domain.ErrMovieExists
	}
	s.movies[movie.Key()] = movie
	return nil
}

func (s *memMovieStore) GetByMessage(_ context.Context, channelID, messageID string) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, movie := range s.movies {
		if movie.ChannelID == channelID && movie.MessageID == messageID && messageID != "" {
			return movie, nil
		}
	}
	return nil, domain.ErrMovieNotFound
}

func (s *memMovieStore) GetByKey(_ context.Context, key domain.StatsKey) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	movie, ok := s.movies[key]
	if !ok {
		return nil, domain.ErrMovieNotFound
	}
	return movie, nil
}

func (s *memMovieStore) SetMessageRef(_ context.Context, key domain.StatsKey, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	movie, ok := s.movies[key]
	if !ok {
		return domain.ErrMovieNotFound
	}
	movie.MessageID = messageID
	return nil
}

func (s *memMovieStore) ClearMessageRef(_ context.Context, key domain.StatsKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if movie, ok := s.movies[key]; ok {
		movie.MessageID = ""
	}
	return nil
}

type memSettings struct {
	watch map[string]string
}

func (s *memSettings) GetWatchChannel(_ context.Context, guildID string) (string, error) {
	channelID, ok := s.watch[guildID]
	if !ok {
		return "", domain.ErrSettingsNotFound
	}
	return channelID, nil
}

func (s *memSettings) SetWatchChannel(_ context.Context, guildID, channelID string) error {
	s.watch[guildID] = channelID
	return nil
}

type memRatings struct {
	mu      sync.Mutex
	ratings map[domain.StatsKey]map[string]int
}

func newMemRatings() *memRatings {
	return &memRatings{ratings: make(map[domain.StatsKey]map[string]int)}
}

func (s *memRatings) HasRated(_ context.Context, userID string, key domain.StatsKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ratings[key][userID]
	return ok, nil
}

func (s *memRatings) GetRating(_ context.Context, userID string, key domain.StatsKey) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.ratings[key][userID]
	return value, ok, nil
}

func (s *memRatings) Upsert(_ context.Context, userID string, key domain.StatsKey, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ratings[key] == nil {
		s.ratings[key] = make(map[string]int)
	}
	s.ratings[key][userID] = value
	return nil
}

func (s *memRatings) Remove(_ context.Context, userID string, key domain.StatsKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ratings[key], userID)
	return nil
}

func (s *memRatings) StatsFor(_ context.Context, key domain.StatsKey) (domain.RatingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats domain.RatingStats
	sum := 0
	for _, v := range s.ratings[key] {
		stats.Values = append(stats.Values, v)
		sum += v
	}
	stats.Count = len(stats.Values)
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}

type fakeMetadata struct {
	known map[string]*domain.MovieMetadata
}

func (p *fakeMetadata) Lookup(_ context.Context, imdbID string) (*domain.MovieMetadata, error) {
	meta, ok := p.known[imdbID]
	if !ok {
		return nil, domain.ErrMetadataNotFound
	}
	return meta, nil
}

type fakeNotices struct {
	mu    sync.Mutex
	texts []string
}

func (n *fakeNotices) SendTransientNotice(_ context.Context, _ string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

type createdMessage struct {
	ChannelID string
	Embeds    []discord.Embed
}

type fakeChat struct {
	mu        sync.Mutex
	nextID    int
	created   []createdMessage
	reactions []string
	deleted   []string
}

func (c *fakeChat) CreateMessage(_ context.Context, channelID, _ string, embeds ...discord.Embed) (*discord.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.created = append(c.created, createdMessage{ChannelID: channelID, Embeds: embeds})
	return &discord.Message{ID: "posted-" + strconv.Itoa(c.nextID), ChannelID: channelID}, nil
}

func (c *fakeChat) CreateReaction(_ context.Context, _, _, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, emoji)
	return nil
}

func (c *fakeChat) DeleteMessage(_ context.Context, _, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

type noopGateway struct{}

func (noopGateway) RemoveReaction(_ context.Context, _, _, _, _ string) error { return nil }

type noopDisplay struct{}

func (noopDisplay) Refresh(_ context.Context, _ *domain.Movie, _ domain.RatingStats) error {
	return nil
}

// --- Fixture ---

type appFixture struct {
	svc     *Service
	movies  *memMovieStore
	ratings *memRatings
	notices *fakeNotices
	chat    *fakeChat
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	movies := newMemMovieStore()
	ratings := newMemRatings()
	notices := &fakeNotices{}
	chat := &fakeChat{}

	guard := rating.NewMemoryGuard(5*time.Second, clock)
	cache := rating.NewStatsCache(5*time.Minute, clock)
	ratingSvc := rating.NewService(guard, ratings, movies, cache, noopGateway{}, notices, noopDisplay{})

	metadata := &fakeMetadata{known: map[string]*domain.MovieMetadata{
		"tt0111161": {
			ImdbID: "tt0111161",
			Title:  "The Shawshank Redemption",
			Year:   "1994",
		},
	}}

	settings := &memSettings{watch: map[string]string{"guild-1": "channel-1"}}

	return &appFixture{
		svc:     NewService(movies, settings, metadata, notices, chat, ratingSvc),
		movies:  movies,
		ratings: ratings,
		notices: notices,
		chat:    chat,
	}
}

func linkMessage(content string) domain.MessageEvent {
	return domain.MessageEvent{
		MessageID: "user-msg-1",
		GuildID:   "guild-1",
		ChannelID: "channel-1",
		AuthorID:  "user-1",
		Content:   content,
	}
}

// --- Tests ---

func TestHandleMessageCreate_PostsMovie(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	f.svc.HandleMessageCreate(ctx, linkMessage("https://www.imdb.com/title/tt0111161/"))

	key := domain.StatsKey{ImdbID: "tt0111161", GuildID: "guild-1", ChannelID: "channel-1"}
	movie, err := f.movies.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "The Shawshank Redemption", movie.Title)
	assert.NotEmpty(t, movie.MessageID)

	// One summary message with the movie embed.
	require.Len(t, f.chat.created, 1)
	require.Len(t, f.chat.created[0].Embeds, 1)
	assert.Contains(t, f.chat.created[0].Embeds[0].Title, "The Shawshank Redemption")

	// Full votable scale seeded, original link message deleted.
	assert.Equal(t, rating.ScaleEmojis(), f.chat.reactions)
	assert.Equal(t, []string{"user-msg-1"}, f.chat.deleted)
}

func TestHandleMessageCreate_IgnoresBots(t *testing.T) {
	f := newAppFixture(t)

	ev := linkMessage("https://www.imdb.com/title/tt0111161/")
	ev.AuthorIsBot = true
	f.svc.HandleMessageCreate(context.Background(), ev)

	assert.Empty(t, f.chat.created)
}

func TestHandleMessageCreate_IgnoresOtherChannels(t *testing.T) {
	f := newAppFixture(t)

	ev := linkMessage("https://www.imdb.com/title/tt0111161/")
	ev.ChannelID = "channel-offtopic"
	f.svc.HandleMessageCreate(context.Background(), ev)

	assert.Empty(t, f.chat.created)
	assert.Empty(t, f.chat.deleted)
}

func TestHandleMessageCreate_IgnoresUnconfiguredGuild(t *testing.T) {
	f := newAppFixture(t)

	ev := linkMessage("https://www.imdb.com/title/tt0111161/")
	ev.GuildID = "guild-unconfigured"
	f.svc.HandleMessageCreate(context.Background(), ev)

	assert.Empty(t, f.chat.created)
}

func TestHandleMessageCreate_IgnoresPlainChat(t *testing.T) {
	f := newAppFixture(t)

	f.svc.HandleMessageCreate(context.Background(), linkMessage("anyone up for a movie night?"))

	assert.Empty(t, f.chat.created)
	assert.Empty(t, f.chat.deleted)
}

func TestHandleMessageCreate_DuplicateMovie(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	f.svc.HandleMessageCreate(ctx, linkMessage("https://www.imdb.com/title/tt0111161/"))
	require.Len(t, f.chat.created, 1)

	repost := linkMessage("https://www.imdb.com/title/tt0111161/")
	repost.MessageID = "user-msg-2"
	f.svc.HandleMessageCreate(ctx, repost)

	// No second summary; the user is told and their message removed.
	assert.Len(t, f.chat.created, 1)
	assert.Len(t, f.notices.texts, 1)
	assert.Contains(t, f.chat.deleted, "user-msg-2")
}

func TestHandleMessageCreate_RepostAfterMessageGone(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	f.svc.HandleMessageCreate(ctx, linkMessage("https://www.imdb.com/title/tt0111161/"))

	key := domain.StatsKey{ImdbID: "tt0111161", GuildID: "guild-1", ChannelID: "channel-1"}
	require.NoError(t, f.movies.ClearMessageRef(ctx, key))

	repost := linkMessage("https://www.imdb.com/title/tt0111161/")
	repost.MessageID = "user-msg-2"
	f.svc.HandleMessageCreate(ctx, repost)

	// A fresh summary message for the same movie row.
	assert.Len(t, f.chat.created, 2)
	movie, err := f.movies.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.NotEmpty(t, movie.MessageID)
}

func TestHandleMessageCreate_UnknownMovie(t *testing.T) {
	f := newAppFixture(t)

	f.svc.HandleMessageCreate(context.Background(), linkMessage("https://www.imdb.com/title/tt9999999/"))

	assert.Empty(t, f.chat.created)
	assert.Len(t, f.notices.texts, 1)
}

func TestHandleMessageCreate_LinkCarriedRating(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	f.svc.HandleMessageCreate(ctx, linkMessage("https://www.imdb.com/title/tt0111161/?rating=8"))

	key := domain.StatsKey{ImdbID: "tt0111161", GuildID: "guild-1", ChannelID: "channel-1"}
	value, rated, err := f.ratings.GetRating(ctx, "user-1", key)
	require.NoError(t, err)
	require.True(t, rated)
	assert.Equal(t, 8, value)
}

func TestHandleReaction_ForwardedToRatingEngine(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	f.svc.HandleMessageCreate(ctx, linkMessage("https://www.imdb.com/title/tt0111161/"))

	key := domain.StatsKey{ImdbID: "tt0111161", GuildID: "guild-1", ChannelID: "channel-1"}
	movie, err := f.movies.GetByKey(ctx, key)
	require.NoError(t, err)

	ev := domain.ReactionEvent{
		UserID:    "user-2",
		GuildID:   "guild-1",
		ChannelID: "channel-1",
		MessageID: movie.MessageID,
		Emoji:     "9️⃣",
	}
	f.svc.HandleReactionAdd(ctx, ev)

	value, rated, err := f.ratings.GetRating(ctx, "user-2", key)
	require.NoError(t, err)
	require.True(t, rated)
	assert.Equal(t, 9, value)

	f.svc.HandleReactionRemove(ctx, ev)

	_, rated, err = f.ratings.GetRating(ctx, "user-2", key)
	require.NoError(t, err)
	assert.False(t, rated)
}
