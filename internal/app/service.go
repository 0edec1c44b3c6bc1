package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reelrate/reelrate/internal/discord"
	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/imdb"
	"github.com/reelrate/reelrate/internal/rating"
)

// chatClient is the subset of the Discord REST surface the message flow uses.
type chatClient interface {
	CreateMessage(ctx context.Context, channelID, content string, embeds ...discord.Embed) (*discord.Message, error)
	CreateReaction(ctx context.Context, channelID, messageID, emoji string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Service is the top-level event handler: it turns IMDB links posted in a
// guild's watch channel into rated summary messages and forwards reaction
// events to the rating engine.
type Service struct {
	movies   domain.MovieStore
	settings domain.SettingsStore
	metadata domain.MetadataProvider
	notices  domain.NoticeSender
	chat     chatClient
	ratings  *rating.Service
}

func NewService(
	movies domain.MovieStore,
	settings domain.SettingsStore,
	metadata domain.MetadataProvider,
	notices domain.NoticeSender,
	chat chatClient,
	ratings *rating.Service,
) *Service {
	return &Service{
		movies:   movies,
		settings: settings,
		metadata: metadata,
		notices:  notices,
		chat:     chat,
		ratings:  ratings,
	}
}

// HandleMessageCreate processes a new chat message: if it lands in the guild's
// watch channel and contains an IMDB title link, the movie is registered and a
// summary message with seeded rating reactions replaces it.
func (s *Service) HandleMessageCreate(ctx context.Context, ev domain.MessageEvent) {
	if ev.AuthorIsBot || ev.GuildID == "" {
		return
	}

	watchChannel, err := s.settings.GetWatchChannel(ctx, ev.GuildID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return
	}
	if err != nil {
		slog.Error("Failed to load guild settings", "guild_id", ev.GuildID, "error", err)
		return
	}
	if ev.ChannelID != watchChannel {
		return
	}

	link, ok := imdb.ParseMessage(ev.Content)
	if !ok {
		return
	}

	if err := s.postMovie(ctx, ev, link); err != nil {
		slog.Error("Failed to post movie",
			"imdb_id", link.ImdbID, "guild_id", ev.GuildID, "channel_id", ev.ChannelID, "error", err)
	}
}

func (s *Service) postMovie(ctx context.Context, ev domain.MessageEvent, link *imdb.LinkInfo) error {
	key := domain.StatsKey{ImdbID: link.ImdbID, GuildID: ev.GuildID, ChannelID: ev.ChannelID}

	// A movie whose summary message is gone gets a fresh one; one with a live
	// message is a duplicate post.
	existing, err := s.movies.GetByKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrMovieNotFound) {
		return fmt.Errorf("movie lookup failed: %w", err)
	}
	if existing != nil && existing.MessageID != "" {
		if err := s.notices.SendTransientNotice(ctx, ev.ChannelID,
			fmt.Sprintf("<@%s> **%s** is already up for rating in this channel.", ev.AuthorID, existing.Title)); err != nil {
			slog.Warn("Failed to send duplicate-movie notice", "channel_id", ev.ChannelID, "error", err)
		}
		s.deleteOriginal(ctx, ev)
		return nil
	}

	meta, err := s.metadata.Lookup(ctx, link.ImdbID)
	if errors.Is(err, domain.ErrMetadataNotFound) {
		if err := s.notices.SendTransientNotice(ctx, ev.ChannelID,
			fmt.Sprintf("<@%s> couldn't find `%s` on IMDb.", ev.AuthorID, link.ImdbID)); err != nil {
			slog.Warn("Failed to send unknown-movie notice", "channel_id", ev.ChannelID, "error", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("metadata lookup failed: %w", err)
	}

	movie := existing
	if movie == nil {
		movie = &domain.Movie{
			ID:        uuid.New(),
			ImdbID:    link.ImdbID,
			GuildID:   ev.GuildID,
			ChannelID: ev.ChannelID,
			Title:     meta.Title,
		}
		if err := s.movies.Create(ctx, movie); err != nil && !errors.Is(err, domain.ErrMovieExists) {
			return fmt.Errorf("movie create failed: %w", err)
		}
	}

	stats, err := s.ratings.Stats(ctx, key)
	if err != nil {
		slog.Warn("Failed to load stats for new summary message", "imdb_id", link.ImdbID, "error", err)
		stats = domain.RatingStats{}
	}

	embed := discord.BuildMovieEmbed(meta, link.URL, stats)
	msg, err := s.chat.CreateMessage(ctx, ev.ChannelID, "", embed)
	if err != nil {
		return fmt.Errorf("summary message create failed: %w", err)
	}

	if err := s.movies.SetMessageRef(ctx, key, msg.ID); err != nil {
		return fmt.Errorf("message reference update failed: %w", err)
	}
	movie.MessageID = msg.ID

	// Seed the full rating scale so users can vote with one click.
	for _, emoji := range rating.ScaleEmojis() {
		if err := s.chat.CreateReaction(ctx, ev.ChannelID, msg.ID, emoji); err != nil {
			slog.Warn("Failed to seed rating reaction",
				"message_id", msg.ID, "emoji", emoji, "error", err)
		}
	}

	s.deleteOriginal(ctx, ev)

	if link.Rating > 0 {
		if err := s.ratings.RecordRating(ctx, movie, ev.AuthorID, link.Rating); err != nil {
			slog.Warn("Failed to record rating carried on link",
				"imdb_id", link.ImdbID, "user_id", ev.AuthorID, "rating", link.Rating, "error", err)
		}
	}

	slog.Info("Movie posted for rating",
		"imdb_id", link.ImdbID, "title", meta.Title,
		"guild_id", ev.GuildID, "channel_id", ev.ChannelID, "message_id", msg.ID)
	return nil
}

// deleteOriginal removes the user's link message; the summary message replaces
// it. Failure is cosmetic.
func (s *Service) deleteOriginal(ctx context.Context, ev domain.MessageEvent) {
	if err := s.chat.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
		slog.Warn("Failed to delete original link message",
			"channel_id", ev.ChannelID, "message_id", ev.MessageID, "error", err)
	}
}

// HandleReactionAdd forwards a reaction-add event to the rating engine.
func (s *Service) HandleReactionAdd(ctx context.Context, ev domain.ReactionEvent) {
	if err := s.ratings.HandleReactionAdd(ctx, ev); err != nil {
		slog.Error("Reaction add handling failed",
			"user_id", ev.UserID, "message_id", ev.MessageID, "emoji", ev.Emoji, "error", err)
	}
}

// HandleReactionRemove forwards a reaction-remove event to the rating engine.
func (s *Service) HandleReactionRemove(ctx context.Context, ev domain.ReactionEvent) {
	if err := s.ratings.HandleReactionRemove(ctx, ev); err != nil {
		slog.Error("Reaction remove handling failed",
			"user_id", ev.UserID, "message_id", ev.MessageID, "emoji", ev.Emoji, "error", err)
	}
}
