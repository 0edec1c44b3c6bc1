package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/metrics"
)

// Rating scale bounds, fixed in v1. The zero emoji decodes but is rejected.
const (
	minRating = 1
	maxRating = 10
)

// Service is the event router: it receives gateway reaction events, applies
// guard and validation checks, drives the rating store and aggregate cache,
// and requests display refreshes. All collaborators are injected; the service
// holds no ambient state.
type Service struct {
	guard   domain.SelfActionGuard
	ratings domain.RatingStore
	movies  domain.MovieStore
	cache   *StatsCache
	gateway domain.ReactionGateway
	notices domain.NoticeSender
	display domain.DisplayRefresher
	group   singleflight.Group
}

// NewService creates the event router.
func NewService(
	guard domain.SelfActionGuard,
	ratings domain.RatingStore,
	movies domain.MovieStore,
	cache *StatsCache,
	gateway domain.ReactionGateway,
	notices domain.NoticeSender,
	display domain.DisplayRefresher,
) *Service {
	return &Service{
		guard:   guard,
		ratings: ratings,
		movies:  movies,
		cache:   cache,
		gateway: gateway,
		notices: notices,
		display: display,
	}
}

// HandleReactionAdd processes a reaction-add event against a tracked summary
// message. Invalid emoji and duplicate votes are handled locally with a
// corrective removal and a transient notice; only persistence failures abort
// the pipeline.
func (s *Service) HandleReactionAdd(ctx context.Context, ev domain.ReactionEvent) error {
	movie, err := s.movies.GetByMessage(ctx, ev.ChannelID, ev.MessageID)
	if errors.Is(err, domain.ErrMovieNotFound) {
		metrics.ReactionsProcessed.WithLabelValues("add", "ignored").Inc()
		return nil
	}
	if err != nil {
		metrics.ReactionsProcessed.WithLabelValues("add", "error").Inc()
		return fmt.Errorf("movie lookup failed: %w", err)
	}
	key := movie.Key()

	value, ok := DecodeEmoji(ev.Emoji)
	if !ok || value < minRating || value > maxRating {
		metrics.ReactionsProcessed.WithLabelValues("add", "invalid_emoji").Inc()
		s.stripReaction(ctx, ev, fmt.Sprintf("<@%s> ratings go from 1️⃣ to 🔟 — that reaction doesn't count.", ev.UserID))
		return nil
	}

	prev, rated, err := s.ratings.GetRating(ctx, ev.UserID, key)
	if err != nil {
		metrics.ReactionsProcessed.WithLabelValues("add", "error").Inc()
		return fmt.Errorf("rating lookup failed: %w", err)
	}

	if rated && prev == value {
		// Same value again: nothing to persist, strip the redundant reaction.
		metrics.ReactionsProcessed.WithLabelValues("add", "duplicate").Inc()
		s.stripReaction(ctx, ev, fmt.Sprintf("<@%s> you already rated this %d/10.", ev.UserID, prev))
		return nil
	}

	if err := s.ratings.Upsert(ctx, ev.UserID, key, value); err != nil {
		// Leave the key invalidated: a missing entry self-heals on next read.
		s.cache.Invalidate(key)
		metrics.ReactionsProcessed.WithLabelValues("add", "error").Inc()
		return fmt.Errorf("rating upsert failed: %w", err)
	}
	s.cache.Invalidate(key)

	outcome := "rated"
	if rated {
		// Last write wins; the previous reaction emoji is now wrong on the
		// message. Strip it, marking the guard first so the gateway's echo of
		// our removal doesn't delete the fresh rating.
		outcome = "updated"
		if prevEmoji, ok := EncodeEmoji(prev); ok {
			s.stripReaction(ctx, domain.ReactionEvent{
				UserID:    ev.UserID,
				GuildID:   ev.GuildID,
				ChannelID: ev.ChannelID,
				MessageID: ev.MessageID,
				Emoji:     prevEmoji,
			}, fmt.Sprintf("<@%s> rating updated: %d/10 → %d/10.", ev.UserID, prev, value))
		}
	}

	s.refreshDisplay(ctx, movie)
	metrics.ReactionsProcessed.WithLabelValues("add", outcome).Inc()
	return nil
}

// HandleReactionRemove processes a reaction-remove event. Echoes of the
// engine's own corrective removals are suppressed via the guard; everything
// else deletes the user's rating if the removed emoji matches it.
func (s *Service) HandleReactionRemove(ctx context.Context, ev domain.ReactionEvent) error {
	selfInitiated, err := s.guard.IsSelfInitiated(ctx, ev.UserID, ev.MessageID, ev.Emoji)
	if err != nil {
		// The guard is a cache, never a dependency for correctness: treat an
		// unreachable guard as a miss and keep going.
		slog.Warn("Self-action guard lookup failed, treating as user action",
			"user_id", ev.UserID, "message_id", ev.MessageID, "error", err)
		selfInitiated = false
	}
	if selfInitiated {
		metrics.GuardSuppressions.Inc()
		metrics.ReactionsProcessed.WithLabelValues("remove", "self_action").Inc()
		return nil
	}

	value, ok := DecodeEmoji(ev.Emoji)
	if !ok || value < minRating || value > maxRating {
		metrics.ReactionsProcessed.WithLabelValues("remove", "ignored").Inc()
		return nil
	}

	movie, err := s.movies.GetByMessage(ctx, ev.ChannelID, ev.MessageID)
	if errors.Is(err, domain.ErrMovieNotFound) {
		metrics.ReactionsProcessed.WithLabelValues("remove", "ignored").Inc()
		return nil
	}
	if err != nil {
		metrics.ReactionsProcessed.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("movie lookup failed: %w", err)
	}
	key := movie.Key()

	// Only delete the rating the removed emoji actually represents. If a guard
	// marker was lost early, the echo of a corrective removal arrives here
	// carrying the user's old emoji — their current rating must survive it.
	current, rated, err := s.ratings.GetRating(ctx, ev.UserID, key)
	if err != nil {
		metrics.ReactionsProcessed.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("rating lookup failed: %w", err)
	}
	if !rated || current != value {
		metrics.ReactionsProcessed.WithLabelValues("remove", "ignored").Inc()
		return nil
	}

	if err := s.ratings.Remove(ctx, ev.UserID, key); err != nil {
		s.cache.Invalidate(key)
		metrics.ReactionsProcessed.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("rating remove failed: %w", err)
	}
	s.cache.Invalidate(key)

	s.refreshDisplay(ctx, movie)
	metrics.ReactionsProcessed.WithLabelValues("remove", "removed").Inc()
	return nil
}

// RecordRating persists a rating that arrived outside the reaction flow, e.g.
// carried on the IMDB link that created the movie.
func (s *Service) RecordRating(ctx context.Context, movie *domain.Movie, userID string, value int) error {
	if value < minRating || value > maxRating {
		return fmt.Errorf("rating %d out of range %d–%d", value, minRating, maxRating)
	}
	key := movie.Key()
	if err := s.ratings.Upsert(ctx, userID, key, value); err != nil {
		s.cache.Invalidate(key)
		return fmt.Errorf("rating upsert failed: %w", err)
	}
	s.cache.Invalidate(key)
	s.refreshDisplay(ctx, movie)
	return nil
}

// Stats returns the current aggregate for key: cache when fresh, otherwise the
// canonical store computation. Concurrent misses for the same key are
// collapsed; repopulation is generation-checked so a snapshot computed before
// an invalidation can never land in the cache.
func (s *Service) Stats(ctx context.Context, key domain.StatsKey) (domain.RatingStats, error) {
	if stats, ok := s.cache.Get(key); ok {
		return *stats, nil
	}

	v, err, _ := s.group.Do(flightKey(key), func() (any, error) {
		gen := s.cache.Generation(key)
		stats, err := s.ratings.StatsFor(ctx, key)
		if err != nil {
			return domain.RatingStats{}, err
		}
		s.cache.Put(key, stats, gen)
		return stats, nil
	})
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("stats computation failed: %w", err)
	}
	return v.(domain.RatingStats), nil
}

// stripReaction performs a corrective removal: guard first, then the gateway
// call, then a transient notice. Failures are logged and never propagated —
// a reaction left behind is a cosmetic problem, not a correctness one.
func (s *Service) stripReaction(ctx context.Context, ev domain.ReactionEvent, notice string) {
	if err := s.guard.Mark(ctx, ev.UserID, ev.MessageID, ev.Emoji); err != nil {
		slog.Warn("Failed to mark self-action before corrective removal",
			"user_id", ev.UserID, "message_id", ev.MessageID, "error", err)
	}
	if err := s.gateway.RemoveReaction(ctx, ev.ChannelID, ev.MessageID, ev.UserID, ev.Emoji); err != nil {
		slog.Warn("Corrective reaction removal failed",
			"user_id", ev.UserID, "message_id", ev.MessageID, "error", err)
	}
	if err := s.notices.SendTransientNotice(ctx, ev.ChannelID, notice); err != nil {
		slog.Warn("Failed to send transient notice", "channel_id", ev.ChannelID, "error", err)
	}
}

// refreshDisplay projects fresh stats onto the summary message. The persisted
// rating is the source of truth; refresh failures are logged and the display
// self-corrects on the next mutation. A confirmed-gone message clears the
// movie's display reference so it can be re-posted.
func (s *Service) refreshDisplay(ctx context.Context, movie *domain.Movie) {
	if movie.MessageID == "" {
		return
	}

	stats, err := s.Stats(ctx, movie.Key())
	if err != nil {
		metrics.DisplayRefreshFailures.Inc()
		slog.Error("Failed to compute stats for display refresh",
			"imdb_id", movie.ImdbID, "channel_id", movie.ChannelID, "error", err)
		return
	}

	if err := s.display.Refresh(ctx, movie, stats); err != nil {
		metrics.DisplayRefreshFailures.Inc()
		if errors.Is(err, domain.ErrMessageGone) {
			if clearErr := s.movies.ClearMessageRef(ctx, movie.Key()); clearErr != nil {
				slog.Error("Failed to clear display message reference",
					"imdb_id", movie.ImdbID, "channel_id", movie.ChannelID, "error", clearErr)
				return
			}
			slog.Info("Summary message gone, cleared reference for re-posting",
				"imdb_id", movie.ImdbID, "channel_id", movie.ChannelID)
			return
		}
		slog.Warn("Display refresh failed",
			"imdb_id", movie.ImdbID, "channel_id", movie.ChannelID, "error", err)
	}
}

func flightKey(key domain.StatsKey) string {
	return key.ImdbID + "/" + key.GuildID + "/" + key.ChannelID
}
