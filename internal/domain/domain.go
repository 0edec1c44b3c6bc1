package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Movie is a tracked movie inside one (guild, channel) scope. MessageID is the
// bot-posted summary message carrying the rating reactions; it is empty when
// the message is gone and the movie may be re-posted.
type Movie struct {
	ID        uuid.UUID
	ImdbID    string
	GuildID   string
	ChannelID string
	MessageID string
	Title     string
	CreatedAt time.Time
}

// Rating is one user's vote on one movie in one (guild, channel) scope.
type Rating struct {
	UserID    string
	ImdbID    string
	GuildID   string
	ChannelID string
	Value     int
	UpdatedAt time.Time
}

// StatsKey identifies a rating aggregate: one movie in one scope.
type StatsKey struct {
	ImdbID    string
	GuildID   string
	ChannelID string
}

// Key returns the movie's aggregate key.
func (m *Movie) Key() StatsKey {
	return StatsKey{ImdbID: m.ImdbID, GuildID: m.GuildID, ChannelID: m.ChannelID}
}

// RatingStats is the derived aggregate for a StatsKey.
// Average is rounded to one decimal; 0.0 with Count 0 when no ratings exist.
type RatingStats struct {
	Average float64
	Count   int
	Values  []int
}

// ReactionEvent is an inbound reaction add/remove from the chat gateway.
type ReactionEvent struct {
	UserID    string
	GuildID   string
	ChannelID string
	MessageID string
	Emoji     string
}

// MessageEvent is an inbound chat message from the gateway.
type MessageEvent struct {
	MessageID   string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorIsBot bool
	Content     string
}

// --- Interfaces ---

// RatingStore owns the ratings table. Upsert is atomic with respect to the
// (user, movie, scope) uniqueness constraint; the storage layer, not the
// caller, decides the winner when two writes race.
type RatingStore interface {
	HasRated(ctx context.Context, userID string, key StatsKey) (bool, error)
	GetRating(ctx context.Context, userID string, key StatsKey) (int, bool, error)
	Upsert(ctx context.Context, userID string, key StatsKey, value int) error
	// Remove deletes the user's rating; removing an absent rating is a no-op success.
	Remove(ctx context.Context, userID string, key StatsKey) error
	// StatsFor is the canonical aggregate computation over current rows.
	StatsFor(ctx context.Context, key StatsKey) (RatingStats, error)
}

// MovieStore abstracts movie persistence.
type MovieStore interface {
	Create(ctx context.Context, movie *Movie) error
	GetByMessage(ctx context.Context, channelID, messageID string) (*Movie, error)
	GetByKey(ctx context.Context, key StatsKey) (*Movie, error)
	SetMessageRef(ctx context.Context, key StatsKey, messageID string) error
	// ClearMessageRef clears the display-message reference so the movie can be
	// re-posted; the row itself stays.
	ClearMessageRef(ctx context.Context, key StatsKey) error
}

// SettingsStore maps a guild to the channel the bot watches.
type SettingsStore interface {
	GetWatchChannel(ctx context.Context, guildID string) (string, error)
	SetWatchChannel(ctx context.Context, guildID, channelID string) error
}

// SelfActionGuard records corrective reaction removals performed by the engine
// so their gateway echoes are not reprocessed as user actions. Markers expire
// after a cooldown and are consumed on first match.
type SelfActionGuard interface {
	Mark(ctx context.Context, userID, messageID, emoji string) error
	IsSelfInitiated(ctx context.Context, userID, messageID, emoji string) (bool, error)
}

// ReactionGateway performs corrective reaction removals on behalf of users.
type ReactionGateway interface {
	RemoveReaction(ctx context.Context, channelID, messageID, userID, emoji string) error
}

// NoticeSender posts short-lived explanatory messages in the chat channel.
type NoticeSender interface {
	SendTransientNotice(ctx context.Context, channelID, text string) error
}

// DisplayRefresher projects fresh aggregate stats onto a movie's summary
// message. Returns ErrMessageGone when the message no longer exists.
type DisplayRefresher interface {
	Refresh(ctx context.Context, movie *Movie, stats RatingStats) error
}

// MetadataProvider looks up movie metadata by IMDB id.
type MetadataProvider interface {
	Lookup(ctx context.Context, imdbID string) (*MovieMetadata, error)
}

// MovieMetadata is the external metadata used to compose a summary message.
type MovieMetadata struct {
	ImdbID     string
	Title      string
	Year       string
	Plot       string
	Poster     string
	Director   string
	Genre      string
	Runtime    string
	ImdbRating string
}
