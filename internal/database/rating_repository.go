package database

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/metrics"
)

// RatingRepo implements domain.RatingStore backed by PostgreSQL. It is the
// only component that mutates the ratings table.
type RatingRepo struct {
	pool *pgxpool.Pool
}

// NewRatingRepo creates a RatingRepo from the shared pool.
func NewRatingRepo(pool *pgxpool.Pool) *RatingRepo {
	return &RatingRepo{pool: pool}
}

func (r *RatingRepo) HasRated(ctx context.Context, userID string, key domain.StatsKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ratings
			WHERE user_id = $1 AND imdb_id = $2 AND guild_id = $3 AND channel_id = $4
		)
	`, userID, key.ImdbID, key.GuildID, key.ChannelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rating existence: %w", err)
	}
	return exists, nil
}

func (r *RatingRepo) GetRating(ctx context.Context, userID string, key domain.StatsKey) (int, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT value FROM ratings
		WHERE user_id = $1 AND imdb_id = $2 AND guild_id = $3 AND channel_id = $4
	`, userID, key.ImdbID, key.GuildID, key.ChannelID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rating: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var value int
	if err := rows.Scan(&value); err != nil {
		return 0, false, fmt.Errorf("failed to scan rating: %w", err)
	}
	return value, true, nil
}

// Upsert inserts or replaces the user's rating atomically; the database's
// conflict resolution decides the winner when two writes race, and updated_at
// always reflects the winning write.
func (r *RatingRepo) Upsert(ctx context.Context, userID string, key domain.StatsKey, value int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ratings (user_id, imdb_id, guild_id, channel_id, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, imdb_id, guild_id, channel_id) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, userID, key.ImdbID, key.GuildID, key.ChannelID, value)
	if err != nil {
		metrics.RatingWrites.WithLabelValues("upsert", "error").Inc()
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	metrics.RatingWrites.WithLabelValues("upsert", "ok").Inc()
	return nil
}

// Remove deletes the user's rating. Removing an absent rating is a no-op
// success.
func (r *RatingRepo) Remove(ctx context.Context, userID string, key domain.StatsKey) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM ratings
		WHERE user_id = $1 AND imdb_id = $2 AND guild_id = $3 AND channel_id = $4
	`, userID, key.ImdbID, key.GuildID, key.ChannelID)
	if err != nil {
		metrics.RatingWrites.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("failed to remove rating: %w", err)
	}
	metrics.RatingWrites.WithLabelValues("remove", "ok").Inc()
	return nil
}

// StatsFor computes the canonical aggregate over all current ratings for key.
// Average is rounded to one decimal; zero values with no rows.
func (r *RatingRepo) StatsFor(ctx context.Context, key domain.StatsKey) (domain.RatingStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT value FROM ratings
		WHERE imdb_id = $1 AND guild_id = $2 AND channel_id = $3
		ORDER BY updated_at
	`, key.ImdbID, key.GuildID, key.ChannelID)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var stats domain.RatingStats
	sum := 0
	for rows.Next() {
		var value int
		if err := rows.Scan(&value); err != nil {
			return domain.RatingStats{}, fmt.Errorf("failed to scan rating value: %w", err)
		}
		stats.Values = append(stats.Values, value)
		sum += value
	}
	if err := rows.Err(); err != nil {
		return domain.RatingStats{}, fmt.Errorf("failed to read ratings: %w", err)
	}

	stats.Count = len(stats.Values)
	if stats.Count > 0 {
		stats.Average = math.Round(float64(sum)/float64(stats.Count)*10) / 10
	}
	return stats, nil
}
