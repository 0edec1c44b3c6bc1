package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/domain"
)

const movieColumns = `id, imdb_id, guild_id, channel_id, COALESCE(message_id, ''), title, created_at`

// MovieRepo implements domain.MovieStore backed by PostgreSQL.
type MovieRepo struct {
	pool *pgxpool.Pool
}

// NewMovieRepo creates a MovieRepo from the shared pool.
func NewMovieRepo(pool *pgxpool.Pool) *MovieRepo {
	return &MovieRepo{pool: pool}
}

func scanMovie(row pgx.Row) (*domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID, &movie.ImdbID, &movie.GuildID, &movie.ChannelID,
		&movie.MessageID, &movie.Title, &movie.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMovieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan movie: %w", err)
	}
	return &movie, nil
}

// Create inserts a tracked movie. The (imdb, guild, channel) uniqueness is
// enforced by the database; a conflict surfaces as ErrMovieExists.
func (r *MovieRepo) Create(ctx context.Context, movie *domain.Movie) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO movies (imdb_id, guild_id, channel_id, message_id, title, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())
		ON CONFLICT (imdb_id, guild_id, channel_id) DO NOTHING
		RETURNING `+movieColumns+`
	`, movie.ImdbID, movie.GuildID, movie.ChannelID, movie.MessageID, movie.Title)

	created, err := scanMovie(row)
	if errors.Is(err, domain.ErrMovieNotFound) {
		return domain.ErrMovieExists
	}
	if err != nil {
		return fmt.Errorf("failed to create movie: %w", err)
	}
	*movie = *created
	return nil
}

func (r *MovieRepo) GetByMessage(ctx context.Context, channelID, messageID string) (*domain.Movie, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+movieColumns+` FROM movies
		WHERE channel_id = $1 AND message_id = $2
	`, channelID, messageID)
	return scanMovie(row)
}

func (r *MovieRepo) GetByKey(ctx context.Context, key domain.StatsKey) (*domain.Movie, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+movieColumns+` FROM movies
		WHERE imdb_id = $1 AND guild_id = $2 AND channel_id = $3
	`, key.ImdbID, key.GuildID, key.ChannelID)
	return scanMovie(row)
}

func (r *MovieRepo) SetMessageRef(ctx context.Context, key domain.StatsKey, messageID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE movies SET message_id = $4
		WHERE imdb_id = $1 AND guild_id = $2 AND channel_id = $3
	`, key.ImdbID, key.GuildID, key.ChannelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set message reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMovieNotFound
	}
	return nil
}

// ClearMessageRef drops the display-message reference, keeping the movie row
// so the movie can be re-posted.
func (r *MovieRepo) ClearMessageRef(ctx context.Context, key domain.StatsKey) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE movies SET message_id = NULL
		WHERE imdb_id = $1 AND guild_id = $2 AND channel_id = $3
	`, key.ImdbID, key.GuildID, key.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to clear message reference: %w", err)
	}
	return nil
}
