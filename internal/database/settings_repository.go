package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/domain"
)

// SettingsRepo implements domain.SettingsStore backed by PostgreSQL.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// NewSettingsRepo creates a SettingsRepo from the shared pool.
func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) GetWatchChannel(ctx context.Context, guildID string) (string, error) {
	var channelID string
	err := r.pool.QueryRow(ctx, `
		SELECT watch_channel_id FROM guild_settings WHERE guild_id = $1
	`, guildID).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrSettingsNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get watch channel: %w", err)
	}
	return channelID, nil
}

func (r *SettingsRepo) SetWatchChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guild_settings (guild_id, watch_channel_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (guild_id) DO UPDATE SET
			watch_channel_id = EXCLUDED.watch_channel_id,
			updated_at = NOW()
	`, guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to set watch channel: %w", err)
	}
	return nil
}
