package discord

import (
	"context"
	"fmt"

	"github.com/reelrate/reelrate/internal/domain"
)

// EmbedRefresher updates the Audience Rating field on a movie's summary
// message. It implements domain.DisplayRefresher.
type EmbedRefresher struct {
	rest *RestClient
}

func NewEmbedRefresher(rest *RestClient) *EmbedRefresher {
	return &EmbedRefresher{rest: rest}
}

// Refresh reads the summary message back, rewrites the Audience Rating field,
// and edits the message in place. Returns domain.ErrMessageGone (wrapped) when
// the message has been deleted.
func (r *EmbedRefresher) Refresh(ctx context.Context, movie *domain.Movie, stats domain.RatingStats) error {
	msg, err := r.rest.GetMessage(ctx, movie.ChannelID, movie.MessageID)
	if err != nil {
		return err
	}
	if len(msg.Embeds) == 0 {
		return fmt.Errorf("summary message %s has no embed", movie.MessageID)
	}

	setAudienceRating(&msg.Embeds[0], stats)

	return r.rest.EditMessageEmbeds(ctx, movie.ChannelID, movie.MessageID, msg.Embeds)
}
