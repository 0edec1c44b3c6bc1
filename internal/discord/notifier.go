package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Notifier posts short-lived notices that explain a corrective action and then
// disappear, keeping the channel clean.
type Notifier struct {
	rest  *RestClient
	ttl   time.Duration
	clock clockwork.Clock
}

// NewNotifier creates a notice sender whose messages self-delete after ttl.
func NewNotifier(rest *RestClient, ttl time.Duration, clock clockwork.Clock) *Notifier {
	return &Notifier{rest: rest, ttl: ttl, clock: clock}
}

// SendTransientNotice posts text to channelID and schedules its deletion. The
// delete runs on its own context: the notice must outlive the event handler
// that triggered it.
func (n *Notifier) SendTransientNotice(ctx context.Context, channelID, text string) error {
	msg, err := n.rest.CreateMessage(ctx, channelID, text)
	if err != nil {
		return fmt.Errorf("notice create failed: %w", err)
	}

	n.clock.AfterFunc(n.ttl, func() {
		deleteCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.rest.DeleteMessage(deleteCtx, channelID, msg.ID); err != nil {
			slog.Warn("Failed to delete transient notice",
				"channel_id", channelID, "message_id", msg.ID, "error", err)
		}
	})

	return nil
}
