// Package discord adapts the engine to Discord: a REST client for message and
// reaction operations, a gateway websocket client for inbound events, and the
// embed projection of rating aggregates.
package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/reelrate/reelrate/internal/domain"
)

const apiBaseURL = "https://discord.com/api/v10"

// Message is the subset of Discord's message object the bot reads back.
type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Embeds    []Embed `json:"embeds"`
}

// Embed mirrors Discord's embed object.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// messagePayload is the request body for message create/edit.
type messagePayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// RestClient talks to the Discord HTTP API. A client-side rate limiter keeps
// the bot under the global request ceiling; Discord's own 429s are surfaced as
// errors rather than retried inline.
type RestClient struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewRestClient creates a REST client authenticated as the bot. baseURL is
// overridable for tests; pass "" for the production endpoint.
func NewRestClient(token, baseURL string) *RestClient {
	if baseURL == "" {
		baseURL = apiBaseURL
	}
	return &RestClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second).
			SetHeader("Authorization", "Bot "+token).
			SetHeader("User-Agent", "DiscordBot (reelrate, 1.0)"),
		limiter: rate.NewLimiter(rate.Limit(40), 5),
	}
}

func (c *RestClient) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return c.http.R().SetContext(ctx), nil
}

// CreateMessage posts a message and returns the created message.
func (c *RestClient) CreateMessage(ctx context.Context, channelID, content string, embeds ...Embed) (*Message, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var msg Message
	resp, err := req.
		SetBody(messagePayload{Content: content, Embeds: embeds}).
		SetResult(&msg).
		Post(fmt.Sprintf("/channels/%s/messages", channelID))
	if err != nil {
		return nil, fmt.Errorf("create message failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("create message", resp.StatusCode())
	}
	return &msg, nil
}

// GetMessage fetches a message by id.
func (c *RestClient) GetMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var msg Message
	resp, err := req.
		SetResult(&msg).
		Get(fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID))
	if err != nil {
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("get message", resp.StatusCode())
	}
	return &msg, nil
}

// EditMessageEmbeds replaces a message's embeds.
func (c *RestClient) EditMessageEmbeds(ctx context.Context, channelID, messageID string, embeds []Embed) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetBody(messagePayload{Embeds: embeds}).
		Patch(fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID))
	if err != nil {
		return fmt.Errorf("edit message failed: %w", err)
	}
	if resp.IsError() {
		return statusError("edit message", resp.StatusCode())
	}
	return nil
}

// DeleteMessage removes a message. Deleting an already-gone message succeeds.
func (c *RestClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete(fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID))
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return statusError("delete message", resp.StatusCode())
	}
	return nil
}

// RemoveReaction deletes another user's reaction (corrective removal).
func (c *RestClient) RemoveReaction(ctx context.Context, channelID, messageID, userID, emoji string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete(fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/%s",
		channelID, messageID, url.PathEscape(emoji), userID))
	if err != nil {
		return fmt.Errorf("remove reaction failed: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return statusError("remove reaction", resp.StatusCode())
	}
	return nil
}

// CreateReaction adds the bot's own reaction, used to seed the rating scale on
// a fresh summary message.
func (c *RestClient) CreateReaction(ctx context.Context, channelID, messageID, emoji string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Put(fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji)))
	if err != nil {
		return fmt.Errorf("create reaction failed: %w", err)
	}
	if resp.IsError() {
		return statusError("create reaction", resp.StatusCode())
	}
	return nil
}

func statusError(op string, status int) error {
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, domain.ErrMessageGone)
	}
	return fmt.Errorf("%s returned status %d", op, status)
}
