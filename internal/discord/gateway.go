package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/metrics"
)

const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway intents: GUILDS, GUILD_MESSAGES, GUILD_MESSAGE_REACTIONS, MESSAGE_CONTENT.
const gatewayIntents = 1 | 512 | 1024 | 32768

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

const (
	initialBackoff    = time.Second
	maxBackoff        = time.Minute
	healthySessionAge = 5 * time.Minute
)

const (
	dispatchWorkers    = 8
	dispatchQueueDepth = 64
)

// EventHandler receives dispatched gateway events. Events for the same channel
// or message are delivered in gateway order; distinct keys run concurrently.
type EventHandler interface {
	HandleMessageCreate(ctx context.Context, ev domain.MessageEvent)
	HandleReactionAdd(ctx context.Context, ev domain.ReactionEvent)
	HandleReactionRemove(ctx context.Context, ev domain.ReactionEvent)
}

// Gateway maintains the Discord gateway websocket: identify, heartbeats, and
// event dispatch, with automatic reconnection.
type Gateway struct {
	token   string
	url     string
	handler EventHandler

	mu   sync.Mutex // guards writes to the connection and seq
	conn *websocket.Conn
	seq  int

	// Only touched on the read loop; READY sets it, dispatch reads it.
	botUserID string

	dispatcher *eventDispatcher
}

// NewGateway creates a gateway client. url is overridable for tests; pass ""
// for the production endpoint.
func NewGateway(token, url string, handler EventHandler) *Gateway {
	if url == "" {
		url = gatewayURL
	}
	return &Gateway{token: token, url: url, handler: handler}
}

// reconnectBackoff grows exponentially across failing sessions and resets once
// a session has stayed up long enough to count as healthy.
type reconnectBackoff struct {
	current time.Duration
}

func (b *reconnectBackoff) next(sessionLife time.Duration) time.Duration {
	if b.current == 0 || sessionLife >= healthySessionAge {
		b.current = initialBackoff
	}
	delay := b.current
	b.current *= 2
	if b.current > maxBackoff {
		b.current = maxBackoff
	}
	return delay
}

// eventDispatcher serializes events per key while keeping distinct keys
// concurrent: a key always hashes to the same worker, and each worker drains
// its queue in order.
type eventDispatcher struct {
	queues []chan func()
}

func newEventDispatcher(ctx context.Context, workers, depth int) *eventDispatcher {
	d := &eventDispatcher{queues: make([]chan func(), workers)}
	for i := range d.queues {
		queue := make(chan func(), depth)
		d.queues[i] = queue
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case fn := <-queue:
					fn()
				}
			}
		}()
	}
	return d
}

// submit blocks when the key's queue is full: backpressure on the read loop is
// preferable to reordering or dropping events.
func (d *eventDispatcher) submit(ctx context.Context, key string, fn func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	queue := d.queues[h.Sum32()%uint32(len(d.queues))]
	select {
	case queue <- fn:
	case <-ctx.Done():
	}
}

// gatewayPayload is the envelope for every gateway frame.
type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  int             `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type readyData struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
}

// Wire shapes of the dispatch events the bot consumes.
type messageCreateData struct {
	ID        string `json:"id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    struct {
		ID  string `json:"id"`
		Bot bool   `json:"bot"`
	} `json:"author"`
}

type reactionData struct {
	UserID    string `json:"user_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Member    struct {
		User struct {
			Bot bool `json:"bot"`
		} `json:"user"`
	} `json:"member"`
	Emoji struct {
		Name string `json:"name"`
	} `json:"emoji"`
}

func (d *reactionData) event() domain.ReactionEvent {
	return domain.ReactionEvent{
		UserID:    d.UserID,
		GuildID:   d.GuildID,
		ChannelID: d.ChannelID,
		MessageID: d.MessageID,
		Emoji:     d.Emoji.Name,
	}
}

// Run connects to the gateway and processes events until ctx is cancelled.
// Connection failures trigger reconnection with jittered backoff; the backoff
// resets once a session has stayed up long enough.
func (g *Gateway) Run(ctx context.Context) error {
	g.dispatcher = newEventDispatcher(ctx, dispatchWorkers, dispatchQueueDepth)

	var backoff reconnectBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		err := g.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := backoff.next(time.Since(started)) + time.Duration(rand.Int63n(int64(time.Second)))
		metrics.GatewayReconnects.Inc()
		slog.Warn("Gateway session ended, reconnecting", "error", err, "backoff", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runSession runs one gateway connection from dial to disconnect.
func (g *Gateway) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("gateway dial failed: %w", err)
	}
	defer conn.Close()

	g.mu.Lock()
	g.conn = conn
	g.seq = 0
	g.mu.Unlock()

	// Discord speaks first: op 10 hello with the heartbeat interval.
	payload, err := g.readPayload(conn)
	if err != nil {
		return fmt.Errorf("gateway hello read failed: %w", err)
	}
	if payload.Op != opHello {
		return fmt.Errorf("expected hello opcode %d, got %d", opHello, payload.Op)
	}
	var hello helloData
	if err := json.Unmarshal(payload.D, &hello); err != nil {
		return fmt.Errorf("gateway hello decode failed: %w", err)
	}

	if err := g.identify(); err != nil {
		return fmt.Errorf("gateway identify failed: %w", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go g.heartbeatLoop(heartbeatCtx, time.Duration(hello.HeartbeatInterval)*time.Millisecond)

	// Close the connection when ctx is cancelled so the read loop unblocks.
	go func() {
		<-heartbeatCtx.Done()
		conn.Close()
	}()

	slog.Info("Gateway connected", "intents", gatewayIntents)

	for {
		payload, err := g.readPayload(conn)
		if err != nil {
			return fmt.Errorf("gateway read failed: %w", err)
		}

		switch payload.Op {
		case opDispatch:
			if payload.S > 0 {
				g.mu.Lock()
				g.seq = payload.S
				g.mu.Unlock()
			}
			g.dispatch(ctx, payload)
		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				return fmt.Errorf("requested heartbeat failed: %w", err)
			}
		case opReconnect, opInvalidSession:
			return fmt.Errorf("gateway requested reconnect (op %d)", payload.Op)
		case opHeartbeatACK:
			// Nothing to do; a full client would track ack latency here.
		}
	}
}

func (g *Gateway) readPayload(conn *websocket.Conn) (*gatewayPayload, error) {
	var payload gatewayPayload
	if err := conn.ReadJSON(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (g *Gateway) writePayload(payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return g.conn.WriteJSON(payload)
}

func (g *Gateway) identify() error {
	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "reelrate",
				"device":  "reelrate",
			},
		},
	}
	return g.writePayload(identify)
}

func (g *Gateway) sendHeartbeat() error {
	g.mu.Lock()
	seq := g.seq
	g.mu.Unlock()
	return g.writePayload(map[string]any{"op": opHeartbeat, "d": seq})
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				slog.Warn("Gateway heartbeat failed", "error", err)
				return
			}
		}
	}
}

// isBotReaction reports whether a reaction event originated from this bot or
// any other bot account. The bot's own seeded scale reactions echo back as
// MESSAGE_REACTION_ADD and must never reach the rating engine.
func (g *Gateway) isBotReaction(data *reactionData) bool {
	if g.botUserID != "" && data.UserID == g.botUserID {
		return true
	}
	return data.Member.User.Bot
}

func reactionKey(ev domain.ReactionEvent) string {
	return ev.ChannelID + "/" + ev.MessageID
}

// dispatch decodes an op 0 frame and hands it to the event handler through the
// keyed dispatcher, so events touching the same message stay in gateway order.
// Unknown event types are ignored.
func (g *Gateway) dispatch(ctx context.Context, payload *gatewayPayload) {
	switch payload.T {
	case "READY":
		var data readyData
		if err := json.Unmarshal(payload.D, &data); err != nil {
			slog.Warn("Failed to decode READY", "error", err)
			return
		}
		g.botUserID = data.User.ID
		slog.Info("Gateway session ready", "bot_user_id", g.botUserID)

	case "MESSAGE_CREATE":
		var data messageCreateData
		if err := json.Unmarshal(payload.D, &data); err != nil {
			slog.Warn("Failed to decode MESSAGE_CREATE", "error", err)
			return
		}
		ev := domain.MessageEvent{
			MessageID:   data.ID,
			GuildID:     data.GuildID,
			ChannelID:   data.ChannelID,
			AuthorID:    data.Author.ID,
			AuthorIsBot: data.Author.Bot,
			Content:     data.Content,
		}
		g.dispatcher.submit(ctx, ev.ChannelID, func() {
			g.handler.HandleMessageCreate(ctx, ev)
		})

	case "MESSAGE_REACTION_ADD":
		data, err := decodeReaction(payload.D)
		if err != nil {
			slog.Warn("Failed to decode MESSAGE_REACTION_ADD", "error", err)
			return
		}
		if g.isBotReaction(data) {
			return
		}
		ev := data.event()
		g.dispatcher.submit(ctx, reactionKey(ev), func() {
			g.handler.HandleReactionAdd(ctx, ev)
		})

	case "MESSAGE_REACTION_REMOVE":
		data, err := decodeReaction(payload.D)
		if err != nil {
			slog.Warn("Failed to decode MESSAGE_REACTION_REMOVE", "error", err)
			return
		}
		if g.isBotReaction(data) {
			return
		}
		ev := data.event()
		g.dispatcher.submit(ctx, reactionKey(ev), func() {
			g.handler.HandleReactionRemove(ctx, ev)
		})
	}
}

func decodeReaction(raw json.RawMessage) (*reactionData, error) {
	var data reactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
