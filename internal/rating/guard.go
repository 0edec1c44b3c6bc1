package rating

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type guardKey struct {
	UserID    string
	MessageID string
	Emoji     string
}

// MemoryGuard is an in-process self-action guard: a concurrent expiring set of
// (user, message, emoji) markers. A marker is consumed on its first successful
// lookup so a legitimately repeated user action inside the cooldown window is
// suppressed at most once. The guard is a cache, not a source of truth —
// losing a marker early only costs one redundant processing cycle.
type MemoryGuard struct {
	mu       sync.Mutex
	entries  map[guardKey]time.Time
	cooldown time.Duration
	clock    clockwork.Clock
}

// NewMemoryGuard creates a guard with the given cooldown window.
func NewMemoryGuard(cooldown time.Duration, clock clockwork.Clock) *MemoryGuard {
	return &MemoryGuard{
		entries:  make(map[guardKey]time.Time),
		cooldown: cooldown,
		clock:    clock,
	}
}

// Mark records a suppression marker. Marking the same key again restarts the
// cooldown window.
func (g *MemoryGuard) Mark(_ context.Context, userID, messageID, emoji string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[guardKey{UserID: userID, MessageID: messageID, Emoji: emoji}] = g.clock.Now().Add(g.cooldown)
	return nil
}

// IsSelfInitiated reports whether the engine recently removed this exact
// reaction itself. A match consumes the marker; an expired marker is absent.
func (g *MemoryGuard) IsSelfInitiated(_ context.Context, userID, messageID, emoji string) (bool, error) {
	key := guardKey{UserID: userID, MessageID: messageID, Emoji: emoji}

	g.mu.Lock()
	defer g.mu.Unlock()

	expiresAt, ok := g.entries[key]
	if !ok {
		return false, nil
	}
	delete(g.entries, key)
	if g.clock.Now().After(expiresAt) {
		return false, nil
	}
	return true, nil
}

// Sweep removes expired markers and returns the count removed.
func (g *MemoryGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	swept := 0
	for key, expiresAt := range g.entries {
		if now.After(expiresAt) {
			delete(g.entries, key)
			swept++
		}
	}
	return swept
}

// Size returns the current number of markers (including expired).
func (g *MemoryGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// StartSweepTimer starts a background goroutine that periodically removes
// expired markers. Returns a stop function.
func (g *MemoryGuard) StartSweepTimer(interval time.Duration) func() {
	ticker := g.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if swept := g.Sweep(); swept > 0 {
					slog.Debug("Swept expired guard markers", "count", swept, "remaining", g.Size())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
