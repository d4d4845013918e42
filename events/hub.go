package events

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt signals that a listener wants to stop further processing.
var ErrInterrupt = errors.New("event interrupted")

// ListenerFn is an event listener function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type ListenerFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type listenerEntry struct {
	priority int
	fn       ListenerFn
	name     string
}

// Hub manages event listener registrations. Services emit domain events
// through it so cross-cutting reactions (announcements, leaderboard
// touches) stay out of the services themselves.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string][]*listenerEntry
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string][]*listenerEntry)}
}

// Register adds a ListenerFn for the given event with the given priority
// (lower runs first). name is used for Unregister.
func (h *Hub) Register(event string, priority int, name string, fn ListenerFn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.listeners[event]
	entries = append(entries, &listenerEntry{priority: priority, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	h.listeners[event] = entries
}

// Unregister removes all listeners with the given name for the given event.
func (h *Hub) Unregister(event, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.listeners[event]
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	h.listeners[event] = entries[:n]
}

// UnregisterAll removes all listeners registered with the given name across
// all events.
func (h *Hub) UnregisterAll(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for event, entries := range h.listeners {
		n := 0
		for _, e := range entries {
			if e.name != name {
				entries[n] = e
				n++
			}
		}
		h.listeners[event] = entries[:n]
	}
}

// Emit executes all registered listeners for event in priority order.
// Data flows through each listener, allowing modification.
// If any listener returns ErrInterrupt, execution stops.
func (h *Hub) Emit(ctx context.Context, event string, data interface{}) (interface{}, error) {
	h.mu.RLock()
	entries := make([]*listenerEntry, len(h.listeners[event]))
	copy(entries, h.listeners[event])
	h.mu.RUnlock()

	var err error
	for _, e := range entries {
		data, err = e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return data, err
		}
	}
	return data, nil
}

// ---- Event names ----

const (
	ProfileLevelUp = "profile_level_up"
	GuildCreated   = "guild_created"
	GuildJoined    = "guild_joined"
	GuildLeft      = "guild_left"
)

// LevelUp is the payload emitted with ProfileLevelUp.
type LevelUp struct {
	ProfileID int64
	Username  string
	Level     int
}

// GuildChange is the payload emitted with the guild lifecycle events.
type GuildChange struct {
	GuildID   int64
	GuildName string
	ProfileID int64
}
