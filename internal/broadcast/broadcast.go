package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
)

// Publisher pushes domain events to the connected viewers.
type Publisher interface {
	// Broadcast offers the event to every viewer except the excluded session IDs and
	// returns the number of viewers that accepted it. It never blocks on a viewer.
	Broadcast(ctx context.Context, ev model.Event, exclude ...string) int
}

// Noop is a publisher that drops every event, used when nobody can be connected.
const Noop = noop(0)

type noop int

func (noop) Broadcast(context.Context, model.Event, ...string) int { return 0 }

// Session is a connected viewer.
type Session interface {
	ID() string
	// Send enqueues a frame without blocking, false means the session is not writable.
	Send(frame []byte) bool
}

// HubConfig is the configuration for the hub.
type HubConfig struct {
	Logger log.Logger
}

func (c *HubConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "broadcast.Hub"})
	return nil
}

// Hub is the registry of connected viewers and the fan-out of events to them.
// Frames are enqueued while holding the registry lock, so all sessions observe
// the events in the same order they were broadcast.
type Hub struct {
	sessions map[string]Session
	order    []string
	mu       sync.Mutex
	logger   log.Logger
}

var _ Publisher = &Hub{}

// NewHub creates a new hub.
func NewHub(cfg HubConfig) (*Hub, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Hub{
		sessions: map[string]Session{},
		logger:   cfg.Logger,
	}, nil
}

// Register adds a session. The new session receives the connected event and the
// rest the updated viewer count. Registering an already registered session does nothing.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID()]; ok {
		return
	}
	h.sessions[s.ID()] = s
	h.order = append(h.order, s.ID())

	count := len(h.sessions)
	h.logger.Infof("Viewer %s connected (%d viewers)", s.ID(), count)

	if frame, ok := h.marshal(model.NewConnectedEvent(count)); ok {
		if !s.Send(frame) {
			h.logger.Warningf("Could not send connected event to viewer %s", s.ID())
		}
	}
	h.send(model.NewClientsEvent(count), []string{s.ID()})
}

// Unregister removes a session and notifies the remaining ones. Unregistering an
// unknown session does nothing.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[id]; !ok {
		return
	}
	delete(h.sessions, id)
	h.order = slices.DeleteFunc(h.order, func(sid string) bool { return sid == id })

	count := len(h.sessions)
	h.logger.Infof("Viewer %s disconnected (%d viewers)", id, count)
	h.send(model.NewClientsEvent(count), nil)
}

// Broadcast satisfies Publisher.
func (h *Hub) Broadcast(_ context.Context, ev model.Event, exclude ...string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.send(ev, exclude)
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.sessions)
}

// send must be called with the lock held.
func (h *Hub) send(ev model.Event, exclude []string) int {
	if len(h.sessions) == 0 {
		return 0
	}

	frame, ok := h.marshal(ev)
	if !ok {
		return 0
	}

	delivered := 0
	for _, id := range h.order {
		if slices.Contains(exclude, id) {
			continue
		}
		if !h.sessions[id].Send(frame) {
			h.logger.Debugf("Viewer %s not writable, skipping %s event", id, ev.Type)
			continue
		}
		delivered++
	}

	return delivered
}

func (h *Hub) marshal(ev model.Event) ([]byte, bool) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Could not marshal %s event: %s", ev.Type, err)
		return nil, false
	}
	return frame, true
}
