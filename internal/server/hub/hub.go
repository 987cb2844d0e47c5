// Package hub fans document updates out to the watchers of each user.
package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription receives the user's documents. Only the newest pending
// document is kept: a slow reader skips intermediate versions but always
// ends up with the latest one.
type Subscription struct {
	ID     string
	UserID string
	C      <-chan []byte

	ch chan []byte
}

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[string]*Subscription
}

func New() *Hub {
	return &Hub{subs: make(map[string]map[string]*Subscription)}
}

// Subscribe registers a watcher for userID.
func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan []byte, 1)
	s := &Subscription{ID: uuid.NewString(), UserID: userID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[string]*Subscription)
	}
	h.subs[userID][s.ID] = s
	return s
}

// Unsubscribe removes s and closes its channel. Repeated calls are no-ops.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	userSubs := h.subs[s.UserID]
	if _, ok := userSubs[s.ID]; !ok {
		return
	}
	delete(userSubs, s.ID)
	if len(userSubs) == 0 {
		delete(h.subs, s.UserID)
	}
	close(s.ch)
}

// Publish hands data to every watcher of userID without blocking. A watcher
// that has not taken its previous document gets data in its place.
func (h *Hub) Publish(userID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs[userID] {
		select {
		case s.ch <- data:
		default:
			// replace the stale pending document
			select {
			case <-s.ch:
			default:
			}
			s.ch <- data
		}
	}
}

// Count reports the number of watchers of userID.
func (h *Hub) Count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
