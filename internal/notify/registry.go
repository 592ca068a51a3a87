package notify

import (
	"context"
	"sync"
)

const EventNotification = "notification"

// Event is what a live connection receives.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Conn is a live connection handle owned by the real-time transport.
type Conn interface {
	ID() string
	Push(ctx context.Context, ev Event) error
}

// Registry maps user id -> live connection. One connection per user; a newer
// registration replaces the older one. Nothing is persisted.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]Conn
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[int64]Conn)}
}

func (r *Registry) Register(userID int64, c Conn) {
	r.mu.Lock()
	r.byUser[userID] = c
	r.mu.Unlock()
}

// Remove drops every entry whose handle is c and returns the affected user ids.
func (r *Registry) Remove(c Conn) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []int64
	for uid, cur := range r.byUser {
		if cur.ID() == c.ID() {
			delete(r.byUser, uid)
			users = append(users, uid)
		}
	}
	return users
}

func (r *Registry) Lookup(userID int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
