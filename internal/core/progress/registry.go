package progress

import (
	"errors"
	"sync"
	"time"
)

var ErrChannelExists = errors.New("progress channel already registered")

// Registry owns the live channels of one service instance, keyed by task id.
// Channels are inserted when a run starts and removed once their stream has
// been delivered or they are evicted.
type Registry struct {
	now func() time.Time

	mu       sync.Mutex
	channels map[string]*Channel
}

func NewRegistry() *Registry {
	return &Registry{
		now:      time.Now,
		channels: make(map[string]*Channel),
	}
}

func (r *Registry) Open(taskID string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[taskID]; ok {
		return nil, ErrChannelExists
	}
	ch := newChannel(taskID, r.now)
	r.channels[taskID] = ch
	return ch, nil
}

func (r *Registry) Get(taskID string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[taskID]
	return ch, ok
}

// Release drops the channel for taskID, typically after its terminal event
// reached the subscriber.
func (r *Registry) Release(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, taskID)
}

// EvictClosed removes channels that closed more than olderThan ago and
// returns how many were dropped.
func (r *Registry) EvictClosed(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, ch := range r.channels {
		closedAt, closed := ch.ClosedAt()
		if closed && !closedAt.After(cutoff) {
			delete(r.channels, id)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
