// Package notifier fans sync events out to live subscribers such as the
// API's event stream.
package notifier

import (
	"sync"

	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// Event announces a finished sync run.
type Event struct {
	Template string         `json:"template"`
	RunID    string         `json:"run_id"`
	Status   core.RunStatus `json:"status"`
	Synced   int            `json:"synced"`
	Failed   int            `json:"failed"`
}

// bufferSize is how many events a slow subscriber may fall behind by.
const bufferSize = 8

// Notifier broadcasts events to every subscriber.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{listeners: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving future events. The caller must
// Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, bufferSize)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Publish delivers ev to every subscriber without blocking. A subscriber
// whose buffer is full misses the event.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
