package server

import (
	"sync"

	"github.com/harmonize-tools/s4h-workbench/internal/engine"
)

// Notifier broadcasts stage outcomes to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan engine.Outcome]struct{}
}

// NewNotifier creates a new Notifier instance.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan engine.Outcome]struct{}),
	}
}

// Subscribe returns a channel that receives outcomes as stages finish.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan engine.Outcome {
	ch := make(chan engine.Outcome, 8)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan engine.Outcome) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends out to all listeners.
// Non-blocking: a listener whose buffer is full misses the outcome.
func (n *Notifier) Broadcast(out engine.Outcome) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- out:
		default:
		}
	}
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
