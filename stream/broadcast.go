// Package stream serves the annotated video feed over HTTP as an MJPEG
// stream along with the enrollment and lock control endpoints.
package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Broadcaster fans encoded JPEG frames out to all connected stream
// clients.  Slow clients drop frames instead of blocking the capture loop
type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]chan []byte
	// depth is the per client frame buffer size
	depth int
}

// NewBroadcaster creates a broadcaster buffering up to depth frames per
// client
func NewBroadcaster(depth int) *Broadcaster {

	if depth <= 0 {
		depth = 4
	}

	return &Broadcaster{
		clients: make(map[string]chan []byte),
		depth:   depth,
	}
}

// Subscribe registers a new client and returns its ID and frame channel
func (b *Broadcaster) Subscribe() (string, <-chan []byte) {

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan []byte, b.depth)
	b.clients[id] = ch

	return id, ch
}

// Unsubscribe removes the client and closes its frame channel
func (b *Broadcaster) Unsubscribe(id string) {

	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(ch)
	}
}

// Publish sends an encoded JPEG frame to all clients.  Clients whose
// buffer is full skip the frame
func (b *Broadcaster) Publish(frame []byte) {

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients {
		select {
		case ch <- frame:
		default:
			// client is not keeping up, drop the frame
		}
	}
}

// Clients returns the number of connected stream clients
func (b *Broadcaster) Clients() int {

	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.clients)
}
