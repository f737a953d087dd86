package session

import "sync"

// Relay carries server messages for one session to whichever websocket is
// currently attached. Publishing never blocks; messages are dropped when no
// connection is attached or its queue is full.
type Relay struct {
	mu       sync.Mutex
	out      chan<- any
	attachID uint64
	closed   bool
}

func NewRelay() *Relay {
	return &Relay{}
}

// Attach makes out the destination for future messages, replacing any
// earlier connection. The returned func detaches out if it is still current.
func (r *Relay) Attach(out chan<- any) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachID++
	id := r.attachID
	if !r.closed {
		r.out = out
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.attachID == id {
			r.out = nil
		}
	}
}

func (r *Relay) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out != nil
}

func (r *Relay) Publish(msg any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return false
	}
	select {
	case r.out <- msg:
		return true
	default:
		return false
	}
}

// Close detaches the current connection and ignores later attaches.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.out = nil
}
