// Package bridge implements the handshake between an injected extraction
// script and the Go side: zero or more item messages followed by exactly one
// done message, scoped to a single scrape attempt.
package bridge

import (
	"sync"
	"sync/atomic"
)

// Kind distinguishes streamed items from the terminal signal.
type Kind int

const (
	Item Kind = iota
	Done
)

func (k Kind) String() string {
	if k == Done {
		return "done"
	}
	return "item"
}

// Message is one call made by the script on the bridge.
type Message struct {
	Attempt uint64
	Kind    Kind
	Text    string
	Link    string
}

// Payload is the wire form the browser shim sends for every call.
type Payload struct {
	Attempt uint64
	Kind    string // "item" or "done"
	Text    string
	Link    string
}

var attempts atomic.Uint64

// Bridge carries the messages of one attempt. Items sent after Finished, or
// after Close, are dropped.
type Bridge struct {
	attempt uint64
	msgs    chan Message

	mu       sync.Mutex
	finished bool

	closeOnce sync.Once
	closed    chan struct{}
}

// New returns a bridge for a fresh attempt.
func New() *Bridge {
	return &Bridge{
		attempt: attempts.Add(1),
		msgs:    make(chan Message, 64),
		closed:  make(chan struct{}),
	}
}

// Attempt returns the attempt id this bridge accepts payloads for.
func (b *Bridge) Attempt() uint64 { return b.attempt }

// Messages streams the calls in the order the script made them.
func (b *Bridge) Messages() <-chan Message { return b.msgs }

// Content records one extracted item. link may be empty.
func (b *Bridge) Content(text, link string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.send(Message{Attempt: b.attempt, Kind: Item, Text: text, Link: link})
}

// Finished terminates the handshake. Only the first call has an effect.
func (b *Bridge) Finished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	b.send(Message{Attempt: b.attempt, Kind: Done})
}

// Deliver routes a wire payload into the bridge. It returns false when the
// payload belongs to another attempt.
func (b *Bridge) Deliver(p Payload) bool {
	if p.Attempt != b.attempt {
		return false
	}
	switch p.Kind {
	case "done":
		b.Finished()
	default:
		b.Content(p.Text, p.Link)
	}
	return true
}

// Close releases any sender blocked on a reader that went away.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// send must be called with b.mu held.
func (b *Bridge) send(m Message) {
	select {
	case b.msgs <- m:
	case <-b.closed:
	}
}
