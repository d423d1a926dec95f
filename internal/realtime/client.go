package realtime

import "sync"

// ConnState is the per-connection protocol state machine:
// Connected (no join yet) -> Joined -> Disconnected (terminal).
type ConnState int32

const (
	StateConnected ConnState = iota
	StateJoined
	StateDisconnected
)

// Sink is the outbound side of one connection. The gateway only needs to
// queue envelopes and observe teardown; tests substitute fakes.
type Sink interface {
	ID() string
	// Deliver queues an envelope for the connection; false means the
	// connection is gone or its queue is full and the envelope was dropped.
	Deliver(ev Envelope) bool
	Done() <-chan struct{}
}

const defaultSendQueueSize = 64

// Client is one live websocket participant. The send queue is never closed
// by broadcasters; Close only signals done, keeping concurrent Deliver
// calls safe (the write pump drains until done).
type Client struct {
	id   string
	send chan Envelope
	done chan struct{}

	closeOnce sync.Once

	mu    sync.Mutex
	state ConnState
}

func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Client{
		id:   id,
		send: make(chan Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Deliver(ev Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	case <-c.done:
		return false
	default:
		// queue full: drop rather than block the broadcaster
		return false
	}
}

func (c *Client) Send() <-chan Envelope {
	return c.send
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition moves the state machine forward; invalid moves are rejected.
// Disconnected is terminal.
func (c *Client) Transition(next ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StateDisconnected:
		return false
	case next == StateJoined && c.state != StateConnected:
		return false
	}
	c.state = next
	return true
}

// Close signals teardown; idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		close(c.done)
	})
}
