package gateway

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	apperrors "market-chat/errors"
)

// Conn is one live, authenticated WebSocket connection. It is created after
// a completed handshake and never persisted.
//
// The receive buffer and the joined set are only ever touched by the
// connection's own read loop, so they carry no locks. Writes can come from
// any goroutine (replies and fan-out) and are serialized by writeMu.
type Conn struct {
	userID string
	sock   net.Conn
	buf    recvBuffer
	joined map[string]struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func NewConn(userID string, sock net.Conn) *Conn {
	return &Conn{
		userID: userID,
		sock:   sock,
		joined: make(map[string]struct{}),
	}
}

func (c *Conn) UserID() string { return c.userID }

func (c *Conn) Join(conversationID string) {
	c.joined[conversationID] = struct{}{}
}

func (c *Conn) Joined(conversationID string) bool {
	_, ok := c.joined[conversationID]
	return ok
}

// WriteEvent marshals the event and sends it as a single text frame.
func (c *Conn) WriteEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.writeFrame(OpcodeText, payload)
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	if c.closed.Load() {
		return apperrors.ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.sock.Write(EncodeFrame(opcode, payload))
	return err
}

// Close shuts the socket down exactly once, whichever code path gets here
// first. Registry removal is the caller's responsibility.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.sock.Close()
	})
}

func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}
