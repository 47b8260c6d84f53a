package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

type connState int

const (
	stateUnjoined connState = iota
	stateJoined
	stateLeft
)

// Conn wraps one websocket connection and its gateway state. A connection
// belongs to at most one room for its whole lifetime: Unjoined -> Joined ->
// Left, with Left terminal.
type Conn struct {
	ws  *websocket.Conn
	id  string
	out chan []byte

	mu    sync.Mutex
	state connState
	room  *Room

	leaveOnce sync.Once
}

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a WS connection for the hub
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:  ws,
		id:  uuid.NewString(),
		out: make(chan []byte, 64),
	}
}

func (c *Conn) ID() string { return c.id }

// State reports the gateway state. Only the read loop moves Unjoined ->
// Joined, so a check there is not racy; the Left transition is owned by the
// leave path.
func (c *Conn) State() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Room returns the room this connection joined, nil while Unjoined
func (c *Conn) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// markJoined records room membership. Called by Room.Join while the room lock
// is held, so the connection is never observed joined-but-absent.
func (c *Conn) markJoined(r *Room) {
	c.mu.Lock()
	c.state = stateJoined
	c.room = r
	c.mu.Unlock()
}

// detach moves the connection to Left and returns the room it was in, if any
func (c *Conn) detach() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.room
	c.room = nil
	c.state = stateLeft
	return r
}

// enqueue queues a frame for delivery without blocking. A false return means
// the outbound buffer is full and the peer is treated as gone.
func (c *Conn) enqueue(b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop sends outbound messages + periodic pings
// Exits when ctx is cancelled
func (c *Conn) WriteLoop(ctx context.Context) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			_ = c.ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the WS connection normally
func (c *Conn) Close() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}
