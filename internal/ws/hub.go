package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"codeblocks/pkg/metrics"
)

// Seeder supplies the initial code for a newly created room. The codeblock
// store implements it; absence of a codeblock is not an error.
type Seeder interface {
	InitialCode(ctx context.Context, id string) (string, error)
}

// PresenceSink receives best-effort occupancy mirror writes. *Presence
// implements it. The hub dispatches every write on its own goroutine and
// never waits on one, so a slow mirror cannot stall room or registry work.
type PresenceSink interface {
	Update(roomID string, students int)
	Clear(roomID string)
}

// Hub owns the room registry and drives the per-connection protocol. Rooms
// are created lazily on first join and destroyed the instant they empty.
type Hub struct {
	log         *slog.Logger
	seed        Seeder
	presence    PresenceSink
	seedTimeout time.Duration

	mu    sync.Mutex
	rooms map[string]*Room // active rooms by codeblock id
}

// NewHub sets up the hub. seed and presence may be nil (rooms start empty,
// occupancy is not mirrored).
func NewHub(logger *slog.Logger, seed Seeder, presence PresenceSink, seedTimeout time.Duration) *Hub {
	if seedTimeout <= 0 {
		seedTimeout = 3 * time.Second
	}
	return &Hub{
		log:         logger,
		seed:        seed,
		presence:    presence,
		seedTimeout: seedTimeout,
		rooms:       map[string]*Room{},
	}
}

// RoomCount reports the number of live rooms
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// LookupRoom returns the registered room for id, nil if absent
func (h *Hub) LookupRoom(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[id]
}

// getOrCreate returns the room for id, constructing and registering it if
// needed. Registration happens entirely under the registry lock; the seed
// fetch runs afterwards so a slow store never stalls other joins.
func (h *Hub) getOrCreate(id string) *Room {
	h.mu.Lock()
	r := h.rooms[id]
	created := r == nil
	if created {
		r = newRoom(id)
		h.rooms[id] = r
	}
	h.mu.Unlock()

	if created {
		metrics.ActiveRooms.Inc()
		h.log.Info("room.created", "room", id)
		go h.seedRoom(r)
	}
	return r
}

// seedRoom fetches the initial code with a bounded timeout and patches it in
// unless the room has already seen a live edit. Failure degrades to an empty
// room.
func (h *Hub) seedRoom(r *Room) {
	if h.seed == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.seedTimeout)
	defer cancel()
	code, err := h.seed.InitialCode(ctx, r.ID())
	if err != nil {
		h.log.Warn("room.seed.unavailable", "room", r.ID(), "err", err)
		return
	}
	r.ApplySeed(code)
}

// handleJoin processes a join-room event. Joining twice on one connection is
// a protocol violation and is dropped.
func (h *Hub) handleJoin(c *Conn, roomID string) {
	if roomID == "" || c.State() != stateUnjoined {
		h.violation(c, "join")
		return
	}
	for {
		r := h.getOrCreate(roomID)
		role, students, failed, ok := r.Join(c)
		if !ok {
			// Lost the race against teardown; the registry no longer holds
			// this object, so the next getOrCreate builds a fresh room.
			continue
		}
		h.log.Info("ws.join", "room", roomID, "conn", c.ID(), "role", role, "students", students)
		h.mirrorUpdate(roomID, students)
		h.failAll(failed)
		return
	}
}

// handleCodeUpdate processes a code-update event from a joined connection
func (h *Hub) handleCodeUpdate(c *Conn, code string) {
	r := c.Room()
	if r == nil {
		h.violation(c, "code-update")
		return
	}
	failed, ok := r.SetCode(c, code)
	if !ok {
		// The sender was already removed (implicit leave raced the edit).
		return
	}
	h.failAll(failed)
}

// handleLeave processes an explicit leave-room event. Leaving before ever
// joining is a protocol violation and is dropped; a duplicate leave after
// Left is absorbed by the idempotent leave path.
func (h *Hub) handleLeave(c *Conn) {
	if c.State() == stateUnjoined {
		h.violation(c, "leave")
		return
	}
	h.leave(c)
}

// leave detaches a connection from its room exactly once, covering explicit
// leave-room, transport close, and delivery failure alike. Duplicate signals
// are no-ops.
func (h *Hub) leave(c *Conn) {
	c.leaveOnce.Do(func() {
		r := c.detach()
		if r == nil {
			return
		}
		empty, wasMentor, students, failed := r.Leave(c)
		h.log.Info("ws.leave", "room", r.ID(), "conn", c.ID(), "mentor", wasMentor, "students", students)
		if empty {
			if h.removeIfEmpty(r) {
				h.mirrorClear(r.ID())
			}
		} else {
			h.mirrorUpdate(r.ID(), students)
		}
		h.failAll(failed)
	})
}

// removeIfEmpty retires a room from the registry if it is still registered
// and still empty. The closed flag is set under both locks so a join that
// raced us observes it and retries against a fresh room. Nothing here may
// touch redis or any other external system: both locks are held.
func (h *Hub) removeIfEmpty(r *Room) bool {
	removed := false
	h.mu.Lock()
	if h.rooms[r.ID()] == r {
		r.mu.Lock()
		if len(r.participants) == 0 {
			r.closed = true
			delete(h.rooms, r.ID())
			removed = true
			metrics.ActiveRooms.Dec()
			h.log.Info("room.destroyed", "room", r.ID())
		}
		r.mu.Unlock()
	}
	h.mu.Unlock()
	return removed
}

// mirrorUpdate and mirrorClear hand presence writes to their own goroutines.
// The mirror is best-effort: the event path never waits on it and never
// holds a lock across it.
func (h *Hub) mirrorUpdate(roomID string, students int) {
	if h.presence == nil {
		return
	}
	go h.presence.Update(roomID, students)
}

func (h *Hub) mirrorClear(roomID string) {
	if h.presence == nil {
		return
	}
	go h.presence.Clear(roomID)
}

// failAll treats each failed delivery as an implicit leave for that
// recipient. The leaves run outside any room lock.
func (h *Hub) failAll(failed []*Conn) {
	for _, fc := range failed {
		fc := fc
		go func() {
			h.log.Warn("ws.delivery_failed", "conn", fc.ID())
			h.leave(fc)
			_ = fc.Close()
		}()
	}
}

func (h *Hub) violation(c *Conn, event string) {
	metrics.ProtocolViolations.Inc()
	h.log.Warn("ws.protocol_violation", "conn", c.ID(), "event", event)
}

// ServeWS handles a new /ws connection and runs its read loop until the
// transport closes
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sock, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(sock)
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	// Outbound writer
	go c.WriteLoop(ctx)

	for {
		data, ok := c.Read(ctx)
		if !ok {
			break
		}
		ev, err := decodeClientEvent(data)
		if err != nil {
			metrics.ProtocolViolations.Inc()
			h.log.Warn("ws.bad_frame", "conn", c.ID(), "err", err)
			continue
		}

		switch ev.Event {
		case evtJoinRoom:
			h.handleJoin(c, ev.RoomID)
		case evtCodeUpdate:
			if c.State() != stateJoined {
				h.violation(c, "code-update")
				continue
			}
			h.handleCodeUpdate(c, ev.Code)
		case evtLeaveRoom:
			h.handleLeave(c)
		}
	}

	// Transport close counts as a leave; h.leave is idempotent so a prior
	// explicit leave-room makes this a no-op.
	h.leave(c)
	_ = c.Close()
}
