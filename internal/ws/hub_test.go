package ws

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSeeder struct {
	mu    sync.Mutex
	calls int
	code  string
	err   error
}

func (s *stubSeeder) InitialCode(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.code, s.err
}

func (s *stubSeeder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestHub(seed Seeder) *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(logger, seed, nil, time.Second)
}

func TestHubSessionScenario(t *testing.T) {
	seed := &stubSeeder{code: "seed"}
	h := newTestHub(seed)

	// A joins an empty room and becomes the mentor
	a := NewConn(nil)
	h.handleJoin(a, "abc123")
	msg := recvFrame(t, a)
	assert.Equal(t, "assign-role", msg["event"])
	assert.Equal(t, "mentor", msg["role"])
	msg = recvFrame(t, a)
	assert.Equal(t, "students-count", msg["event"])
	assert.Equal(t, float64(0), msg["count"])

	// B joins and becomes a student; both see count 1
	b := NewConn(nil)
	h.handleJoin(b, "abc123")
	msg = recvFrame(t, b)
	assert.Equal(t, "student", msg["role"])
	msg = recvFrame(t, b)
	assert.Equal(t, float64(1), msg["count"])
	msg = recvFrame(t, a)
	assert.Equal(t, float64(1), msg["count"])

	// A edits; B receives the update, A gets no echo
	h.handleCodeUpdate(a, "x=1")
	msg = recvFrame(t, b)
	assert.Equal(t, "code-update", msg["event"])
	assert.Equal(t, "x=1", msg["code"])
	assertNoFrame(t, a)
	assert.Equal(t, "x=1", h.LookupRoom("abc123").Code())

	// A disconnects; B is told the mentor left, room survives
	h.leave(a)
	msg = recvFrame(t, b)
	assert.Equal(t, "mentor-left", msg["event"])
	require.NotNil(t, h.LookupRoom("abc123"))

	// B leaves; the room is torn down
	h.leave(b)
	assert.Nil(t, h.LookupRoom("abc123"))
	assert.Equal(t, 0, h.RoomCount())
}

func TestHubConcurrentFirstJoinsOneRoom(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	const n = 20
	conns := make([]*Conn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		conns[i] = NewConn(nil)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.handleJoin(conns[i], "fresh")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.RoomCount())
	r := h.LookupRoom("fresh")
	require.NotNil(t, r)
	assert.Equal(t, n-1, r.StudentCount())

	mentors := 0
	for _, c := range conns {
		msg := recvFrame(t, c)
		require.Equal(t, "assign-role", msg["event"])
		if msg["role"] == "mentor" {
			mentors++
		}
	}
	assert.Equal(t, 1, mentors)
}

func TestHubRejoinAfterTeardownReseeds(t *testing.T) {
	seed := &stubSeeder{code: "seed v1"}
	h := newTestHub(seed)

	a := NewConn(nil)
	h.handleJoin(a, "abc123")
	first := h.LookupRoom("abc123")
	require.Eventually(t, func() bool { return first.Code() == "seed v1" },
		time.Second, 5*time.Millisecond)

	h.handleCodeUpdate(a, "edited")
	h.leave(a)
	require.Nil(t, h.LookupRoom("abc123"))

	// Recreating the id produces a fresh room, reseeded and unaware of the
	// destroyed instance's edits
	b := NewConn(nil)
	h.handleJoin(b, "abc123")
	second := h.LookupRoom("abc123")
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	require.Eventually(t, func() bool { return second.Code() == "seed v1" },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, seed.callCount())
}

func TestHubSeedFailureDegradesToEmptyRoom(t *testing.T) {
	seed := &stubSeeder{err: context.DeadlineExceeded}
	h := newTestHub(seed)

	a := NewConn(nil)
	h.handleJoin(a, "abc123")
	require.Eventually(t, func() bool { return seed.callCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, "", h.LookupRoom("abc123").Code())

	// The room still works
	msg := recvFrame(t, a)
	assert.Equal(t, "mentor", msg["role"])
}

func TestHubDoubleJoinRejected(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	a := NewConn(nil)
	h.handleJoin(a, "abc123")
	drain(a)

	h.handleJoin(a, "other")
	assertNoFrame(t, a)
	assert.Nil(t, h.LookupRoom("other"))
	assert.Equal(t, "abc123", a.Room().ID())
}

func TestHubJoinAfterLeaveRejected(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	a := NewConn(nil)
	h.handleJoin(a, "abc123")
	h.leave(a)
	drain(a)

	// Left is terminal: one connection, one membership, one lifetime
	h.handleJoin(a, "abc123")
	assertNoFrame(t, a)
	assert.Nil(t, h.LookupRoom("abc123"))
}

func TestHubLeaveIdempotent(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	a := NewConn(nil)
	b := NewConn(nil)
	h.handleJoin(a, "abc123")
	h.handleJoin(b, "abc123")
	drain(a)
	drain(b)

	// Duplicate disconnect signals collapse into one leave
	h.leave(b)
	h.leave(b)
	h.leave(b)

	msg := recvFrame(t, a)
	assert.Equal(t, "students-count", msg["event"])
	assert.Equal(t, float64(0), msg["count"])
	assertNoFrame(t, a)
	assert.Equal(t, 1, h.RoomCount())
}

func TestHubCodeUpdateBeforeJoinDropped(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	a := NewConn(nil)
	h.handleCodeUpdate(a, "x=1")
	assertNoFrame(t, a)
	assert.Equal(t, 0, h.RoomCount())
}

func TestHubDeliveryFailureIsImplicitLeave(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	a := NewConn(nil)
	b := NewConn(nil)
	h.handleJoin(a, "abc123")
	h.handleJoin(b, "abc123")
	drain(a)

	// Jam B's outbound buffer so the next delivery to it fails
	for b.enqueue([]byte("x")) {
	}

	h.handleCodeUpdate(a, "x=1")

	// B is treated as gone; A eventually sees the student count drop to 0
	require.Eventually(t, func() bool {
		r := h.LookupRoom("abc123")
		return r != nil && r.StudentCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, stateLeft, b.State())

	// A was unaffected by B's failure
	assert.Equal(t, "x=1", h.LookupRoom("abc123").Code())
}

func TestHubConcurrentJoinLeaveChurn(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewConn(nil)
			h.handleJoin(c, "churn")
			go drainForever(c)
			h.leave(c)
		}()
	}
	wg.Wait()

	// Every join was matched by a leave, so the room must be gone
	require.Eventually(t, func() bool { return h.RoomCount() == 0 },
		time.Second, 5*time.Millisecond)
}

// drainForever keeps a test connection's buffer from filling during churn
func drainForever(c *Conn) {
	for range c.out {
	}
}

// stalledPresence blocks every mirror write until release is closed,
// standing in for a redis that stopped answering
type stalledPresence struct {
	release chan struct{}
	mu      sync.Mutex
	cleared []string
}

func (p *stalledPresence) Update(string, int) { <-p.release }

func (p *stalledPresence) Clear(roomID string) {
	<-p.release
	p.mu.Lock()
	p.cleared = append(p.cleared, roomID)
	p.mu.Unlock()
}

func (p *stalledPresence) clearedRooms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.cleared...)
}

func TestHubTeardownNotBlockedByPresence(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &stalledPresence{release: make(chan struct{})}
	h := NewHub(logger, &stubSeeder{}, p, time.Second)

	a := NewConn(nil)
	h.handleJoin(a, "room-a")

	// Tearing down room-a must not hold the registry hostage to the stuck
	// mirror: a join to an unrelated room has to go through immediately.
	done := make(chan struct{})
	go func() {
		h.leave(a)
		b := NewConn(nil)
		h.handleJoin(b, "room-b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry stalled behind a presence write during teardown")
	}
	assert.Nil(t, h.LookupRoom("room-a"))
	require.NotNil(t, h.LookupRoom("room-b"))

	// Once the mirror recovers, the teardown's clear still lands
	close(p.release)
	require.Eventually(t, func() bool {
		rooms := p.clearedRooms()
		return len(rooms) == 1 && rooms[0] == "room-a"
	}, time.Second, 5*time.Millisecond)
}

func TestHubPresenceWriteDoesNotStallEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &stalledPresence{release: make(chan struct{})}
	defer close(p.release)
	h := NewHub(logger, &stubSeeder{}, p, time.Second)

	a := NewConn(nil)
	b := NewConn(nil)

	// Joins and edits must complete while every mirror write hangs
	done := make(chan struct{})
	go func() {
		h.handleJoin(a, "abc123")
		h.handleJoin(b, "abc123")
		h.handleCodeUpdate(a, "x=1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event processing stalled behind a presence write")
	}
	assert.Equal(t, "x=1", h.LookupRoom("abc123").Code())
	msg := recvFrame(t, b)
	assert.Equal(t, "assign-role", msg["event"])
}

func TestHubLeaveBeforeJoinRejected(t *testing.T) {
	h := newTestHub(&stubSeeder{})

	a := NewConn(nil)
	h.handleLeave(a)
	assert.Equal(t, stateUnjoined, a.State())

	// The dropped event leaves the connection free to join normally
	h.handleJoin(a, "abc123")
	msg := recvFrame(t, a)
	assert.Equal(t, "assign-role", msg["event"])
	assert.Equal(t, "mentor", msg["role"])
}
