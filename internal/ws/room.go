package ws

import (
	"sync"
	"time"

	"codeblocks/pkg/metrics"
)

type participant struct {
	role     Role
	joinedAt time.Time // diagnostics only
}

// Room is the live session for one codeblock id. Every mutation happens under
// mu, which also serializes broadcast enqueueing, so each room has a single
// delivery order regardless of how many connections send concurrently.
type Room struct {
	id string

	mu           sync.Mutex
	participants map[*Conn]participant
	mentor       *Conn
	code         string
	edited       bool // a code-update was accepted; the seed may no longer overwrite
	closed       bool // detached from the registry, rejects joins
}

func newRoom(id string) *Room {
	return &Room{
		id:           id,
		participants: map[*Conn]participant{},
	}
}

func (r *Room) ID() string { return r.id }

// Code returns the latest accepted code text
func (r *Room) Code() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

// StudentCount returns the number of student-role participants
func (r *Room) StudentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.studentsLocked()
}

func (r *Room) studentsLocked() int {
	n := 0
	for _, p := range r.participants {
		if p.role == RoleStudent {
			n++
		}
	}
	return n
}

// Join admits a connection, assigning mentor to the first joiner and student
// to everyone else. It sends assign-role to the joiner and the refreshed
// students-count to the whole room. ok is false when the room has already
// been detached from the registry; the caller must retry with a fresh room.
func (r *Room) Join(c *Conn) (role Role, students int, failed []*Conn, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", 0, nil, false
	}

	role = RoleStudent
	if r.mentor == nil {
		role = RoleMentor
		r.mentor = c
	}
	r.participants[c] = participant{role: role, joinedAt: time.Now()}
	c.markJoined(r)

	if !c.enqueue(encodeAssignRole(role)) {
		failed = append(failed, c)
	}
	students = r.studentsLocked()
	failed = append(failed, r.broadcastLocked(encodeStudentsCount(students), nil)...)
	return role, students, failed, true
}

// Leave removes a connection. A departing mentor triggers a mentor-left
// notice to everyone remaining; a departing student triggers a refreshed
// students-count instead. The roles are read here, at dispatch time, never
// from state captured at join.
func (r *Room) Leave(c *Conn) (empty, wasMentor bool, students int, failed []*Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, in := r.participants[c]; !in {
		return len(r.participants) == 0, false, r.studentsLocked(), nil
	}
	delete(r.participants, c)

	wasMentor = r.mentor == c
	if wasMentor {
		r.mentor = nil
		failed = r.broadcastLocked(encodeMentorLeft(), nil)
	} else {
		failed = r.broadcastLocked(encodeStudentsCount(r.studentsLocked()), nil)
	}
	return len(r.participants) == 0, wasMentor, r.studentsLocked(), failed
}

// SetCode accepts a full-document replace from sender and fans it out to
// every other participant. The sender never receives its own update back.
// ok is false when the sender is no longer a participant (e.g. an implicit
// leave raced this update); the event is dropped without touching the room.
func (r *Room) SetCode(sender *Conn, code string) (failed []*Conn, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, in := r.participants[sender]; !in {
		return nil, false
	}
	r.code = code
	r.edited = true
	return r.broadcastLocked(encodeCodeUpdate(code), sender), true
}

// ApplySeed installs the initial code fetched from the codeblock store. It is
// a no-op once a live code-update has been accepted, so a slow seed fetch can
// never clobber edits.
func (r *Room) ApplySeed(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.edited || r.closed {
		return
	}
	r.code = code
}

// broadcastLocked enqueues b to every participant except the excluded one and
// returns the connections whose buffers were full. Callers hold r.mu, which
// is what guarantees the per-room delivery order.
func (r *Room) broadcastLocked(b []byte, except *Conn) (failed []*Conn) {
	for c := range r.participants {
		if c == except {
			continue
		}
		if c.enqueue(b) {
			metrics.Broadcasts.Inc()
		} else {
			failed = append(failed, c)
		}
	}
	return failed
}
