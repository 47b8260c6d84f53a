package ws

import (
	"encoding/json"
	"fmt"
)

// Role of a participant inside a room. The first joiner becomes the mentor,
// everyone after that is a student.
type Role string

const (
	RoleMentor  Role = "mentor"
	RoleStudent Role = "student"
)

// Event names, shared vocabulary with the browser client.
const (
	evtJoinRoom      = "join-room"
	evtLeaveRoom     = "leave-room"
	evtCodeUpdate    = "code-update"
	evtAssignRole    = "assign-role"
	evtStudentsCount = "students-count"
	evtMentorLeft    = "mentor-left"
)

// clientEvent is the decoded form of a client frame. One JSON object per text
// frame, discriminated by Event.
type clientEvent struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId,omitempty"`
	Code   string `json:"code,omitempty"`
}

// decodeClientEvent parses a frame and rejects events the server never
// accepts from a client.
func decodeClientEvent(data []byte) (clientEvent, error) {
	var ev clientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return clientEvent{}, fmt.Errorf("malformed frame: %w", err)
	}
	switch ev.Event {
	case evtJoinRoom, evtLeaveRoom, evtCodeUpdate:
		return ev, nil
	case "":
		return clientEvent{}, fmt.Errorf("frame missing event")
	default:
		return clientEvent{}, fmt.Errorf("unexpected client event %q", ev.Event)
	}
}

func encodeAssignRole(role Role) []byte {
	b, _ := json.Marshal(struct {
		Event string `json:"event"`
		Role  Role   `json:"role"`
	}{evtAssignRole, role})
	return b
}

func encodeStudentsCount(count int) []byte {
	b, _ := json.Marshal(struct {
		Event string `json:"event"`
		Count int    `json:"count"`
	}{evtStudentsCount, count})
	return b
}

func encodeCodeUpdate(code string) []byte {
	b, _ := json.Marshal(struct {
		Event string `json:"event"`
		Code  string `json:"code"`
	}{evtCodeUpdate, code})
	return b
}

func encodeMentorLeft() []byte {
	b, _ := json.Marshal(struct {
		Event string `json:"event"`
	}{evtMentorLeft})
	return b
}
