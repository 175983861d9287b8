package core

import "github.com/scenesync/relay/internal/proto"

// RoomState tracks the join handshake.
type RoomState uint8

const (
	// RoomAwaitingContent: the room exists and its creator has been
	// asked for the bootstrap snapshot; joins are rejected.
	RoomAwaitingContent RoomState = iota
	// RoomJoinable: the creator answered CONTENT; late joiners receive
	// a replay of the retained command log before going live.
	RoomJoinable
)

// Room is a named broadcast domain. Members exchange commands only with
// co-members. Rooms persist through departures and disappear only on an
// explicit DELETE_ROOM.
type Room struct {
	Name    string
	OwnerID string
	State   RoomState
	// Attributes holds advisory metadata (version gating, keep-open,
	// custom keys). Never enforced by the relay.
	Attributes map[string]any

	members      map[string]*Client
	log          []*proto.Command
	commandCount uint64
}

// NewRoom constructs a room in the AwaitingContent state.
func NewRoom(name, ownerID string) *Room {
	return &Room{
		Name:       name,
		OwnerID:    ownerID,
		State:      RoomAwaitingContent,
		Attributes: make(map[string]any),
		members:    make(map[string]*Client),
	}
}

// AddMember inserts a client. Returns true if newly added.
func (r *Room) AddMember(c *Client) bool {
	if _, exists := r.members[c.ID]; exists {
		return false
	}
	r.members[c.ID] = c
	return true
}

// RemoveMember deletes a client by id. Returns true if removed.
func (r *Room) RemoveMember(id string) bool {
	if _, exists := r.members[id]; !exists {
		return false
	}
	delete(r.members, id)
	return true
}

// Empty returns true when no clients remain in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	return len(r.members)
}

// CommandCount returns how many broadcast commands the room accepted.
func (r *Room) CommandCount() uint64 {
	return r.commandCount
}

// Broadcast enqueues cmd on every member other than the sender and
// returns the number of deliveries. Each member's outbound path is its
// own connection queue, so a slow member stalls nobody.
func (r *Room) Broadcast(fromID string, cmd *proto.Command) int {
	delivered := 0
	for id, member := range r.members {
		if id == fromID {
			continue
		}
		member.Send(cmd)
		delivered++
	}
	return delivered
}

// Retain appends cmd to the replay log. When counted is true the
// broadcast counter advances; the initial CONTENT snapshot is retained
// uncounted.
func (r *Room) Retain(cmd *proto.Command, counted bool) {
	r.log = append(r.log, cmd)
	if counted {
		r.commandCount++
	}
}

// Replay sends the retained snapshot and command history to a joining
// client. Called before the client enters the member set so it cannot
// observe a live command ahead of the state that command follows.
func (r *Room) Replay(c *Client) {
	for _, cmd := range r.log {
		c.Send(cmd)
	}
}

// snapshot returns the attribute view exposed by LIST_ROOMS.
func (r *Room) snapshot() map[string]any {
	attrs := make(map[string]any, len(r.Attributes)+3)
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	attrs[proto.RoomAttrJoinable] = r.State == RoomJoinable
	attrs[proto.RoomAttrMemberCount] = r.MemberCount()
	attrs[proto.RoomAttrCommandCount] = r.commandCount
	return attrs
}
