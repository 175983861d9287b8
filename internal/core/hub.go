// Package core holds the relay's room registry: rooms, client handles,
// the join handshake state machine, and broadcast fan-out.
package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/scenesync/relay/internal/metrics"
	"github.com/scenesync/relay/internal/proto"
)

// Hub is the room registry, the single piece of shared mutable state in
// the relay. Every mutation and every introspection snapshot runs under
// one lock, so two racing joins for the same unknown room cannot both
// create it and listings are never torn. Deliveries go through each
// peer's own connection queue, so the lock is never held across socket
// I/O and a slow peer cannot stall the registry.
type Hub struct {
	mu      sync.Mutex
	log     *zerolog.Logger
	clients map[string]*Client
	rooms   map[string]*Room
}

// NewHub creates an empty registry.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		log:     logger,
		clients: make(map[string]*Client),
		rooms:   make(map[string]*Room),
	}
}

// Register adds a freshly connected client and tells it its id.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	c.Send(proto.NewCommand(proto.MessageClientID, proto.EncodeString(c.ID)))
	h.broadcastClientUpdateLocked(c)
	h.mu.Unlock()

	metrics.ConnectedClients.Inc()
	h.log.Info().Str("client_id", c.ID).Str("addr", c.Addr).Msg("client connected")
}

// Unregister performs the implicit leave for a departed peer and
// destroys its handle. Rooms are never auto-deleted.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if c.Room != "" {
		if room := h.rooms[c.Room]; room != nil {
			room.RemoveMember(c.ID)
			h.broadcastRoomUpdateLocked(room)
		}
		c.Room = ""
	}
	delete(h.clients, c.ID)
	h.broadcastToAllLocked(proto.MessageClientAttributesUpdate, map[string]any{c.ID: nil})
	h.mu.Unlock()

	metrics.ConnectedClients.Dec()
	h.log.Info().Str("client_id", c.ID).Msg("client disconnected")
}

// JoinRoom adds c to the named room, creating it when unknown. A newly
// created room starts the content handshake; a room still awaiting its
// snapshot rejects the join.
func (h *Hub) JoinRoom(c *Client, req proto.JoinRoomRequest) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Room != "" {
		return protocolError(ErrCodeAlreadyInRoom, "client already in room %q", c.Room)
	}

	room, exists := h.rooms[req.Room]
	if !exists {
		h.createRoomLocked(c, req.Room, map[string]any{
			proto.RoomAttrKeepOpen:           false,
			proto.RoomAttrIgnoreVersionCheck: req.IgnoreVersionCheck,
			proto.RoomAttrHostVersion:        req.HostVersion,
			proto.RoomAttrProtocolVariant:    req.ProtocolVariant,
		})
		return nil
	}

	if room.State == RoomAwaitingContent {
		return protocolError(ErrCodeRoomNotJoinable, "room %q not joinable yet", req.Room)
	}

	// Confirmation and replay are enqueued before the client enters the
	// member set, all under the registry lock: the joiner cannot see a
	// live command ahead of the snapshot that command follows.
	c.Room = room.Name
	c.Send(proto.NewCommand(proto.MessageJoinRoom, proto.EncodeString(room.Name)))
	room.Replay(c)
	room.AddMember(c)
	h.broadcastClientUpdateLocked(c)
	h.broadcastRoomUpdateLocked(room)

	h.log.Info().Str("client_id", c.ID).Str("room", room.Name).Msg("client joined room")
	return nil
}

// CreateRoom creates the named room with c as owner, failing when the
// name is taken.
func (h *Hub) CreateRoom(c *Client, req proto.CreateRoomRequest) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Room != "" {
		return protocolError(ErrCodeAlreadyInRoom, "client already in room %q", c.Room)
	}
	if _, exists := h.rooms[req.Room]; exists {
		return protocolError(ErrCodeRoomExists, "room %q already exists", req.Room)
	}

	h.createRoomLocked(c, req.Room, map[string]any{
		proto.RoomAttrKeepOpen:           req.KeepOpen,
		proto.RoomAttrIgnoreVersionCheck: req.IgnoreVersionCheck,
		proto.RoomAttrSharedFolders:      req.SharedFolders,
	})
	return nil
}

// createRoomLocked registers a room in AwaitingContent with c as
// owner+member and asks c for the bootstrap snapshot.
func (h *Hub) createRoomLocked(c *Client, name string, attrs map[string]any) {
	room := NewRoom(name, c.ID)
	for k, v := range attrs {
		room.Attributes[k] = v
	}
	h.rooms[name] = room
	room.AddMember(c)
	c.Room = name

	c.Send(proto.NewCommand(proto.MessageContent, nil))
	h.broadcastClientUpdateLocked(c)
	h.broadcastRoomUpdateLocked(room)

	metrics.OpenRooms.Set(float64(len(h.rooms)))
	h.log.Info().Str("client_id", c.ID).Str("room", name).Msg("room created, awaiting content")
}

// ContentReply completes the content handshake: the room owner's
// CONTENT answer makes the room joinable and becomes the head of the
// replay log.
func (h *Hub) ContentReply(c *Client, cmd *proto.Command) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Room == "" {
		return protocolError(ErrCodeNotInRoom, "client not in a room")
	}
	room := h.rooms[c.Room]
	if room == nil {
		return protocolError(ErrCodeRoomNotFound, "room %q not found", c.Room)
	}
	if room.State != RoomAwaitingContent || room.OwnerID != c.ID {
		return protocolError(ErrCodeBadRequest, "unexpected content for room %q", room.Name)
	}

	room.State = RoomJoinable
	room.Retain(cmd, false)
	c.Send(proto.NewCommand(proto.MessageJoinRoom, proto.EncodeString(room.Name)))
	h.broadcastRoomUpdateLocked(room)

	h.log.Info().Str("room", room.Name).Msg("room joinable")
	return nil
}

// Relay fans a member's command out to every other member of its room,
// retaining it for late joiners.
func (h *Hub) Relay(c *Client, cmd *proto.Command) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Room == "" {
		return protocolError(ErrCodeNotInRoom, "client not in a room")
	}
	room := h.rooms[c.Room]
	if room == nil {
		return protocolError(ErrCodeRoomNotFound, "room %q not found", c.Room)
	}

	room.Retain(cmd, true)
	delivered := room.Broadcast(c.ID, cmd)

	metrics.CommandsRelayed.Inc()
	metrics.CommandsDelivered.Add(float64(delivered))
	return nil
}

// LeaveRoom removes c from the named room. Remaining members are not
// notified beyond listings reflecting the change.
func (h *Hub) LeaveRoom(c *Client, name string) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Room != name {
		return protocolError(ErrCodeNotInRoom, "client not in room %q", name)
	}
	room := h.rooms[name]
	if room == nil {
		return protocolError(ErrCodeRoomNotFound, "room %q not found", name)
	}

	room.RemoveMember(c.ID)
	c.Room = ""
	c.Send(proto.NewCommand(proto.MessageLeaveRoom, proto.EncodeString(name)))
	h.broadcastClientUpdateLocked(c)
	h.broadcastRoomUpdateLocked(room)

	h.log.Info().Str("client_id", c.ID).Str("room", name).Msg("client left room")
	return nil
}

// DeleteRoom removes an empty room. Deleting a room that still has
// members fails; members are never silently evicted.
func (h *Hub) DeleteRoom(c *Client, name string) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[name]
	if room == nil {
		return protocolError(ErrCodeRoomNotFound, "room %q not found", name)
	}
	if !room.Empty() {
		return protocolError(ErrCodeRoomNotEmpty, "room %q not empty", name)
	}

	delete(h.rooms, name)
	c.Send(proto.NewCommand(proto.MessageDeleteRoom, proto.EncodeString(name)))
	h.broadcastToAllLocked(proto.MessageRoomAttributesUpdate, map[string]any{name: nil})

	metrics.OpenRooms.Set(float64(len(h.rooms)))
	h.log.Info().Str("room", name).Msg("room deleted")
	return nil
}

// SetClientAttributes merges attrs into the client's attribute map and
// rebroadcasts the updated view.
func (h *Hub) SetClientAttributes(c *Client, attrs map[string]any) {
	h.mu.Lock()
	for k, v := range attrs {
		c.Attributes[k] = v
	}
	h.broadcastClientUpdateLocked(c)
	h.mu.Unlock()
}

// SetRoomAttributes merges custom attributes into a room and
// rebroadcasts the updated view.
func (h *Hub) SetRoomAttributes(req proto.SetRoomAttributesRequest) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[req.Room]
	if room == nil {
		return protocolError(ErrCodeRoomNotFound, "room %q not found", req.Room)
	}
	for k, v := range req.Attributes {
		room.Attributes[k] = v
	}
	h.broadcastRoomUpdateLocked(room)
	return nil
}

// ListRooms returns a point-in-time snapshot of every room's attributes
// keyed by room name.
func (h *Hub) ListRooms() map[string]map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := make(map[string]map[string]any, len(h.rooms))
	for name, room := range h.rooms {
		snap[name] = room.snapshot()
	}
	return snap
}

// ListClients returns a point-in-time snapshot of every client's
// attributes keyed by client id.
func (h *Hub) ListClients() map[string]map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := make(map[string]map[string]any, len(h.clients))
	for id, client := range h.clients {
		snap[id] = client.snapshot()
	}
	return snap
}

func (h *Hub) broadcastClientUpdateLocked(c *Client) {
	h.broadcastToAllLocked(proto.MessageClientAttributesUpdate, map[string]any{c.ID: c.snapshot()})
}

func (h *Hub) broadcastRoomUpdateLocked(room *Room) {
	h.broadcastToAllLocked(proto.MessageRoomAttributesUpdate, map[string]any{room.Name: room.snapshot()})
}

// broadcastToAllLocked notifies every connected client, members or not,
// of a registry change.
func (h *Hub) broadcastToAllLocked(t proto.MessageType, update map[string]any) {
	payload, err := proto.EncodeJSONPayload(update)
	if err != nil {
		h.log.Error().Err(err).Msg("encode registry update")
		return
	}
	cmd := proto.NewCommand(t, payload)
	for _, client := range h.clients {
		client.Send(cmd)
	}
}
