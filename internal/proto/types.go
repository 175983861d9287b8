package proto

// MessageType tags a Command on the wire.
type MessageType uint16

// Control message types interpreted by the relay.
const (
	// MessageJoinRoom asks the relay to add the sender to a room,
	// creating it when the name is unknown.
	MessageJoinRoom MessageType = iota + 1
	// MessageLeaveRoom removes the sender from a room.
	MessageLeaveRoom
	// MessageCreateRoom creates a room, failing when the name is taken.
	MessageCreateRoom
	// MessageDeleteRoom removes an empty room from the registry.
	MessageDeleteRoom
	// MessageListRooms requests a JSON snapshot of all rooms.
	MessageListRooms
	// MessageListClients requests a JSON snapshot of all clients.
	MessageListClients
	// MessageContent carries the bootstrap snapshot of a room. Sent by
	// the relay (empty) to request it, answered by the room owner with
	// an opaque payload.
	MessageContent
	// MessageClientID tells a client the id the relay assigned to it.
	MessageClientID
	// MessageSetClientAttributes updates the sender's attribute map.
	MessageSetClientAttributes
	// MessageSetRoomAttributes updates a room's custom attribute map.
	MessageSetRoomAttributes
	// MessageClientAttributesUpdate notifies clients of changed client
	// attributes.
	MessageClientAttributesUpdate
	// MessageRoomAttributesUpdate notifies clients of changed room
	// attributes. A room mapped to null has been deleted.
	MessageRoomAttributesUpdate
	// MessageSendError reports a protocol error back to the sender.
	MessageSendError
)

// MessageCommandRangeStart is the first type value treated as an opaque
// domain payload. Everything at or above it is relayed untouched.
const MessageCommandRangeStart MessageType = 128

// IsDomain reports whether t belongs to the opaque payload range.
func (t MessageType) IsDomain() bool { return t >= MessageCommandRangeStart }

func (t MessageType) String() string {
	switch t {
	case MessageJoinRoom:
		return "JOIN_ROOM"
	case MessageLeaveRoom:
		return "LEAVE_ROOM"
	case MessageCreateRoom:
		return "CREATE_ROOM"
	case MessageDeleteRoom:
		return "DELETE_ROOM"
	case MessageListRooms:
		return "LIST_ROOMS"
	case MessageListClients:
		return "LIST_CLIENTS"
	case MessageContent:
		return "CONTENT"
	case MessageClientID:
		return "CLIENT_ID"
	case MessageSetClientAttributes:
		return "SET_CLIENT_ATTRIBUTES"
	case MessageSetRoomAttributes:
		return "SET_ROOM_ATTRIBUTES"
	case MessageClientAttributesUpdate:
		return "CLIENT_ATTRIBUTES_UPDATE"
	case MessageRoomAttributesUpdate:
		return "ROOM_ATTRIBUTES_UPDATE"
	case MessageSendError:
		return "SEND_ERROR"
	}
	if t.IsDomain() {
		return "DOMAIN"
	}
	return "UNKNOWN"
}

// Client attribute keys used in LIST_CLIENTS snapshots and attribute
// update broadcasts.
const (
	ClientAttrID       = "id"
	ClientAttrAddress  = "address"
	ClientAttrUserName = "user_name"
	ClientAttrRoom     = "room"
)

// Room attribute keys used in LIST_ROOMS snapshots and attribute update
// broadcasts. The version attributes are advisory metadata compared
// client-side; the relay never enforces them.
const (
	RoomAttrJoinable           = "joinable"
	RoomAttrKeepOpen           = "keep_open"
	RoomAttrMemberCount        = "member_count"
	RoomAttrCommandCount       = "command_count"
	RoomAttrIgnoreVersionCheck = "ignore_version_check"
	RoomAttrHostVersion        = "host_version"
	RoomAttrProtocolVariant    = "protocol_variant"
	RoomAttrSharedFolders      = "shared_folders"
)

// DefaultPort is the relay's well-known TCP port.
const DefaultPort = 12800
