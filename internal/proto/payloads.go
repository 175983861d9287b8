package proto

import "bytes"

// JoinRoomRequest is the payload of JOIN_ROOM. The version fields are
// stored as room attributes when the join creates the room.
type JoinRoomRequest struct {
	Room               string
	HostVersion        string
	ProtocolVariant    string
	IgnoreVersionCheck bool
}

// EncodeJoinRoom renders a JOIN_ROOM payload.
func EncodeJoinRoom(req JoinRoomRequest) []byte {
	var buf bytes.Buffer
	_ = WriteString(&buf, req.Room)
	_ = WriteString(&buf, req.HostVersion)
	_ = WriteString(&buf, req.ProtocolVariant)
	_ = WriteBool(&buf, req.IgnoreVersionCheck)
	return buf.Bytes()
}

// DecodeJoinRoom parses a JOIN_ROOM payload.
func DecodeJoinRoom(payload []byte) (JoinRoomRequest, error) {
	var req JoinRoomRequest
	r := bytes.NewReader(payload)

	var err error
	if req.Room, err = ReadString(r); err != nil {
		return req, err
	}
	if req.HostVersion, err = ReadString(r); err != nil {
		return req, err
	}
	if req.ProtocolVariant, err = ReadString(r); err != nil {
		return req, err
	}
	if req.IgnoreVersionCheck, err = ReadBool(r); err != nil {
		return req, err
	}
	return req, nil
}

// CreateRoomRequest is the payload of CREATE_ROOM.
type CreateRoomRequest struct {
	Room               string
	KeepOpen           bool
	SharedFolders      []string
	IgnoreVersionCheck bool
}

// EncodeCreateRoom renders a CREATE_ROOM payload.
func EncodeCreateRoom(req CreateRoomRequest) []byte {
	var buf bytes.Buffer
	_ = WriteString(&buf, req.Room)
	_ = WriteBool(&buf, req.KeepOpen)
	_ = WriteJSON(&buf, req.SharedFolders)
	_ = WriteBool(&buf, req.IgnoreVersionCheck)
	return buf.Bytes()
}

// DecodeCreateRoom parses a CREATE_ROOM payload.
func DecodeCreateRoom(payload []byte) (CreateRoomRequest, error) {
	var req CreateRoomRequest
	r := bytes.NewReader(payload)

	var err error
	if req.Room, err = ReadString(r); err != nil {
		return req, err
	}
	if req.KeepOpen, err = ReadBool(r); err != nil {
		return req, err
	}
	if err = ReadJSON(r, &req.SharedFolders); err != nil {
		return req, err
	}
	if req.IgnoreVersionCheck, err = ReadBool(r); err != nil {
		return req, err
	}
	return req, nil
}

// SetRoomAttributesRequest is the payload of SET_ROOM_ATTRIBUTES.
type SetRoomAttributesRequest struct {
	Room       string
	Attributes map[string]any
}

// EncodeSetRoomAttributes renders a SET_ROOM_ATTRIBUTES payload.
func EncodeSetRoomAttributes(req SetRoomAttributesRequest) []byte {
	var buf bytes.Buffer
	_ = WriteString(&buf, req.Room)
	_ = WriteJSON(&buf, req.Attributes)
	return buf.Bytes()
}

// DecodeSetRoomAttributes parses a SET_ROOM_ATTRIBUTES payload.
func DecodeSetRoomAttributes(payload []byte) (SetRoomAttributesRequest, error) {
	var req SetRoomAttributesRequest
	r := bytes.NewReader(payload)

	var err error
	if req.Room, err = ReadString(r); err != nil {
		return req, err
	}
	if err = ReadJSON(r, &req.Attributes); err != nil {
		return req, err
	}
	return req, nil
}

// EncodeString renders a single-string payload (LEAVE_ROOM, DELETE_ROOM,
// CLIENT_ID, SEND_ERROR).
func EncodeString(s string) []byte {
	var buf bytes.Buffer
	_ = WriteString(&buf, s)
	return buf.Bytes()
}

// DecodeString parses a single-string payload.
func DecodeString(payload []byte) (string, error) {
	return ReadString(bytes.NewReader(payload))
}

// EncodeJSONPayload renders v as a JSON payload (attribute maps,
// LIST_ROOMS and LIST_CLIENTS snapshots).
func EncodeJSONPayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJSONPayload parses a JSON payload into v.
func DecodeJSONPayload(payload []byte, v any) error {
	return ReadJSON(bytes.NewReader(payload), v)
}
