package proto

// Command is the unit of relayed communication: a sender-local sequence
// id, a message type tag, and an opaque payload. Immutable once built.
//
// The id is assigned by the sending connection's monotonic counter and
// is not globally unique; receivers use it only to restore send order
// when commands are consumed in batches.
type Command struct {
	ID      uint64
	Type    MessageType
	Payload []byte
}

// NewCommand builds a command with no id assigned yet.
func NewCommand(t MessageType, payload []byte) *Command {
	return &Command{Type: t, Payload: payload}
}

// WithID returns a copy of cmd carrying the given sequence id.
func (c *Command) WithID(id uint64) *Command {
	return &Command{ID: id, Type: c.Type, Payload: c.Payload}
}
