// Package client is the consumer-side library for talking to a relay
// server: connect, join rooms, send opaque commands, fetch whatever the
// relay pushed back.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/scenesync/relay/internal/conn"
	"github.com/scenesync/relay/internal/proto"
)

// ErrClientDisconnected is the failure mode of every operation once the
// connection to the relay is gone, whether the relay died or the
// network did. FetchCommands never reports teardown as an empty batch;
// callers rely on this to detect it deterministically.
var ErrClientDisconnected = errors.New("client disconnected")

// Client talks to one relay over a single TCP connection.
type Client struct {
	addr string

	mu sync.Mutex
	c  *conn.Conn
	id string
}

// New builds a client for the relay at host:port without connecting.
func New(host string, port int) *Client {
	return &Client{addr: fmt.Sprintf("%s:%d", host, port)}
}

// Connect dials the relay. A client whose connection died must be
// reconnected explicitly; nothing reconnects behind the caller's back.
func (cl *Client) Connect() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.c != nil && cl.c.IsConnected() {
		return errors.New("already connected")
	}
	c, err := conn.Dial(cl.addr)
	if err != nil {
		return err
	}
	cl.c = c
	cl.id = ""
	return nil
}

// Disconnect closes the connection. Safe to call when not connected.
func (cl *Client) Disconnect() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.c != nil {
		_ = cl.c.Close()
	}
}

// IsConnected reports whether the relay is still reachable.
func (cl *Client) IsConnected() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.c != nil && cl.c.IsConnected()
}

// ClientID returns the id the relay assigned, empty until the CLIENT_ID
// command has been fetched.
func (cl *Client) ClientID() string {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.id
}

// SendCommand enqueues cmd for the relay.
func (cl *Client) SendCommand(cmd *proto.Command) error {
	c := cl.connection()
	if c == nil {
		return ErrClientDisconnected
	}
	if err := c.Send(cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
	}
	return nil
}

// FetchCommands returns the commands buffered since the last call,
// without blocking. CLIENT_ID commands are consumed internally; see
// ClientID. Once the connection is dead and drained it fails with
// ErrClientDisconnected.
func (cl *Client) FetchCommands() ([]*proto.Command, error) {
	c := cl.connection()
	if c == nil {
		return nil, ErrClientDisconnected
	}
	cmds, err := c.FetchPending()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClientDisconnected, err)
	}

	out := cmds[:0]
	for _, cmd := range cmds {
		if cmd.Type == proto.MessageClientID {
			if id, derr := proto.DecodeString(cmd.Payload); derr == nil {
				cl.setID(id)
			}
			continue
		}
		out = append(out, cmd)
	}
	return out, nil
}

// JoinRoom asks the relay to add this client to a room, creating the
// room when the name is unknown.
func (cl *Client) JoinRoom(room, hostVersion, protocolVariant string, ignoreVersionCheck bool) error {
	payload := proto.EncodeJoinRoom(proto.JoinRoomRequest{
		Room:               room,
		HostVersion:        hostVersion,
		ProtocolVariant:    protocolVariant,
		IgnoreVersionCheck: ignoreVersionCheck,
	})
	return cl.SendCommand(proto.NewCommand(proto.MessageJoinRoom, payload))
}

// CreateRoom creates a room owned by this client, failing server-side
// when the name is taken.
func (cl *Client) CreateRoom(room string, keepOpen bool, sharedFolders []string, ignoreVersionCheck bool) error {
	payload := proto.EncodeCreateRoom(proto.CreateRoomRequest{
		Room:               room,
		KeepOpen:           keepOpen,
		SharedFolders:      sharedFolders,
		IgnoreVersionCheck: ignoreVersionCheck,
	})
	return cl.SendCommand(proto.NewCommand(proto.MessageCreateRoom, payload))
}

// LeaveRoom removes this client from a room.
func (cl *Client) LeaveRoom(room string) error {
	return cl.SendCommand(proto.NewCommand(proto.MessageLeaveRoom, proto.EncodeString(room)))
}

// DeleteRoom asks the relay to remove an empty room.
func (cl *Client) DeleteRoom(room string) error {
	return cl.SendCommand(proto.NewCommand(proto.MessageDeleteRoom, proto.EncodeString(room)))
}

// SendContent answers the relay's CONTENT request with the bootstrap
// payload for this client's room. The relay never interprets it.
func (cl *Client) SendContent(payload []byte) error {
	return cl.SendCommand(proto.NewCommand(proto.MessageContent, payload))
}

// SetClientAttributes merges attrs into this client's server-side
// attribute map.
func (cl *Client) SetClientAttributes(attrs map[string]any) error {
	payload, err := proto.EncodeJSONPayload(attrs)
	if err != nil {
		return err
	}
	return cl.SendCommand(proto.NewCommand(proto.MessageSetClientAttributes, payload))
}

// SetRoomAttributes merges attrs into a room's attribute map.
func (cl *Client) SetRoomAttributes(room string, attrs map[string]any) error {
	payload := proto.EncodeSetRoomAttributes(proto.SetRoomAttributesRequest{
		Room:       room,
		Attributes: attrs,
	})
	return cl.SendCommand(proto.NewCommand(proto.MessageSetRoomAttributes, payload))
}

// SendListRooms requests a room snapshot; the reply arrives via
// FetchCommands as a LIST_ROOMS command with a JSON payload.
func (cl *Client) SendListRooms() error {
	return cl.SendCommand(proto.NewCommand(proto.MessageListRooms, nil))
}

// SendListClients requests a client snapshot; the reply arrives via
// FetchCommands as a LIST_CLIENTS command with a JSON payload.
func (cl *Client) SendListClients() error {
	return cl.SendCommand(proto.NewCommand(proto.MessageListClients, nil))
}

func (cl *Client) connection() *conn.Conn {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.c
}

func (cl *Client) setID(id string) {
	cl.mu.Lock()
	cl.id = id
	cl.mu.Unlock()
}
