package core

import "github.com/scenesync/relay/internal/proto"

// Sender delivers a command to one peer without blocking. Implemented
// by conn.Conn; tests substitute an in-memory recorder.
type Sender interface {
	Send(cmd *proto.Command) error
}

// Client is the server-side handle for one connected peer. It is owned
// exclusively by the Hub and never outlives its connection.
type Client struct {
	ID         string
	Addr       string
	Attributes map[string]any
	// Room is the name of the room the client belongs to, empty when
	// it belongs to none.
	Room string

	sender Sender
}

// NewClient constructs a handle for a freshly accepted connection.
func NewClient(id, addr string, sender Sender) *Client {
	return &Client{
		ID:         id,
		Addr:       addr,
		Attributes: make(map[string]any),
		sender:     sender,
	}
}

// Send enqueues cmd on the client's connection. Delivery errors are
// dropped here: a dead peer is observed by its own reader goroutine,
// which unregisters the handle.
func (c *Client) Send(cmd *proto.Command) {
	_ = c.sender.Send(cmd)
}

// snapshot returns the attribute view exposed by LIST_CLIENTS.
func (c *Client) snapshot() map[string]any {
	attrs := make(map[string]any, len(c.Attributes)+3)
	for k, v := range c.Attributes {
		attrs[k] = v
	}
	attrs[proto.ClientAttrID] = c.ID
	attrs[proto.ClientAttrAddress] = c.Addr
	if c.Room != "" {
		attrs[proto.ClientAttrRoom] = c.Room
	} else {
		attrs[proto.ClientAttrRoom] = nil
	}
	return attrs
}
