package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenesync/relay/internal/log"
	"github.com/scenesync/relay/internal/proto"
)

func newTestClient(h *Hub, id string) (*Client, *recorder) {
	rec := &recorder{}
	c := NewClient(id, "127.0.0.1:1", rec)
	h.Register(c)
	return c, rec
}

func joinReq(room string) proto.JoinRoomRequest {
	return proto.JoinRoomRequest{Room: room, HostVersion: "4.1.0", ProtocolVariant: "generic"}
}

func decodeUpdate(t *testing.T, cmd *proto.Command) map[string]any {
	t.Helper()
	var update map[string]any
	require.NoError(t, proto.DecodeJSONPayload(cmd.Payload, &update))
	return update
}

func TestRegisterAssignsClientID(t *testing.T) {
	h := NewHub(log.Nop())
	_, rec := newTestClient(h, "c1")

	ids := rec.byType(proto.MessageClientID)
	require.Len(t, ids, 1)
	id, err := proto.DecodeString(ids[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
}

func TestJoinUnknownRoomStartsContentHandshake(t *testing.T) {
	h := NewHub(log.Nop())
	c1, rec := newTestClient(h, "c1")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))

	// The creator is asked for the bootstrap snapshot but gets no join
	// confirmation yet.
	assert.Len(t, rec.byType(proto.MessageContent), 1)
	assert.Empty(t, rec.byType(proto.MessageJoinRoom))
	assert.Equal(t, "studio", c1.Room)

	rooms := h.ListRooms()
	require.Contains(t, rooms, "studio")
	assert.Equal(t, false, rooms["studio"][proto.RoomAttrJoinable])
	assert.EqualValues(t, 1, rooms["studio"][proto.RoomAttrMemberCount])
}

func TestJoinRejectedUntilContentAnswered(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")
	c2, rec2 := newTestClient(h, "c2")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))

	perr := h.JoinRoom(c2, joinReq("studio"))
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeRoomNotJoinable, perr.Code)
	assert.Empty(t, c2.Room)

	require.Nil(t, h.ContentReply(c1, proto.NewCommand(proto.MessageContent, []byte("snapshot"))))

	require.Nil(t, h.JoinRoom(c2, joinReq("studio")))
	assert.Equal(t, "studio", c2.Room)

	// Confirmation first, then the replayed snapshot.
	cmds := rec2.all()
	var joinIdx, contentIdx = -1, -1
	for i, cmd := range cmds {
		switch cmd.Type {
		case proto.MessageJoinRoom:
			joinIdx = i
		case proto.MessageContent:
			contentIdx = i
		}
	}
	require.GreaterOrEqual(t, joinIdx, 0)
	require.GreaterOrEqual(t, contentIdx, 0)
	assert.Less(t, joinIdx, contentIdx)
	assert.Equal(t, []byte("snapshot"), cmds[contentIdx].Payload)
}

func TestConcurrentJoinsCreateOneRoom(t *testing.T) {
	h := NewHub(log.Nop())

	const n = 16
	clients := make([]*Client, n)
	recs := make([]*recorder, n)
	for i := range clients {
		clients[i], recs[i] = newTestClient(h, fmt.Sprintf("c%d", i))
	}

	errs := make([]*Error, n)
	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.JoinRoom(clients[i], joinReq("studio"))
		}(i)
	}
	wg.Wait()

	// Exactly one racer creates the room and is asked for content; the
	// rest are turned away until the handshake completes.
	assert.Len(t, h.ListRooms(), 1)

	created, contentAsks := 0, 0
	for i := range clients {
		if errs[i] == nil {
			created++
		} else {
			assert.Equal(t, ErrCodeRoomNotJoinable, errs[i].Code)
		}
		contentAsks += len(recs[i].byType(proto.MessageContent))
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, contentAsks)
}

func TestContentReplyValidation(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")

	perr := h.ContentReply(c1, proto.NewCommand(proto.MessageContent, nil))
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeNotInRoom, perr.Code)

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	require.Nil(t, h.ContentReply(c1, proto.NewCommand(proto.MessageContent, []byte("snapshot"))))

	// A second snapshot for an already joinable room is a protocol error.
	perr = h.ContentReply(c1, proto.NewCommand(proto.MessageContent, []byte("again")))
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeBadRequest, perr.Code)
}

func TestJoinWhileInRoomRejected(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	perr := h.JoinRoom(c1, joinReq("other"))
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeAlreadyInRoom, perr.Code)
}

func TestRelayFanOut(t *testing.T) {
	h := NewHub(log.Nop())
	c1, rec1 := newTestClient(h, "c1")
	c2, rec2 := newTestClient(h, "c2")
	c3, rec3 := newTestClient(h, "c3")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	require.Nil(t, h.ContentReply(c1, proto.NewCommand(proto.MessageContent, nil)))
	require.Nil(t, h.JoinRoom(c2, joinReq("studio")))
	require.Nil(t, h.JoinRoom(c3, joinReq("studio")))

	require.Nil(t, h.Relay(c1, proto.NewCommand(proto.MessageCommandRangeStart, []byte("one"))))
	require.Nil(t, h.Relay(c1, proto.NewCommand(proto.MessageCommandRangeStart, []byte("two"))))

	// Every other member sees both commands in send order; the sender
	// sees neither.
	assert.Empty(t, rec1.byType(proto.MessageCommandRangeStart))
	for _, rec := range []*recorder{rec2, rec3} {
		got := rec.byType(proto.MessageCommandRangeStart)
		require.Len(t, got, 2)
		assert.Equal(t, []byte("one"), got[0].Payload)
		assert.Equal(t, []byte("two"), got[1].Payload)
	}

	assert.EqualValues(t, 2, h.ListRooms()["studio"][proto.RoomAttrCommandCount])
}

func TestRelayRequiresRoom(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")

	perr := h.Relay(c1, proto.NewCommand(proto.MessageCommandRangeStart, nil))
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeNotInRoom, perr.Code)
}

func TestLeaveRoom(t *testing.T) {
	h := NewHub(log.Nop())
	c1, rec1 := newTestClient(h, "c1")

	perr := h.LeaveRoom(c1, "studio")
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeNotInRoom, perr.Code)

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	require.Nil(t, h.ContentReply(c1, proto.NewCommand(proto.MessageContent, nil)))
	require.Nil(t, h.LeaveRoom(c1, "studio"))

	assert.Empty(t, c1.Room)
	leaves := rec1.byType(proto.MessageLeaveRoom)
	require.Len(t, leaves, 1)
	name, err := proto.DecodeString(leaves[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "studio", name)

	// The room outlives its last member.
	rooms := h.ListRooms()
	require.Contains(t, rooms, "studio")
	assert.EqualValues(t, 0, rooms["studio"][proto.RoomAttrMemberCount])
}

func TestDeleteRoomRequiresEmpty(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")
	c2, rec2 := newTestClient(h, "c2")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	require.Nil(t, h.ContentReply(c1, proto.NewCommand(proto.MessageContent, nil)))

	perr := h.DeleteRoom(c2, "studio")
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeRoomNotEmpty, perr.Code)

	require.Nil(t, h.LeaveRoom(c1, "studio"))
	require.Nil(t, h.DeleteRoom(c2, "studio"))
	assert.Empty(t, h.ListRooms())
	assert.Len(t, rec2.byType(proto.MessageDeleteRoom), 1)

	perr = h.DeleteRoom(c2, "studio")
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeRoomNotFound, perr.Code)
}

func TestCreateRoomExplicit(t *testing.T) {
	h := NewHub(log.Nop())
	c1, rec1 := newTestClient(h, "c1")
	c2, _ := newTestClient(h, "c2")

	require.Nil(t, h.CreateRoom(c1, proto.CreateRoomRequest{
		Room:          "studio",
		KeepOpen:      true,
		SharedFolders: []string{"/assets"},
	}))
	assert.Len(t, rec1.byType(proto.MessageContent), 1)

	perr := h.CreateRoom(c2, proto.CreateRoomRequest{Room: "studio"})
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeRoomExists, perr.Code)

	rooms := h.ListRooms()
	assert.Equal(t, true, rooms["studio"][proto.RoomAttrKeepOpen])
	assert.Equal(t, []string{"/assets"}, rooms["studio"][proto.RoomAttrSharedFolders])
}

func TestSetClientAttributes(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")
	_, rec2 := newTestClient(h, "c2")

	h.SetClientAttributes(c1, map[string]any{proto.ClientAttrUserName: "alice"})

	clients := h.ListClients()
	assert.Equal(t, "alice", clients["c1"][proto.ClientAttrUserName])
	assert.Equal(t, "c1", clients["c1"][proto.ClientAttrID])
	assert.Nil(t, clients["c1"][proto.ClientAttrRoom])

	// Every connected client hears about the change, members or not.
	updates := rec2.byType(proto.MessageClientAttributesUpdate)
	require.NotEmpty(t, updates)
	update := decodeUpdate(t, updates[len(updates)-1])
	view, ok := update["c1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", view[proto.ClientAttrUserName])
}

func TestSetRoomAttributes(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")

	perr := h.SetRoomAttributes(proto.SetRoomAttributesRequest{Room: "studio"})
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeRoomNotFound, perr.Code)

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	require.Nil(t, h.SetRoomAttributes(proto.SetRoomAttributesRequest{
		Room:       "studio",
		Attributes: map[string]any{"scene": "main.blend"},
	}))
	assert.Equal(t, "main.blend", h.ListRooms()["studio"]["scene"])
}

func TestUnregisterImpliesLeave(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")
	_, rec2 := newTestClient(h, "c2")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	h.Unregister(c1)

	rooms := h.ListRooms()
	require.Contains(t, rooms, "studio")
	assert.EqualValues(t, 0, rooms["studio"][proto.RoomAttrMemberCount])
	assert.NotContains(t, h.ListClients(), "c1")

	updates := rec2.byType(proto.MessageClientAttributesUpdate)
	require.NotEmpty(t, updates)
	update := decodeUpdate(t, updates[len(updates)-1])
	val, present := update["c1"]
	require.True(t, present)
	assert.Nil(t, val)
}

func TestListClientsReflectsRoomMembership(t *testing.T) {
	h := NewHub(log.Nop())
	c1, _ := newTestClient(h, "c1")

	require.Nil(t, h.JoinRoom(c1, joinReq("studio")))
	assert.Equal(t, "studio", h.ListClients()["c1"][proto.ClientAttrRoom])
}
