// Package server owns the TCP accept loop and bridges each accepted
// socket to the room registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scenesync/relay/internal/config"
	"github.com/scenesync/relay/internal/conn"
	"github.com/scenesync/relay/internal/core"
	"github.com/scenesync/relay/internal/metrics"
	"github.com/scenesync/relay/internal/proto"
)

// Server accepts connections and runs one handler goroutine per client.
type Server struct {
	cfg config.Config
	log *zerolog.Logger
	hub *core.Hub

	ln net.Listener
	wg sync.WaitGroup
}

// New builds a server around an existing registry.
func New(cfg config.Config, hub *core.Hub, logger *zerolog.Logger) *Server {
	return &Server{cfg: cfg, hub: hub, log: logger}
}

// Listen binds the TCP port. Split from Run so callers know the
// listener is live (and, with port 0, which port was picked) before
// anything dials in.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.ListenAddr(), err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run serves accepted connections until ctx is done, then waits for
// per-connection handlers to finish.
func (s *Server) Run(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	s.log.Info().Str("addr", s.ln.Addr().String()).Msg("relay listening")

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go s.handle(ctx, nc)
	}
}

// handle owns one client connection from registration to teardown.
// Socket I/O lives in the connection's own goroutines; this loop only
// decodes intent and calls into the registry.
func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()

	var opts []conn.Option
	if s.cfg.Latency > 0 {
		opts = append(opts, conn.WithSendDelay(s.cfg.Latency))
	}
	c := conn.New(nc, opts...)
	defer c.Close()

	client := core.NewClient(uuid.NewString(), c.RemoteAddr(), c)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	for {
		cmd, err := c.Receive(ctx)
		if err != nil {
			if errors.Is(err, proto.ErrTruncated) || errors.Is(err, proto.ErrFrameTooLarge) {
				metrics.FramingErrors.Inc()
				s.log.Warn().Err(err).Str("client_id", client.ID).Msg("closing connection on framing error")
			} else {
				s.log.Debug().Err(err).Str("client_id", client.ID).Msg("connection finished")
			}
			return
		}
		s.dispatch(client, cmd)
	}
}

// dispatch intercepts the reserved control types and relays everything
// in the opaque command range to the sender's room.
func (s *Server) dispatch(client *core.Client, cmd *proto.Command) {
	var perr *core.Error

	switch cmd.Type {
	case proto.MessageJoinRoom:
		req, err := proto.DecodeJoinRoom(cmd.Payload)
		if err != nil {
			perr = badPayload(cmd, err)
			break
		}
		perr = s.hub.JoinRoom(client, req)

	case proto.MessageCreateRoom:
		req, err := proto.DecodeCreateRoom(cmd.Payload)
		if err != nil {
			perr = badPayload(cmd, err)
			break
		}
		perr = s.hub.CreateRoom(client, req)

	case proto.MessageLeaveRoom:
		name, err := proto.DecodeString(cmd.Payload)
		if err != nil {
			perr = badPayload(cmd, err)
			break
		}
		perr = s.hub.LeaveRoom(client, name)

	case proto.MessageDeleteRoom:
		name, err := proto.DecodeString(cmd.Payload)
		if err != nil {
			perr = badPayload(cmd, err)
			break
		}
		perr = s.hub.DeleteRoom(client, name)

	case proto.MessageContent:
		perr = s.hub.ContentReply(client, cmd)

	case proto.MessageSetClientAttributes:
		var attrs map[string]any
		if err := proto.DecodeJSONPayload(cmd.Payload, &attrs); err != nil {
			perr = badPayload(cmd, err)
			break
		}
		s.hub.SetClientAttributes(client, attrs)

	case proto.MessageSetRoomAttributes:
		req, err := proto.DecodeSetRoomAttributes(cmd.Payload)
		if err != nil {
			perr = badPayload(cmd, err)
			break
		}
		perr = s.hub.SetRoomAttributes(req)

	case proto.MessageListRooms:
		s.sendSnapshot(client, proto.MessageListRooms, s.hub.ListRooms())

	case proto.MessageListClients:
		s.sendSnapshot(client, proto.MessageListClients, s.hub.ListClients())

	default:
		if cmd.Type.IsDomain() {
			perr = s.hub.Relay(client, cmd)
		} else {
			perr = &core.Error{
				Code:    core.ErrCodeBadRequest,
				Message: fmt.Sprintf("unexpected message type %s", cmd.Type),
			}
		}
	}

	if perr != nil {
		s.sendError(client, perr)
	}
}

func (s *Server) sendSnapshot(client *core.Client, t proto.MessageType, snap map[string]map[string]any) {
	payload, err := proto.EncodeJSONPayload(snap)
	if err != nil {
		s.log.Error().Err(err).Msg("encode snapshot")
		return
	}
	client.Send(proto.NewCommand(t, payload))
}

// sendError reports a protocol error to the offending client and keeps
// the connection open.
func (s *Server) sendError(client *core.Client, perr *core.Error) {
	metrics.ProtocolErrors.Inc()
	s.log.Debug().
		Str("client_id", client.ID).
		Str("code", perr.Code).
		Str("msg", perr.Message).
		Msg("protocol error")
	client.Send(proto.NewCommand(proto.MessageSendError, proto.EncodeString(perr.Message)))
}

func badPayload(cmd *proto.Command, err error) *core.Error {
	return &core.Error{
		Code:    core.ErrCodeBadRequest,
		Message: fmt.Sprintf("malformed %s payload: %v", cmd.Type, err),
	}
}
