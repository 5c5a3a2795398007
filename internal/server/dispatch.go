package server

import (
	"context"
	"errors"

	"github.com/James-Trimble/PlayPalace11/internal/connection"
	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// dispatch routes one authorized packet. Returns true when the connection
// should wind down (logout).
func (s *Server) dispatch(ctx context.Context, conn *connection.Conn, identity string, pkt protocol.Packet) bool {
	var err error

	switch pkt.Type {
	case protocol.PacketPing:
		conn.Deliver(protocol.Packet{Type: protocol.PacketPong})

	case protocol.PacketListTables:
		conn.Deliver(protocol.Packet{Type: protocol.PacketTableList, Tables: s.registry.List()})

	case protocol.PacketCreateTable:
		_, err = s.registry.Create(pkt.GameType, identity, pkt.Options, conn)

	case protocol.PacketJoinTable:
		err = s.registry.Join(pkt.TableID, identity, conn, pkt.AsSpectator)

	case protocol.PacketLeaveTable:
		s.registry.Leave(identity)

	case protocol.PacketStartGame:
		err = s.withTable(identity, func(t tableOps) error { return t.Start(identity) })

	case protocol.PacketAddBot:
		err = s.withTable(identity, func(t tableOps) error {
			_, botErr := t.AddBot(identity)
			return botErr
		})

	case protocol.PacketRemoveBot:
		err = s.withTable(identity, func(t tableOps) error { return t.RemoveBot(identity, pkt.BotName) })

	case protocol.PacketGameAction:
		err = s.withTable(identity, func(t tableOps) error {
			return t.Apply(identity, game.Action{Key: pkt.Action, Params: pkt.ActionParams})
		})

	case protocol.PacketSaveTable:
		_, err = s.registry.Save(ctx, identity)

	case protocol.PacketRestoreTable:
		_, err = s.registry.Restore(ctx, identity, pkt.SaveID, s.sinkFor)

	case protocol.PacketListSaves:
		var saves []protocol.SaveInfo
		saves, err = s.registry.ListSaves(ctx, identity)
		if err == nil {
			conn.Deliver(protocol.Packet{Type: protocol.PacketSaveList, Saves: saves})
		}

	case protocol.PacketDeleteSave:
		err = s.registry.DeleteSave(ctx, identity, pkt.SaveID)

	case protocol.PacketChat:
		s.chat(identity, pkt)

	case protocol.PacketLogout:
		conn.ExpectDisconnect()
		s.registry.Leave(identity)
		conn.Close()
		return true

	default:
		s.log.WithFields(map[string]interface{}{
			"identity": identity,
			"type":     pkt.Type,
		}).Warn("unknown packet type")
	}

	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			s.sendError(conn, perr)
		} else {
			s.log.WithError(err).WithField("identity", identity).Error("request failed")
			s.sendError(conn, protocol.E(protocol.CodeInvalidAction, "error-internal"))
		}
	}
	return false
}

// tableOps is the slice of table behavior dispatch needs; it keeps the
// lookup-then-operate pattern in one place.
type tableOps interface {
	Start(requester string) error
	AddBot(requester string) (string, error)
	RemoveBot(requester, name string) error
	Apply(actor string, act game.Action) error
}

func (s *Server) withTable(identity string, op func(tableOps) error) error {
	t, ok := s.registry.Find(identity)
	if !ok {
		return protocol.E(protocol.CodeTableNotFound, "error-not-at-table")
	}
	return op(t)
}

// chat relays a message to the sender's table convo or to every online
// player for the global convo.
func (s *Server) chat(identity string, pkt protocol.Packet) {
	if pkt.Message == "" {
		return
	}
	if pkt.Convo != "global" {
		if t, ok := s.registry.Find(identity); ok {
			t.Chat(identity, pkt.Message)
		}
		return
	}

	out := protocol.Packet{
		Type:    protocol.PacketChat,
		Convo:   "global",
		Sender:  identity,
		Message: pkt.Message,
	}
	s.mu.Lock()
	conns := make([]*connection.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Deliver(out)
	}
}
