package server

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/James-Trimble/PlayPalace11/internal/connection"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// authorizeTimeout bounds how long a fresh socket may sit before presenting
// credentials.
const authorizeTimeout = 10 * time.Second

// authorize runs the login choreography: version gate, then credentials or
// session token, then the post-login traffic (MOTD, game list, auto-rejoin).
// Returns the identity and whether the connection survives.
func (s *Server) authorize(ctx context.Context, conn *connection.Conn) (string, bool) {
	readCtx, cancel := context.WithTimeout(ctx, authorizeTimeout)
	pkt, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		conn.Close()
		return "", false
	}
	if pkt.Type != protocol.PacketAuthorize {
		conn.Reject(s.render.Render("error-authorize-first", conn.Locale(), nil), "", "")
		return "", false
	}
	conn.SetLocale(pkt.Locale)

	// Version gate before anything else. A rejected client gets exactly one
	// disconnect packet and the grace hold, never a MOTD or game list.
	if pkt.Version == nil || pkt.Version.Less(s.cfg.MinClientVersion) {
		min := s.cfg.MinClientVersion.String()
		reason := s.render.Render("error-version-rejected", conn.Locale(), map[string]string{
			"min": min,
			"url": s.cfg.DownloadURL,
		})
		conn.Reject(reason, s.cfg.DownloadURL, min)
		return "", false
	}

	identity, err := s.resolveIdentity(ctx, pkt)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			conn.Reject(s.render.Render(perr.Key, conn.Locale(), perr.Params), "", "")
		} else {
			s.log.WithError(err).Error("authorization failed")
			conn.Reject(s.render.Render("error-internal", conn.Locale(), nil), "", "")
		}
		return "", false
	}
	conn.SetIdentity(identity)

	token, err := s.auth.IssueToken(identity)
	if err != nil {
		s.log.WithError(err).Error("token issue failed")
		conn.Reject(s.render.Render("error-internal", conn.Locale(), nil), "", "")
		return "", false
	}

	conn.Deliver(protocol.Packet{
		Type:     protocol.PacketAuthorized,
		Username: identity,
		Token:    token,
		Version:  &serverVersion,
	})

	s.sendMotd(conn, pkt.DismissedMotds)
	s.sendGameList(conn)
	s.rejoin(identity, conn)

	s.log.WithField("identity", identity).Info("authorized")
	return identity, true
}

// resolveIdentity accepts either a session token or credentials.
func (s *Server) resolveIdentity(ctx context.Context, pkt protocol.Packet) (string, error) {
	if pkt.Token != "" {
		return s.auth.VerifyToken(pkt.Token)
	}
	return s.auth.Authenticate(ctx, pkt.Username, pkt.Password, pkt.Locale)
}

// sendMotd forwards the active MOTD unless the client already dismissed this
// exact id. The dismissed set is client-owned; the server only consults it.
func (s *Server) sendMotd(conn *connection.Conn, dismissed []string) {
	msg, ok := s.motd.Active()
	if !ok {
		return
	}
	for _, id := range dismissed {
		if id == msg.ID {
			return
		}
	}
	conn.Deliver(protocol.Packet{
		Type: protocol.PacketMotd,
		Motd: &protocol.Motd{
			ID:          msg.ID,
			Title:       msg.Title,
			Body:        msg.Body,
			Dismissable: msg.Dismissable,
		},
	})
}

// sendGameList delivers the registered games grouped by category so the
// client renders its browser sections in a stable order.
func (s *Server) sendGameList(conn *connection.Conn) {
	byCategory := s.games.Categories()
	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var games []protocol.GameInfo
	for _, cat := range cats {
		for _, d := range byCategory[cat] {
			games = append(games, protocol.GameInfo{
				Type:       d.Type,
				NameKey:    d.NameKey,
				Category:   d.Category,
				MinPlayers: d.MinPlayers,
				MaxPlayers: d.MaxPlayers,
			})
		}
	}
	conn.Deliver(protocol.Packet{Type: protocol.PacketGameList, Games: games})
}

// rejoin reattaches identity to a table it still sits at: a replaced
// session's surviving seat, or a seat the scheduler held through an
// unexpected disconnect.
func (s *Server) rejoin(identity string, conn *connection.Conn) {
	t, ok := s.registry.Find(identity)
	if !ok {
		return
	}
	t.Reattach(identity, conn)
}
