// Package server accepts websocket sessions, runs the authorization
// choreography, and dispatches packets to the table registry.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/James-Trimble/PlayPalace11/internal/auth"
	"github.com/James-Trimble/PlayPalace11/internal/connection"
	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/i18n"
	"github.com/James-Trimble/PlayPalace11/internal/motd"
	"github.com/James-Trimble/PlayPalace11/internal/presence"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
	"github.com/James-Trimble/PlayPalace11/internal/registry"
	"github.com/James-Trimble/PlayPalace11/internal/table"
)

// Server is the orchestration front door.
type Server struct {
	cfg      Config
	log      *logrus.Logger
	auth     *auth.Manager
	games    *game.Registry
	registry *registry.Registry
	presence *presence.Tracker
	motd     motd.Provider
	render   i18n.Renderer

	mu    sync.Mutex
	conns map[string]*connection.Conn
}

// New wires a Server from its collaborators.
func New(cfg Config, authMgr *auth.Manager, games *game.Registry, reg *registry.Registry, motdProv motd.Provider, render i18n.Renderer, log *logrus.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		auth:     authMgr,
		games:    games,
		registry: reg,
		presence: presence.NewTracker(),
		motd:     motdProv,
		render:   render,
		conns:    make(map[string]*connection.Conn),
	}
}

// Handler builds the HTTP mux: the websocket endpoint and the operator
// status document.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.presence.Snapshot(ServerVersion))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.WithError(err).Info("websocket accept failed")
		return
	}
	conn := connection.New(ws, s.log)
	s.serveConn(r.Context(), conn)
}

// serveConn runs one connection from authorization to teardown.
func (s *Server) serveConn(ctx context.Context, conn *connection.Conn) {
	identity, ok := s.authorize(ctx, conn)
	if !ok {
		return
	}

	s.attach(identity, conn)
	defer s.detach(identity, conn)

	for {
		pkt, err := conn.Read(ctx)
		if err != nil {
			if !conn.Expecting() {
				s.log.WithField("identity", identity).Info("connection lost")
				s.registry.HandleDisconnect(identity)
			}
			return
		}
		s.presence.Touch(identity)
		if done := s.dispatch(ctx, conn, identity, pkt); done {
			return
		}
	}
}

// attach registers the live connection for identity, replacing any previous
// session for the same identity.
func (s *Server) attach(identity string, conn *connection.Conn) {
	s.mu.Lock()
	prev := s.conns[identity]
	s.conns[identity] = conn
	s.mu.Unlock()

	if prev != nil && prev != conn {
		prev.ExpectDisconnect()
		prev.Close()
	}
	s.presence.Login(identity)
}

func (s *Server) detach(identity string, conn *connection.Conn) {
	s.mu.Lock()
	if s.conns[identity] == conn {
		delete(s.conns, identity)
	} else {
		// A newer session replaced this one; its presence stands.
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.mu.Unlock()
	s.presence.Logout(identity)
	conn.Close()
}

// sinkFor resolves an identity to its live connection, for restore.
func (s *Server) sinkFor(identity string) table.EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[identity]
	if !ok || c.Closed() {
		return nil
	}
	return c
}

// sendError reports a graceful rejection to the requester, with the key
// rendered for their locale.
func (s *Server) sendError(conn *connection.Conn, err *protocol.Error) {
	pkt := protocol.ErrorPacket(err)
	pkt.Text = s.render.Render(err.Key, conn.Locale(), err.Params)
	conn.Deliver(pkt)
}
