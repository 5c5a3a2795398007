// Package table owns one live game instance: its roster, host, lifecycle and
// the driver feeding actions into the game module. Every mutation goes
// through the table's single mutex; broadcasts are handed to member sinks and
// must never block inside the critical section.
package table

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/i18n"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// Role classifies a roster entry.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
	RoleBot       Role = "bot"
)

// Lifecycle is the table state machine.
type Lifecycle string

const (
	Waiting    Lifecycle = "waiting"
	InProgress Lifecycle = "in_progress"
	Finished   Lifecycle = "finished"
)

// EventSink is the delivery side of a member's connection. Deliver must not
// block; a sink that cannot keep up drops the member instead of stalling the
// table.
type EventSink interface {
	Deliver(pkt protocol.Packet)
	Locale() string
}

// Recorder receives one record per applied game action. Implementations run
// their own I/O; a nil Recorder disables history.
type Recorder interface {
	Record(tableID string, index int, actor, key string, params map[string]string)
}

// Member is one roster entry. Bots have a nil sink. wasHuman marks a seat a
// disconnected player left behind: the scheduler drives it, but the player
// may reclaim it by reconnecting.
type Member struct {
	Identity string
	Role     Role
	Sink     EventSink
	joinSeq  int
	wasHuman bool
}

// Names handed to bots, first unused wins. Reused after a bot is removed.
var botNames = []string{
	"Alfred", "Beatrice", "Conrad", "Dorothy", "Edmund",
	"Felicity", "Gilbert", "Harriet", "Ignatius", "Josephine",
}

// Table is one active game instance. All exported methods take the table
// mutex; unexported helpers assume it is held.
type Table struct {
	ID       string
	GameType string

	mu       sync.Mutex
	desc     game.Descriptor
	options  game.Options
	host     string
	state    Lifecycle
	members  []*Member
	joinSeq  int
	module   game.Module
	actIndex int

	render    i18n.Renderer
	historian Recorder
	log       *logrus.Entry
}

// New creates a Waiting table with the creator as sole player and host.
func New(desc game.Descriptor, opts game.Options, host string, sink EventSink, render i18n.Renderer, historian Recorder, log *logrus.Logger) *Table {
	id := uuid.NewString()
	t := &Table{
		ID:        id,
		GameType:  desc.Type,
		desc:      desc,
		options:   opts,
		host:      host,
		state:     Waiting,
		render:    render,
		historian: historian,
		log:       log.WithFields(logrus.Fields{"table": id, "game": desc.Type}),
	}
	t.addMember(host, RolePlayer, sink)
	t.broadcast(protocol.EventTableCreated, map[string]string{"host": host, "game": desc.Type})
	return t
}

func (t *Table) addMember(identity string, role Role, sink EventSink) *Member {
	t.joinSeq++
	m := &Member{Identity: identity, Role: role, Sink: sink, joinSeq: t.joinSeq}
	t.members = append(t.members, m)
	return m
}

func (t *Table) find(identity string) *Member {
	for _, m := range t.members {
		if m.Identity == identity {
			return m
		}
	}
	return nil
}

func (t *Table) playerCount() int {
	n := 0
	for _, m := range t.members {
		if m.Role == RolePlayer {
			n++
		}
	}
	return n
}

func (t *Table) seatCount() int {
	n := 0
	for _, m := range t.members {
		if m.Role == RolePlayer || m.Role == RoleBot {
			n++
		}
	}
	return n
}

// Join adds a member. Players are bounded by the game's max seats and only
// admitted while Waiting; spectators are unbounded and admitted any time the
// table is alive.
func (t *Table) Join(identity string, sink EventSink, asSpectator bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.find(identity) != nil {
		return protocol.E(protocol.CodeAlreadySeated, "error-already-seated")
	}
	role := RolePlayer
	if asSpectator {
		role = RoleSpectator
	} else {
		if t.state != Waiting {
			return protocol.E(protocol.CodeTableNotJoinable, "error-table-not-joinable")
		}
		if t.seatCount() >= t.desc.MaxPlayers {
			return protocol.E(protocol.CodeTableFull, "error-table-full")
		}
	}
	t.addMember(identity, role, sink)
	t.log.WithFields(logrus.Fields{"identity": identity, "role": role}).Info("member joined")
	t.broadcast(protocol.EventTableJoined, map[string]string{"player": identity, "role": string(role)})
	return nil
}

// Leave removes a member and reports whether the table was destroyed. The
// host role migrates to the earliest-joined remaining player; a table with
// zero human players is destroyed even when spectators remain. A mid-game
// leaver forfeits the seat to a bot for good.
func (t *Table) Leave(identity string) (destroyed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	destroyed, _ = t.removeMember(identity, false)
	return destroyed
}

// HandleDisconnect handles an unflagged socket loss. Unlike Leave, a mid-game
// disconnect only lends the seat to the scheduler: held reports that the seat
// stays bound to the identity so a reconnect can reclaim it.
func (t *Table) HandleDisconnect(identity string) (destroyed, held bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.WithField("identity", identity).Info("member connection lost")
	return t.removeMember(identity, true)
}

func (t *Table) removeMember(identity string, holdSeat bool) (destroyed, held bool) {
	m := t.find(identity)
	if m == nil || m.Role == RoleBot {
		return false, false
	}
	wasPlayer := m.Role == RolePlayer
	t.deleteEntry(identity)
	t.broadcast(protocol.EventTableLeft, map[string]string{"player": identity})

	if t.playerCount() == 0 {
		t.closeLocked()
		return true, false
	}

	if wasPlayer {
		if t.host == identity {
			t.migrateHost()
		}
		if t.state == InProgress && t.module != nil {
			// The seat keeps playing as a bot so the game can continue;
			// the module's seat list is fixed at start.
			seat := t.addMember(identity, RoleBot, nil)
			seat.wasHuman = holdSeat
			if t.module.WhoseTurn() == identity {
				t.runBots()
			}
			return false, holdSeat
		}
	}
	return false, false
}

func (t *Table) deleteEntry(identity string) {
	for i, m := range t.members {
		if m.Identity == identity {
			t.members = append(t.members[:i], t.members[i+1:]...)
			return
		}
	}
}

// migrateHost hands the host role to the earliest-joined remaining player.
// Callers guarantee at least one player remains.
func (t *Table) migrateHost() {
	var next *Member
	for _, m := range t.members {
		if m.Role != RolePlayer {
			continue
		}
		if next == nil || m.joinSeq < next.joinSeq {
			next = m
		}
	}
	if next == nil {
		t.log.Error("host migration with zero players")
		return
	}
	t.host = next.Identity
	t.log.WithField("host", next.Identity).Info("host migrated")
	t.broadcast(protocol.EventNewHost, map[string]string{"host": next.Identity})
}

func (t *Table) closeLocked() {
	t.broadcast(protocol.EventTableClosed, nil)
	t.state = Finished
	t.module = nil
	t.members = nil
	t.log.Info("table closed")
}

// Reattach swaps in a fresh sink for a member who reconnected, announcing
// the rejoin to the rest of the table. A seat the scheduler has been holding
// since the disconnect goes back to the returning player.
func (t *Table) Reattach(identity string, sink EventSink) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.find(identity)
	if m == nil {
		return false
	}
	if m.Role == RoleBot {
		if !m.wasHuman {
			return false
		}
		m.Role = RolePlayer
		m.wasHuman = false
	}
	m.Sink = sink
	t.broadcast(protocol.EventTableRejoined, map[string]string{"player": identity})
	if t.state == InProgress && t.module != nil {
		if turn := t.module.WhoseTurn(); turn != "" {
			params := map[string]string{"player": turn}
			sink.Deliver(protocol.Packet{
				Type:    protocol.PacketTableEvent,
				TableID: t.ID,
				Key:     protocol.EventPlayerTurn,
				Params:  params,
				Text:    t.render.Render(protocol.EventPlayerTurn, sink.Locale(), params),
			})
		}
	}
	return true
}

// AddBot seats a bot from the name pool. Host-only, Waiting-only.
func (t *Table) AddBot(requester string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if requester != t.host {
		return "", protocol.E(protocol.CodeNotHost, "error-not-host")
	}
	if t.state != Waiting {
		return "", protocol.E(protocol.CodeTableNotJoinable, "error-table-not-joinable")
	}
	if t.seatCount() >= t.desc.MaxPlayers {
		return "", protocol.E(protocol.CodeTableFull, "error-table-full")
	}
	name := ""
	for _, candidate := range botNames {
		if t.find(candidate) == nil {
			name = candidate
			break
		}
	}
	if name == "" {
		return "", protocol.E(protocol.CodeTableFull, "error-table-full")
	}
	t.addMember(name, RoleBot, nil)
	t.broadcast(protocol.EventBotAdded, map[string]string{"bot": name})
	return name, nil
}

// RemoveBot unseats the named bot. Host-only, Waiting-only.
func (t *Table) RemoveBot(requester, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if requester != t.host {
		return protocol.E(protocol.CodeNotHost, "error-not-host")
	}
	if t.state != Waiting {
		return protocol.E(protocol.CodeTableNotJoinable, "error-table-not-joinable")
	}
	m := t.find(name)
	if m == nil || m.Role != RoleBot {
		return protocol.E(protocol.CodeInvalidAction, "error-no-such-bot", "bot", name)
	}
	t.deleteEntry(name)
	t.broadcast(protocol.EventBotRemoved, map[string]string{"bot": name})
	return nil
}

// Host returns the current host identity.
func (t *Table) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.host
}

// State returns the current lifecycle state.
func (t *Table) State() Lifecycle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// HasMember reports whether identity sits at this table in any role.
func (t *Table) HasMember(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.find(identity) != nil
}

// Info captures a registry listing entry.
func (t *Table) Info() protocol.TableInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return protocol.TableInfo{
		ID:       t.ID,
		GameType: t.GameType,
		Host:     t.host,
		Players:  t.seatCount(),
		MaxSeats: t.desc.MaxPlayers,
		State:    string(t.state),
	}
}

// Identities lists human member identities: players, spectators, and the
// owners of bot-held seats awaiting a reconnect.
func (t *Table) Identities() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.members {
		if m.Role != RoleBot || m.wasHuman {
			out = append(out, m.Identity)
		}
	}
	return out
}

// Chat relays a table-convo message to every member.
func (t *Table) Chat(sender, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.members {
		if m.Sink == nil {
			continue
		}
		m.Sink.Deliver(protocol.Packet{
			Type:    protocol.PacketChat,
			TableID: t.ID,
			Convo:   "table",
			Sender:  sender,
			Message: message,
		})
	}
}

// broadcast renders a table event per member locale and hands it to each
// sink. Assumes lock is held.
func (t *Table) broadcast(key string, params map[string]string) {
	for _, m := range t.members {
		if m.Sink == nil {
			continue
		}
		m.Sink.Deliver(protocol.Packet{
			Type:    protocol.PacketTableEvent,
			TableID: t.ID,
			Key:     key,
			Params:  params,
			Text:    t.render.Render(key, m.Sink.Locale(), params),
		})
	}
}

// deliverGameEvent routes one module event, honoring its target. Assumes
// lock is held.
func (t *Table) deliverGameEvent(ev game.Event) {
	for _, m := range t.members {
		if m.Sink == nil {
			continue
		}
		if ev.Target != "" && ev.Target != m.Identity {
			continue
		}
		m.Sink.Deliver(protocol.Packet{
			Type:    protocol.PacketGameEvent,
			TableID: t.ID,
			Key:     ev.Key,
			Params:  ev.Params,
			Text:    t.render.Render(ev.Key, m.Sink.Locale(), ev.Params),
		})
	}
}
