package table

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/i18n"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// Cap on consecutive bot moves inside one critical section. A module whose
// bots loop past this has a stuck rule set; the table logs it loudly rather
// than spinning forever.
const maxBotMoves = 10000

// Start instantiates the game module and moves the table to InProgress.
// Host-only; the roster must satisfy the game's minimum player count.
func (t *Table) Start(requester string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if requester != t.host {
		return protocol.E(protocol.CodeNotHost, "error-not-host")
	}
	if t.state != Waiting {
		return protocol.E(protocol.CodeTableNotJoinable, "error-table-not-joinable")
	}
	if t.seatCount() < t.desc.MinPlayers {
		return protocol.E(protocol.CodeNotEnoughPlayers, "error-not-enough-players",
			"needed", fmt.Sprintf("%d", t.desc.MinPlayers))
	}

	seats := t.seats()
	module := t.desc.New()
	if err := module.Init(seats, t.options); err != nil {
		t.log.WithError(err).Error("module init failed")
		return protocol.E(protocol.CodeInvalidAction, "error-start-failed")
	}
	t.module = module
	t.state = InProgress
	t.broadcast(protocol.EventGameStarting, map[string]string{"game": t.GameType})
	t.announceTurn()
	t.runBots()
	return nil
}

// seats lists the seated roster (players and bots) in join order. Assumes
// lock is held.
func (t *Table) seats() []game.Seat {
	var seats []game.Seat
	for _, m := range t.members {
		switch m.Role {
		case RolePlayer:
			seats = append(seats, game.Seat{Identity: m.Identity})
		case RoleBot:
			seats = append(seats, game.Seat{Identity: m.Identity, Bot: true})
		}
	}
	return seats
}

// Apply feeds one action from actor through the module. Turn ownership is
// checked here so modules can assume a valid actor; bot turns triggered by
// the accepted action run before the lock is released.
func (t *Table) Apply(actor string, act game.Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != InProgress || t.module == nil {
		return protocol.E(protocol.CodeTableNotJoinable, "error-no-game-running")
	}
	if t.module.WhoseTurn() != actor {
		return protocol.E(protocol.CodeNotYourTurn, "error-not-your-turn")
	}
	if err := t.applyLocked(actor, act); err != nil {
		return err
	}
	t.runBots()
	return nil
}

// applyLocked runs one validated-actor action: module apply, history record,
// event fan-out, end-of-game and turn announcement. Assumes lock is held.
func (t *Table) applyLocked(actor string, act game.Action) error {
	res, err := t.module.Apply(actor, act)
	if err != nil {
		return protocol.E(protocol.CodeInvalidAction, "error-invalid-action", "detail", err.Error())
	}

	t.actIndex++
	if t.historian != nil {
		t.historian.Record(t.ID, t.actIndex, actor, act.Key, act.Params)
	}
	for _, ev := range res.Events {
		t.deliverGameEvent(ev)
	}

	if res.GameOver {
		t.state = Finished
		t.log.Info("game finished")
		t.broadcast(protocol.EventGameFinished, map[string]string{"game": t.GameType})
		return nil
	}
	t.announceTurn()
	return nil
}

// runBots drives bot seats until a human holds the turn or the game ends.
// Bot choices go through the same applyLocked path as human actions so they
// cannot bypass validation. Assumes lock is held; never re-entered.
func (t *Table) runBots() {
	if t.module == nil {
		return
	}
	for moves := 0; t.state == InProgress; moves++ {
		if moves >= maxBotMoves {
			t.log.WithField("moves", moves).Error("bot loop exceeded move cap")
			return
		}
		turn := t.module.WhoseTurn()
		if turn == "" {
			return
		}
		m := t.find(turn)
		if m == nil || m.Role != RoleBot {
			return
		}
		act, ok := t.module.ChooseBotAction(turn)
		if !ok {
			t.log.WithField("bot", turn).Error("bot has no action on its turn")
			return
		}
		if err := t.applyLocked(turn, act); err != nil {
			t.log.WithError(err).WithField("bot", turn).Error("bot action rejected")
			return
		}
	}
}

// announceTurn broadcasts whose turn it is. Assumes lock is held.
func (t *Table) announceTurn() {
	turn := t.module.WhoseTurn()
	if turn == "" {
		return
	}
	t.broadcast(protocol.EventPlayerTurn, map[string]string{"player": turn})
}

// LegalActions lists what actor may do right now, empty off-turn.
func (t *Table) LegalActions(actor string) []game.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != InProgress || t.module == nil {
		return nil
	}
	return t.module.LegalActions(actor)
}

// WhoseTurn names the current actor, "" when no game is running.
func (t *Table) WhoseTurn() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.module == nil {
		return ""
	}
	return t.module.WhoseTurn()
}

// SeatRecord is one persisted roster entry.
type SeatRecord struct {
	Identity string `json:"identity"`
	Bot      bool   `json:"bot,omitempty"`
}

// Snapshot is the full persisted form of a table.
type Snapshot struct {
	GameType string         `json:"gameType"`
	Host     string         `json:"host"`
	State    Lifecycle      `json:"state"`
	Seats    []SeatRecord   `json:"seats"`
	Options  map[string]int `json:"options"`
	Module   []byte         `json:"module"`
}

var errNotSnapshotable = protocol.E(protocol.CodeTableNotJoinable, "error-table-not-saveable")

// SnapshotState serializes the table for the save store. Host-only; allowed
// while Waiting or InProgress. The module serialization must be byte-stable
// so a save/restore cycle can be verified snapshot for snapshot.
func (t *Table) SnapshotState(requester string) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(requester)
}

func (t *Table) snapshotLocked(requester string) (Snapshot, error) {
	if requester != t.host {
		return Snapshot{}, protocol.E(protocol.CodeNotHost, "error-not-host")
	}
	if t.state != Waiting && t.state != InProgress {
		return Snapshot{}, errNotSnapshotable
	}

	snap := Snapshot{
		GameType: t.GameType,
		Host:     t.host,
		State:    t.state,
		Options:  t.options,
	}
	for _, m := range t.members {
		switch {
		case m.Role == RolePlayer:
			snap.Seats = append(snap.Seats, SeatRecord{Identity: m.Identity})
		case m.Role == RoleBot:
			// A seat held for a disconnected player persists as human: the
			// restore readmits the player rather than a permanent bot.
			snap.Seats = append(snap.Seats, SeatRecord{Identity: m.Identity, Bot: !m.wasHuman})
		}
	}
	if t.module != nil {
		data, err := t.module.Serialize()
		if err != nil {
			t.log.WithError(err).Error("module serialize failed")
			return Snapshot{}, protocol.E(protocol.CodeInvalidAction, "error-save-failed")
		}
		snap.Module = data
	}
	return snap, nil
}

// SnapshotAndClose serializes the table and closes it inside one critical
// section, so no action can land between the snapshot and the shutdown
// broadcast. The caller persists the returned snapshot afterwards.
func (t *Table) SnapshotAndClose(requester, name string) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, err := t.snapshotLocked(requester)
	if err != nil {
		return Snapshot{}, err
	}
	t.broadcast(protocol.EventTableSaved, map[string]string{"name": name})
	t.closeLocked()
	return snap, nil
}

// Restore materializes a fresh table from a snapshot. Sinks for the named
// human players are supplied by the caller, which has already verified every
// one of them is online and unseated.
func Restore(desc game.Descriptor, snap Snapshot, sinks map[string]EventSink, render i18n.Renderer, historian Recorder, log *logrus.Logger) (*Table, error) {
	var module game.Module
	if len(snap.Module) > 0 {
		module = desc.New()
		if err := module.Deserialize(snap.Module); err != nil {
			return nil, fmt.Errorf("restore %s: %w", snap.GameType, err)
		}
	}

	id := uuid.NewString()
	t := &Table{
		ID:        id,
		GameType:  snap.GameType,
		desc:      desc,
		options:   snap.Options,
		host:      snap.Host,
		state:     snap.State,
		module:    module,
		render:    render,
		historian: historian,
		log:       log.WithFields(logrus.Fields{"table": id, "game": snap.GameType}),
	}
	for _, seat := range snap.Seats {
		role := RolePlayer
		var sink EventSink
		if seat.Bot {
			role = RoleBot
		} else {
			sink = sinks[seat.Identity]
		}
		t.addMember(seat.Identity, role, sink)
	}
	t.broadcast(protocol.EventTableRestored, map[string]string{"host": t.host, "game": t.GameType})
	if t.state == InProgress {
		t.announceTurn()
		t.runBots()
	}
	return t, nil
}
