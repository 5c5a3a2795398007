package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/games/pig"
	"github.com/James-Trimble/PlayPalace11/internal/i18n"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// mockSink captures delivered packets for assertions.
type mockSink struct {
	mu      sync.Mutex
	locale  string
	packets []protocol.Packet
}

func newMockSink(locale string) *mockSink {
	return &mockSink{locale: locale}
}

func (s *mockSink) Deliver(pkt protocol.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, pkt)
}

func (s *mockSink) Locale() string { return s.locale }

func (s *mockSink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.packets))
	for i, p := range s.packets {
		out[i] = p.Key
	}
	return out
}

func (s *mockSink) hasKey(key string) bool {
	for _, k := range s.keys() {
		if k == key {
			return true
		}
	}
	return false
}

func (s *mockSink) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newPigTable(t *testing.T, host string) (*Table, *mockSink) {
	t.Helper()
	sink := newMockSink("en")
	desc := pig.Descriptor()
	opts, err := game.ResolveOptions(desc.Options, nil)
	require.NoError(t, err)
	tbl := New(desc, opts, host, sink, i18n.Default(), nil, testLogger())
	return tbl, sink
}

func codeOf(t *testing.T, err error) protocol.ErrorCode {
	t.Helper()
	var perr *protocol.Error
	require.True(t, errors.As(err, &perr), "expected protocol error, got %v", err)
	return perr.Code
}

func TestCreateSeatsHostAsSolePlayer(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	assert.Equal(t, "hanna", tbl.Host())
	assert.Equal(t, Waiting, tbl.State())
	assert.True(t, sink.hasKey(protocol.EventTableCreated))
	info := tbl.Info()
	assert.Equal(t, 1, info.Players)
	assert.Equal(t, 4, info.MaxSeats)
}

func TestJoinBroadcastsAndBounds(t *testing.T) {
	tbl, hostSink := newPigTable(t, "hanna")

	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	assert.True(t, hostSink.hasKey(protocol.EventTableJoined))

	err := tbl.Join("piet", newMockSink("en"), false)
	assert.Equal(t, protocol.CodeAlreadySeated, codeOf(t, err))

	require.NoError(t, tbl.Join("carol", newMockSink("en"), false))
	require.NoError(t, tbl.Join("dave", newMockSink("en"), false))
	err = tbl.Join("erin", newMockSink("en"), false)
	assert.Equal(t, protocol.CodeTableFull, codeOf(t, err))

	// Spectators are never capacity-bounded.
	require.NoError(t, tbl.Join("erin", newMockSink("en"), true))
}

func TestJoinAsPlayerRejectedInProgress(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))

	err := tbl.Join("carol", newMockSink("en"), false)
	assert.Equal(t, protocol.CodeTableNotJoinable, codeOf(t, err))

	// Spectating a running game is fine.
	require.NoError(t, tbl.Join("carol", newMockSink("en"), true))
}

func TestHostMigratesToEarliestJoined(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	pietSink := newMockSink("en")
	require.NoError(t, tbl.Join("piet", pietSink, false))
	require.NoError(t, tbl.Join("carol", newMockSink("en"), false))

	destroyed := tbl.Leave("hanna")
	assert.False(t, destroyed)
	assert.Equal(t, "piet", tbl.Host())
	assert.True(t, pietSink.hasKey(protocol.EventNewHost))
}

func TestLastPlayerLeavingDestroysTable(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	spec := newMockSink("en")
	require.NoError(t, tbl.Join("watcher", spec, true))

	destroyed := tbl.Leave("hanna")
	assert.True(t, destroyed, "zero players destroys the table even with spectators")
	assert.True(t, spec.hasKey(protocol.EventTableClosed))
}

func TestStartRequiresHostAndMinPlayers(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))

	err := tbl.Start("piet")
	assert.Equal(t, protocol.CodeNotHost, codeOf(t, err))

	tbl2, _ := newPigTable(t, "solo")
	err = tbl2.Start("solo")
	assert.Equal(t, protocol.CodeNotEnoughPlayers, codeOf(t, err))

	require.NoError(t, tbl.Start("hanna"))
	assert.Equal(t, InProgress, tbl.State())
	err = tbl.Start("hanna")
	assert.Equal(t, protocol.CodeTableNotJoinable, codeOf(t, err))
}

func TestStartAnnouncesGameAndTurn(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	sink.clear()

	require.NoError(t, tbl.Start("hanna"))
	assert.True(t, sink.hasKey(protocol.EventGameStarting))
	assert.True(t, sink.hasKey(protocol.EventPlayerTurn))
	assert.Equal(t, "hanna", tbl.WhoseTurn())
}

func TestApplyRejectsOffTurnActor(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))

	err := tbl.Apply("piet", game.Action{Key: pig.ActionRoll})
	assert.Equal(t, protocol.CodeNotYourTurn, codeOf(t, err))
}

func TestApplyRoutesModuleEvents(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	pietSink := newMockSink("en")
	require.NoError(t, tbl.Join("piet", pietSink, false))
	require.NoError(t, tbl.Start("hanna"))
	sink.clear()
	pietSink.clear()

	require.NoError(t, tbl.Apply("hanna", game.Action{Key: pig.ActionRoll}))
	require.NotEmpty(t, sink.packets)
	first := sink.packets[0]
	assert.Equal(t, protocol.PacketGameEvent, first.Type)
	assert.NotEmpty(t, first.Text, "events carry rendered text")
	assert.Equal(t, sink.keys(), pietSink.keys(), "all members see the same event order")
}

func TestApplyRejectsInvalidModuleAction(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))

	err := tbl.Apply("hanna", game.Action{Key: "no-such-action"})
	assert.Equal(t, protocol.CodeInvalidAction, codeOf(t, err))
}

func TestAddRemoveBot(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")

	_, err := tbl.AddBot("nothost")
	assert.Equal(t, protocol.CodeNotHost, codeOf(t, err))

	name, err := tbl.AddBot("hanna")
	require.NoError(t, err)
	assert.NotEmpty(t, name)
	assert.True(t, sink.hasKey(protocol.EventBotAdded))

	second, err := tbl.AddBot("hanna")
	require.NoError(t, err)
	assert.NotEqual(t, name, second, "bot names are unique within the table")

	require.NoError(t, tbl.RemoveBot("hanna", name))
	assert.True(t, sink.hasKey(protocol.EventBotRemoved))

	err = tbl.RemoveBot("hanna", "nobody")
	assert.Equal(t, protocol.CodeInvalidAction, codeOf(t, err))
}

func TestBotsFillSeatsTowardCapacity(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	for i := 0; i < 3; i++ {
		_, err := tbl.AddBot("hanna")
		require.NoError(t, err)
	}
	_, err := tbl.AddBot("hanna")
	assert.Equal(t, protocol.CodeTableFull, codeOf(t, err))
}

func TestBotGamePlaysToCompletion(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	_, err := tbl.AddBot("hanna")
	require.NoError(t, err)

	require.NoError(t, tbl.Start("hanna"))
	// Drive hanna with the module's own bot policy until the game ends; the
	// seated bot moves on its own inside each Apply.
	for i := 0; i < 100000 && tbl.State() == InProgress; i++ {
		if tbl.WhoseTurn() != "hanna" {
			t.Fatal("bot turn leaked out of the critical section")
		}
		acts := tbl.LegalActions("hanna")
		require.NotEmpty(t, acts)
		act := acts[0]
		if len(acts) > 1 {
			act = acts[1] // bank when possible to finish faster
		}
		require.NoError(t, tbl.Apply("hanna", act))
	}
	assert.Equal(t, Finished, tbl.State())
	assert.True(t, sink.hasKey(protocol.EventGameFinished))
}

func TestDisconnectDuringGameHandsSeatToBot(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))
	sink.clear()

	destroyed, held := tbl.HandleDisconnect("piet")
	assert.False(t, destroyed)
	assert.True(t, held, "a disconnect keeps the seat bound to the player")
	assert.True(t, sink.hasKey(protocol.EventTableLeft))
	assert.Equal(t, InProgress, tbl.State())
	// The departed seat stays in the roster, now played by the scheduler.
	assert.True(t, tbl.HasMember("piet"))
	assert.Contains(t, tbl.Identities(), "piet")
}

func TestDisconnectedPlayerReclaimsSeatOnReconnect(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))

	_, held := tbl.HandleDisconnect("piet")
	require.True(t, held)

	// While the player is away the seat persists as theirs, not as a bot.
	snap, err := tbl.SnapshotState("hanna")
	require.NoError(t, err)
	for _, seat := range snap.Seats {
		if seat.Identity == "piet" {
			assert.False(t, seat.Bot, "a held seat is saved as a human seat")
		}
	}

	sink.clear()
	fresh := newMockSink("en")
	assert.True(t, tbl.Reattach("piet", fresh))
	assert.True(t, sink.hasKey(protocol.EventTableRejoined))

	// The seat is a player seat again: once the turn reaches piet the
	// scheduler leaves it alone.
	for i := 0; i < 100000 && tbl.WhoseTurn() == "hanna"; i++ {
		require.NoError(t, tbl.Apply("hanna", game.Action{Key: pig.ActionRoll}))
	}
	assert.Equal(t, "piet", tbl.WhoseTurn())

	// Once back, a reattach for a stranger still fails.
	assert.False(t, tbl.Reattach("nobody", newMockSink("en")))
}

func TestLeaveDuringGameForfeitsSeatForGood(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))

	destroyed := tbl.Leave("piet")
	assert.False(t, destroyed)
	assert.True(t, tbl.HasMember("piet"), "the bot keeps playing the seat")
	assert.NotContains(t, tbl.Identities(), "piet")
	assert.False(t, tbl.Reattach("piet", newMockSink("en")),
		"an explicit leave gives the seat away for good")

	snap, err := tbl.SnapshotState("hanna")
	require.NoError(t, err)
	for _, seat := range snap.Seats {
		if seat.Identity == "piet" {
			assert.True(t, seat.Bot)
		}
	}
}

// stubModule is a minimal two-seat module whose every action passes the
// turn. It makes concurrency assertions deterministic where real dice
// cannot.
type stubModule struct {
	Seats []game.Seat `json:"seats"`
	Turn  int         `json:"turn"`
}

func (s *stubModule) Init(seats []game.Seat, _ game.Options) error {
	s.Seats = seats
	return nil
}

func (s *stubModule) WhoseTurn() string {
	return s.Seats[s.Turn].Identity
}

func (s *stubModule) LegalActions(actor string) []game.Action {
	if s.WhoseTurn() != actor {
		return nil
	}
	return []game.Action{{Key: "pass"}}
}

func (s *stubModule) Apply(actor string, act game.Action) (game.Result, error) {
	if s.WhoseTurn() != actor {
		return game.Result{}, errors.New("stub: not your turn")
	}
	s.Turn = (s.Turn + 1) % len(s.Seats)
	return game.Result{Events: []game.Event{{Key: "stub-passed"}}}, nil
}

func (s *stubModule) ChooseBotAction(actor string) (game.Action, bool) {
	if s.WhoseTurn() != actor {
		return game.Action{}, false
	}
	return game.Action{Key: "pass"}, true
}

func (s *stubModule) Serialize() ([]byte, error)    { return json.Marshal(s) }
func (s *stubModule) Deserialize(data []byte) error { return json.Unmarshal(data, s) }

func stubDescriptor() game.Descriptor {
	return game.Descriptor{
		Type:       "stub",
		NameKey:    "game-stub",
		Category:   "category-test",
		MinPlayers: 2,
		MaxPlayers: 4,
		New:        func() game.Module { return &stubModule{} },
	}
}

func TestConcurrentApplyExactlyOneWins(t *testing.T) {
	desc := stubDescriptor()
	tbl := New(desc, game.Options{}, "hanna", newMockSink("en"), i18n.Default(), nil, testLogger())
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))

	// Two racing submissions for hanna's turn: the serialized section means
	// exactly one is accepted, and the loser sees NotYourTurn because every
	// stub action passes the turn.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tbl.Apply("hanna", game.Action{Key: "pass"})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.Equal(t, protocol.CodeNotYourTurn, codeOf(t, err))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	tbl, _ := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))
	require.NoError(t, tbl.Apply("hanna", game.Action{Key: pig.ActionRoll}))

	_, err := tbl.SnapshotState("piet")
	assert.Equal(t, protocol.CodeNotHost, codeOf(t, err))

	snap, err := tbl.SnapshotState("hanna")
	require.NoError(t, err)
	assert.Equal(t, "pig", snap.GameType)
	assert.Len(t, snap.Seats, 2)
	require.NotEmpty(t, snap.Module)

	sinks := map[string]EventSink{
		"hanna": newMockSink("en"),
		"piet":  newMockSink("en"),
	}
	restored, err := Restore(pig.Descriptor(), snap, sinks, i18n.Default(), nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, InProgress, restored.State())
	assert.Equal(t, "hanna", restored.Host())

	resnapped, err := restored.SnapshotState("hanna")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(snap.Module, resnapped.Module),
		"restored module state must serialize byte-identical")

	hannaSink := sinks["hanna"].(*mockSink)
	assert.True(t, hannaSink.hasKey(protocol.EventTableRestored))
}

func TestRestoreRejectsCorruptModule(t *testing.T) {
	snap := Snapshot{
		GameType: "pig",
		Host:     "hanna",
		State:    InProgress,
		Seats:    []SeatRecord{{Identity: "hanna"}, {Identity: "piet"}},
		Module:   []byte("{"),
	}
	_, err := Restore(pig.Descriptor(), snap, nil, i18n.Default(), nil, testLogger())
	assert.Error(t, err)
}

func TestSaveClosesTableInOneCriticalSection(t *testing.T) {
	desc := stubDescriptor()
	sink := newMockSink("en")
	tbl := New(desc, game.Options{}, "hanna", sink, i18n.Default(), nil, testLogger())
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	require.NoError(t, tbl.Start("hanna"))
	for i := 0; i < 3; i++ {
		require.NoError(t, tbl.Apply(tbl.WhoseTurn(), game.Action{Key: "pass"}))
	}

	snap, err := tbl.SnapshotAndClose("hanna", "stub save")
	require.NoError(t, err)
	assert.Equal(t, Finished, tbl.State())

	// Nothing lands after the snapshot: the saved state matches the last
	// event every member saw before the shutdown broadcast.
	var mod stubModule
	require.NoError(t, json.Unmarshal(snap.Module, &mod))
	passes := 0
	sawSaved := false
	for _, key := range sink.keys() {
		switch key {
		case "stub-passed":
			require.False(t, sawSaved, "no game event after the save broadcast")
			passes++
		case protocol.EventTableSaved:
			sawSaved = true
		}
	}
	assert.True(t, sawSaved)
	assert.Equal(t, passes%2, mod.Turn)

	err = tbl.Apply("hanna", game.Action{Key: "pass"})
	assert.Equal(t, protocol.CodeTableNotJoinable, codeOf(t, err))
}

// indexRecorder captures history indices for ordering assertions.
type indexRecorder struct {
	mu      sync.Mutex
	indices []int
}

func (r *indexRecorder) Record(tableID string, index int, actor, key string, params map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indices = append(r.indices, index)
}

func TestHistoryIndicesStrictlyIncrease(t *testing.T) {
	rec := &indexRecorder{}
	desc := stubDescriptor()
	tbl := New(desc, game.Options{}, "hanna", newMockSink("en"), i18n.Default(), rec, testLogger())
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	_, err := tbl.AddBot("hanna")
	require.NoError(t, err)
	require.NoError(t, tbl.Start("hanna"))

	// Mixed human and scheduler moves all pass through the same recorder.
	for i := 0; i < 5; i++ {
		require.NoError(t, tbl.Apply(tbl.WhoseTurn(), game.Action{Key: "pass"}))
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.indices)
	for i, idx := range rec.indices {
		assert.Equal(t, i+1, idx, "action indices are gapless and strictly increasing")
	}
}

func TestReattachSwapsSink(t *testing.T) {
	tbl, sink := newPigTable(t, "hanna")
	require.NoError(t, tbl.Join("piet", newMockSink("en"), false))
	sink.clear()

	fresh := newMockSink("en")
	assert.True(t, tbl.Reattach("piet", fresh))
	assert.True(t, sink.hasKey(protocol.EventTableRejoined))
	assert.False(t, tbl.Reattach("nobody", fresh))
}
