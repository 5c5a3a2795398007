// Package pig implements the dice game Pig: roll to build a turn total, bank
// to keep it, roll a 1 and the turn total is lost. First player to reach the
// target score wins.
package pig

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/James-Trimble/PlayPalace11/internal/game"
)

const (
	ActionRoll = "roll"
	ActionBank = "bank"
)

// Bots bank once the turn total reaches this, unless banking less would
// already win.
const botBankThreshold = 20

// Module holds the full Pig game state. All fields are exported for the
// deterministic JSON snapshot; the RNG is a serialized xorshift64 state so a
// restored game continues the same dice sequence.
type Module struct {
	Seats     []game.Seat `json:"seats"`
	Scores    []int       `json:"scores"`
	Turn      int         `json:"turn"`
	TurnTotal int         `json:"turnTotal"`
	Target    int         `json:"target"`
	Over      bool        `json:"over"`
	Winner    string      `json:"winner,omitempty"`
	RNG       uint64      `json:"rng"`
}

// Descriptor returns the registry entry for Pig.
func Descriptor() game.Descriptor {
	return game.Descriptor{
		Type:       "pig",
		NameKey:    "game-pig",
		Category:   "category-dice-games",
		MinPlayers: 2,
		MaxPlayers: 4,
		Options: []game.OptionSpec{
			{Key: "target", Kind: game.OptionInt, Label: "pig-option-target", Default: 100, Min: 10, Max: 1000},
		},
		New: func() game.Module { return &Module{} },
	}
}

// Seed overrides the RNG state; zero keeps the value set by Init. Tests use
// this for reproducible dice.
func (m *Module) Seed(seed uint64) {
	if seed == 0 {
		seed = 1
	}
	m.RNG = seed
}

func (m *Module) nextRand() uint64 {
	x := m.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	m.RNG = x
	return x
}

func (m *Module) rollDie() int {
	return int(m.nextRand()%6) + 1
}

func (m *Module) Init(seats []game.Seat, opts game.Options) error {
	if len(seats) < 2 {
		return fmt.Errorf("pig: need at least 2 seats, got %d", len(seats))
	}
	m.Seats = append([]game.Seat(nil), seats...)
	m.Scores = make([]int, len(seats))
	m.Turn = 0
	m.TurnTotal = 0
	m.Target = opts["target"]
	if m.Target <= 0 {
		m.Target = 100
	}
	m.Over = false
	m.Winner = ""
	if m.RNG == 0 {
		// Mix seat identities into the seed so two fresh tables differ.
		seed := uint64(len(seats))
		for _, s := range seats {
			for _, b := range []byte(s.Identity) {
				seed = seed*131 + uint64(b)
			}
		}
		m.Seed(seed)
	}
	return nil
}

func (m *Module) WhoseTurn() string {
	if m.Over || len(m.Seats) == 0 {
		return ""
	}
	return m.Seats[m.Turn].Identity
}

func (m *Module) LegalActions(actor string) []game.Action {
	if m.Over || m.WhoseTurn() != actor {
		return nil
	}
	acts := []game.Action{{Key: ActionRoll}}
	if m.TurnTotal > 0 {
		acts = append(acts, game.Action{Key: ActionBank})
	}
	return acts
}

func (m *Module) Apply(actor string, act game.Action) (game.Result, error) {
	if m.Over {
		return game.Result{}, fmt.Errorf("pig: game is over")
	}
	if m.WhoseTurn() != actor {
		return game.Result{}, fmt.Errorf("pig: not %s's turn", actor)
	}

	switch act.Key {
	case ActionRoll:
		return m.applyRoll(actor), nil
	case ActionBank:
		if m.TurnTotal == 0 {
			return game.Result{}, fmt.Errorf("pig: nothing to bank")
		}
		return m.applyBank(actor), nil
	default:
		return game.Result{}, fmt.Errorf("pig: unknown action %q", act.Key)
	}
}

func (m *Module) applyRoll(actor string) game.Result {
	die := m.rollDie()
	if die == 1 {
		m.TurnTotal = 0
		m.advanceTurn()
		return game.Result{Events: []game.Event{{
			Key:    "pig-busted",
			Params: map[string]string{"player": actor},
		}}}
	}
	m.TurnTotal += die
	return game.Result{Events: []game.Event{{
		Key: "pig-rolled",
		Params: map[string]string{
			"player": actor,
			"die":    strconv.Itoa(die),
			"total":  strconv.Itoa(m.TurnTotal),
		},
	}}}
}

func (m *Module) applyBank(actor string) game.Result {
	m.Scores[m.Turn] += m.TurnTotal
	banked := m.TurnTotal
	score := m.Scores[m.Turn]
	m.TurnTotal = 0

	events := []game.Event{{
		Key: "pig-banked",
		Params: map[string]string{
			"player": actor,
			"banked": strconv.Itoa(banked),
			"score":  strconv.Itoa(score),
		},
	}}

	if score >= m.Target {
		m.Over = true
		m.Winner = actor
		events = append(events, game.Event{
			Key:    "pig-won",
			Params: map[string]string{"player": actor, "score": strconv.Itoa(score)},
		})
		return game.Result{Events: events, GameOver: true}
	}

	m.advanceTurn()
	return game.Result{Events: events}
}

func (m *Module) advanceTurn() {
	m.Turn = (m.Turn + 1) % len(m.Seats)
}

func (m *Module) ChooseBotAction(actor string) (game.Action, bool) {
	if m.Over || m.WhoseTurn() != actor {
		return game.Action{}, false
	}
	if m.TurnTotal > 0 {
		if m.Scores[m.Turn]+m.TurnTotal >= m.Target || m.TurnTotal >= botBankThreshold {
			return game.Action{Key: ActionBank}, true
		}
	}
	return game.Action{Key: ActionRoll}, true
}

func (m *Module) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Module) Deserialize(data []byte) error {
	var restored Module
	if err := json.Unmarshal(data, &restored); err != nil {
		return fmt.Errorf("pig: corrupt snapshot: %w", err)
	}
	if len(restored.Seats) != len(restored.Scores) {
		return fmt.Errorf("pig: snapshot seat/score mismatch")
	}
	*m = restored
	return nil
}
