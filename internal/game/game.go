// Package game defines the contract a rule engine implements to run on a
// table. The table driver is written once against this contract and is
// oblivious to which concrete module is active.
package game

// Seat is one roster entry handed to a module at init. Order is turn order.
type Seat struct {
	Identity string `json:"identity"`
	Bot      bool   `json:"bot,omitempty"`
}

// Action is an opaque (key, parameters) pair submitted by an actor. The core
// validates actors and turns; the module validates everything else.
type Action struct {
	Key    string            `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

// Event is an opaque localized event emitted by a module. Target narrows
// delivery to one identity; empty means every table member. The core routes
// events without interpreting Key or Params.
type Event struct {
	Key    string
	Params map[string]string
	Target string
}

// Result is the outcome of one applied action.
type Result struct {
	Events   []Event
	GameOver bool
}

// Module is the capability contract. A module instance belongs to exactly one
// table, is never shared, and is only ever called under that table's lock.
type Module interface {
	// Init seeds a fresh game for the given roster and validated options.
	Init(seats []Seat, opts Options) error

	// LegalActions lists what actor may do right now. Empty when it is not
	// their turn or the game is over.
	LegalActions(actor string) []Action

	// Apply validates and applies one action, returning emitted events and
	// whether the game just ended. Turn ownership is checked by the driver
	// before Apply is reached.
	Apply(actor string, act Action) (Result, error)

	// WhoseTurn names the identity whose turn it is, or "" when no turn is
	// active (game over or not started).
	WhoseTurn() string

	// ChooseBotAction picks a move for a bot-held seat. The chosen action is
	// fed back through Apply, so bots cannot bypass validation.
	ChooseBotAction(actor string) (Action, bool)

	// Serialize and Deserialize round-trip the full module state. Serialize
	// output must be deterministic for identical state so snapshots can be
	// compared byte for byte.
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// Descriptor describes a registered game type: static metadata plus the
// factory producing fresh Module instances.
type Descriptor struct {
	Type       string
	NameKey    string
	Category   string
	MinPlayers int
	MaxPlayers int
	Options    []OptionSpec
	New        func() Module
}
