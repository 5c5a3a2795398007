// Package uno implements UNO. Match the top card by color or value, wilds
// pick a new color, first player to empty their hand wins.
package uno

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/James-Trimble/PlayPalace11/internal/game"
)

const (
	ActionPlay        = "play"
	ActionDraw        = "draw"
	ActionChooseColor = "choose_color"
)

const (
	ValueSkip         = "skip"
	ValueReverse      = "reverse"
	ValueDrawTwo      = "draw2"
	ValueWild         = "wild"
	ValueWildDrawFour = "wild_draw4"
)

// Colors in deck order. Wild cards carry the color "wild" until resolved.
var Colors = []string{"red", "yellow", "green", "blue"}

var numberValues = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

// Card is one UNO card.
type Card struct {
	Color string `json:"color"`
	Value string `json:"value"`
}

func (c Card) wild() bool {
	return c.Value == ValueWild || c.Value == ValueWildDrawFour
}

func (c Card) name() string {
	if c.wild() {
		return c.Value
	}
	return c.Color + " " + c.Value
}

// Module holds the full UNO game state. All fields are exported for the
// deterministic JSON snapshot; the RNG is a serialized xorshift64 state so a
// restored game continues the same shuffle sequence.
type Module struct {
	Seats   []game.Seat `json:"seats"`
	Hands   [][]Card    `json:"hands"`
	Deck    []Card      `json:"deck"`
	Discard []Card      `json:"discard"`

	Turn      int `json:"turn"`
	Direction int `json:"direction"`

	CurrentColor string `json:"currentColor"`
	CurrentValue string `json:"currentValue"`

	// A played draw2/wild_draw4 parks its penalty here; the target draws
	// when their turn begins.
	PendingDraw     int `json:"pendingDraw,omitempty"`
	PendingDrawSeat int `json:"pendingDrawSeat"`

	// A played wild parks here until its owner chooses a color. The turn
	// does not advance while a choice is pending.
	PendingColorSeat  int    `json:"pendingColorSeat"`
	PendingColorValue string `json:"pendingColorValue,omitempty"`

	Over   bool   `json:"over"`
	Winner string `json:"winner,omitempty"`
	RNG    uint64 `json:"rng"`
}

// Descriptor returns the registry entry for UNO.
func Descriptor() game.Descriptor {
	return game.Descriptor{
		Type:       "uno",
		NameKey:    "game-uno",
		Category:   "category-card-games",
		MinPlayers: 2,
		MaxPlayers: 6,
		Options: []game.OptionSpec{
			{Key: "starting_cards", Kind: game.OptionInt, Label: "uno-option-starting-cards", Default: 7, Min: 1, Max: 20},
		},
		New: func() game.Module { return &Module{} },
	}
}

// Seed overrides the RNG state; zero keeps the value set by Init. Tests use
// this for reproducible shuffles.
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

func (m *Module) shuffle(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := int(m.nextRand() % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func buildDeck() []Card {
	deck := make([]Card, 0, 108)
	for _, color := range Colors {
		deck = append(deck, Card{Color: color, Value: "0"})
		for _, value := range append(numberValues[1:], ValueSkip, ValueReverse, ValueDrawTwo) {
			deck = append(deck, Card{Color: color, Value: value}, Card{Color: color, Value: value})
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, Card{Color: "wild", Value: ValueWild}, Card{Color: "wild", Value: ValueWildDrawFour})
	}
	return deck
}

func (m *Module) Init(seats []game.Seat, opts game.Options) error {
	if len(seats) < 2 {
		return fmt.Errorf("uno: need at least 2 seats, got %d", len(seats))
	}
	starting := opts["starting_cards"]
	if starting <= 0 {
		starting = 7
	}

	m.Seats = append([]game.Seat(nil), seats...)
	m.Turn = 0
	m.Direction = 1
	m.PendingDraw = 0
	m.PendingDrawSeat = -1
	m.PendingColorSeat = -1
	m.PendingColorValue = ""
	m.Over = false
	m.Winner = ""
	if m.RNG == 0 {
		seed := uint64(len(seats))
		for _, s := range seats {
			for _, b := range []byte(s.Identity) {
				seed = seed*131 + uint64(b)
			}
		}
		m.Seed(seed)
	}

	m.Deck = buildDeck()
	m.shuffle(m.Deck)
	m.Discard = nil

	m.Hands = make([][]Card, len(seats))
	for i := range m.Hands {
		m.Hands[i] = make([]Card, 0, starting)
		m.drawInto(i, starting)
	}

	m.flipStartCard()
	if m.PendingDrawSeat == m.Turn {
		m.resolvePendingDraw(nil)
	}
	return nil
}

// flipStartCard turns the first discard. A wild_draw4 goes back under the
// deck; any other card's effect applies to the opening turn.
func (m *Module) flipStartCard() {
	for len(m.Deck) > 0 {
		card := m.Deck[len(m.Deck)-1]
		m.Deck = m.Deck[:len(m.Deck)-1]
		if card.Value == ValueWildDrawFour {
			m.Deck = append([]Card{card}, m.Deck...)
			continue
		}
		m.Discard = append(m.Discard, card)
		m.CurrentValue = card.Value
		if card.wild() {
			m.CurrentColor = Colors[m.nextRand()%uint64(len(Colors))]
		} else {
			m.CurrentColor = card.Color
		}
		switch card.Value {
		case ValueSkip:
			m.Turn = m.nextSeat()
		case ValueReverse:
			m.Direction = -1
		case ValueDrawTwo:
			m.PendingDraw = 2
			m.PendingDrawSeat = m.Turn
		}
		return
	}
}

func (m *Module) nextSeat() int {
	n := len(m.Seats)
	return ((m.Turn+m.Direction)%n + n) % n
}

func (m *Module) drawInto(seat, count int) int {
	drawn := 0
	for i := 0; i < count; i++ {
		if len(m.Deck) == 0 {
			m.refillDeck()
		}
		if len(m.Deck) == 0 {
			break
		}
		card := m.Deck[len(m.Deck)-1]
		m.Deck = m.Deck[:len(m.Deck)-1]
		m.Hands[seat] = append(m.Hands[seat], card)
		drawn++
	}
	return drawn
}

// refillDeck reshuffles the discard pile under the top card.
func (m *Module) refillDeck() {
	if len(m.Discard) <= 1 {
		return
	}
	top := m.Discard[len(m.Discard)-1]
	m.Deck = append(m.Deck, m.Discard[:len(m.Discard)-1]...)
	m.Discard = []Card{top}
	m.shuffle(m.Deck)
}

func (m *Module) WhoseTurn() string {
	if m.Over || len(m.Seats) == 0 {
		return ""
	}
	return m.Seats[m.Turn].Identity
}

func (m *Module) canPlay(card Card) bool {
	if m.PendingColorSeat >= 0 {
		return false
	}
	if card.wild() {
		return true
	}
	if card.Color == m.CurrentColor {
		return true
	}
	if m.CurrentValue != ValueWild && m.CurrentValue != ValueWildDrawFour && card.Value == m.CurrentValue {
		return true
	}
	return false
}

func (m *Module) LegalActions(actor string) []game.Action {
	if m.Over || m.WhoseTurn() != actor {
		return nil
	}
	if m.PendingColorSeat == m.Turn {
		acts := make([]game.Action, 0, len(Colors))
		for _, color := range Colors {
			acts = append(acts, game.Action{Key: ActionChooseColor, Params: map[string]string{"color": color}})
		}
		return acts
	}
	var acts []game.Action
	for i, card := range m.Hands[m.Turn] {
		if m.canPlay(card) {
			acts = append(acts, game.Action{Key: ActionPlay, Params: map[string]string{"index": strconv.Itoa(i)}})
		}
	}
	acts = append(acts, game.Action{Key: ActionDraw})
	return acts
}

func (m *Module) Apply(actor string, act game.Action) (game.Result, error) {
	if m.Over {
		return game.Result{}, fmt.Errorf("uno: game is over")
	}
	if m.WhoseTurn() != actor {
		return game.Result{}, fmt.Errorf("uno: not %s's turn", actor)
	}

	switch act.Key {
	case ActionPlay:
		return m.applyPlay(actor, act)
	case ActionDraw:
		return m.applyDraw(actor)
	case ActionChooseColor:
		return m.applyChooseColor(actor, act)
	default:
		return game.Result{}, fmt.Errorf("uno: unknown action %q", act.Key)
	}
}

func (m *Module) applyPlay(actor string, act game.Action) (game.Result, error) {
	if m.PendingColorSeat >= 0 {
		return game.Result{}, fmt.Errorf("uno: color choice pending")
	}
	index, err := strconv.Atoi(act.Params["index"])
	if err != nil || index < 0 || index >= len(m.Hands[m.Turn]) {
		return game.Result{}, fmt.Errorf("uno: bad card index %q", act.Params["index"])
	}
	card := m.Hands[m.Turn][index]
	if !m.canPlay(card) {
		return game.Result{}, fmt.Errorf("uno: %s does not match %s %s", card.name(), m.CurrentColor, m.CurrentValue)
	}
	m.Hands[m.Turn] = append(m.Hands[m.Turn][:index], m.Hands[m.Turn][index+1:]...)

	var events []game.Event
	skips := m.placeCard(actor, card, &events)
	return m.finishResult(actor, skips, events), nil
}

func (m *Module) applyDraw(actor string) (game.Result, error) {
	if m.PendingColorSeat >= 0 {
		return game.Result{}, fmt.Errorf("uno: color choice pending")
	}
	events := []game.Event{{Key: "uno-drew-card", Params: map[string]string{"player": actor}}}
	if m.drawInto(m.Turn, 1) == 1 {
		drawn := m.Hands[m.Turn][len(m.Hands[m.Turn])-1]
		if m.canPlay(drawn) {
			m.Hands[m.Turn] = m.Hands[m.Turn][:len(m.Hands[m.Turn])-1]
			skips := m.placeCard(actor, drawn, &events)
			return m.finishResult(actor, skips, events), nil
		}
	}
	m.endTurn(&events, 0)
	return game.Result{Events: events}, nil
}

func (m *Module) applyChooseColor(actor string, act game.Action) (game.Result, error) {
	if m.PendingColorSeat != m.Turn {
		return game.Result{}, fmt.Errorf("uno: no color choice pending")
	}
	color := act.Params["color"]
	valid := false
	for _, c := range Colors {
		if c == color {
			valid = true
		}
	}
	if !valid {
		return game.Result{}, fmt.Errorf("uno: unknown color %q", color)
	}

	m.CurrentColor = color
	m.CurrentValue = m.PendingColorValue
	if m.CurrentValue == "" {
		m.CurrentValue = ValueWild
	}
	pendingValue := m.PendingColorValue
	m.PendingColorSeat = -1
	m.PendingColorValue = ""

	events := []game.Event{{Key: "uno-color-chosen", Params: map[string]string{"player": actor, "color": color}}}
	if pendingValue == ValueWildDrawFour {
		m.PendingDraw = 4
		m.PendingDrawSeat = m.nextSeat()
	}

	if len(m.Hands[m.Turn]) == 0 {
		return m.declareWinner(actor, events), nil
	}
	m.endTurn(&events, 0)
	return game.Result{Events: events}, nil
}

// placeCard puts a card on the discard pile, applies its effect and returns
// how many extra seats the turn advance must skip. Wilds leave the turn
// parked on the player until they choose a color.
func (m *Module) placeCard(actor string, card Card, events *[]game.Event) int {
	m.Discard = append(m.Discard, card)
	m.CurrentValue = card.Value
	if !card.wild() {
		m.CurrentColor = card.Color
	}
	*events = append(*events, game.Event{
		Key:    "uno-played-card",
		Params: map[string]string{"player": actor, "card": card.name()},
	})

	if card.wild() {
		m.PendingColorSeat = m.Turn
		m.PendingColorValue = card.Value
		return 0
	}

	switch card.Value {
	case ValueSkip:
		return 1
	case ValueReverse:
		m.Direction = -m.Direction
		if len(m.Seats) == 2 {
			return 1
		}
	case ValueDrawTwo:
		m.PendingDraw = 2
		m.PendingDrawSeat = m.nextSeat()
	}
	return 0
}

// finishResult closes out a card play: UNO call on one card, win on zero,
// otherwise the turn advances unless a wild is waiting on its color.
func (m *Module) finishResult(actor string, skips int, events []game.Event) game.Result {
	switch len(m.Hands[m.Turn]) {
	case 1:
		events = append(events, game.Event{Key: "uno-uno-call", Params: map[string]string{"player": actor}})
	case 0:
		if m.PendingColorSeat < 0 {
			return m.declareWinner(actor, events)
		}
	}
	if m.PendingColorSeat >= 0 {
		return game.Result{Events: events}
	}
	m.endTurn(&events, skips)
	return game.Result{Events: events}
}

func (m *Module) declareWinner(actor string, events []game.Event) game.Result {
	m.Over = true
	m.Winner = actor
	events = append(events, game.Event{Key: "uno-winner", Params: map[string]string{"player": actor}})
	return game.Result{Events: events, GameOver: true}
}

func (m *Module) endTurn(events *[]game.Event, skips int) {
	for i := 0; i <= skips; i++ {
		m.Turn = m.nextSeat()
	}
	if m.PendingDrawSeat == m.Turn && m.PendingDraw > 0 {
		m.resolvePendingDraw(events)
	}
}

func (m *Module) resolvePendingDraw(events *[]game.Event) {
	amount := m.PendingDraw
	m.PendingDraw = 0
	m.PendingDrawSeat = -1
	drawn := m.drawInto(m.Turn, amount)
	if events != nil && drawn > 0 {
		*events = append(*events, game.Event{
			Key: "uno-draw-penalty",
			Params: map[string]string{
				"player": m.Seats[m.Turn].Identity,
				"count":  strconv.Itoa(drawn),
			},
		})
	}
}

func (m *Module) ChooseBotAction(actor string) (game.Action, bool) {
	if m.Over || m.WhoseTurn() != actor {
		return game.Action{}, false
	}
	if m.PendingColorSeat == m.Turn {
		return game.Action{Key: ActionChooseColor, Params: map[string]string{"color": m.bestColor()}}, true
	}
	for i, card := range m.Hands[m.Turn] {
		if m.canPlay(card) {
			return game.Action{Key: ActionPlay, Params: map[string]string{"index": strconv.Itoa(i)}}, true
		}
	}
	return game.Action{Key: ActionDraw}, true
}

// bestColor picks the color the bot holds the most of, first color on ties.
func (m *Module) bestColor() string {
	counts := make(map[string]int, len(Colors))
	for _, card := range m.Hands[m.Turn] {
		if !card.wild() {
			counts[card.Color]++
		}
	}
	best := Colors[0]
	for _, color := range Colors[1:] {
		if counts[color] > counts[best] {
			best = color
		}
	}
	return best
}

func (m *Module) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Module) Deserialize(data []byte) error {
	var restored Module
	if err := json.Unmarshal(data, &restored); err != nil {
		return fmt.Errorf("uno: corrupt snapshot: %w", err)
	}
	if len(restored.Hands) != len(restored.Seats) {
		return fmt.Errorf("uno: snapshot seat/hand mismatch")
	}
	if len(restored.Seats) > 0 && (restored.Turn < 0 || restored.Turn >= len(restored.Seats)) {
		return fmt.Errorf("uno: snapshot turn out of range")
	}
	if restored.Direction != 1 && restored.Direction != -1 {
		return fmt.Errorf("uno: snapshot direction invalid")
	}
	*m = restored
	return nil
}
