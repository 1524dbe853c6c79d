package zone

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/counters"
	"github.com/magefree/mage-commander/internal/game/rules"
)

// Replacement is a replacer's answer to a pending zone change.
type Replacement int

const (
	// ReplaceNone commits the move to its original destination.
	ReplaceNone Replacement = iota
	// ReplaceCommandZone commits the move to the command zone instead.
	ReplaceCommandZone
	// ReplaceDefer leaves the card where it is until the owner decides.
	ReplaceDefer
)

// Replacer is consulted before a card leaves one of the replaceable zones.
type Replacer interface {
	ReplaceZoneChange(card *Card, from, to rules.Zone) Replacement
}

// MoveOptions tune a single move.
type MoveOptions struct {
	// Controller of the permanent when entering the battlefield; owner when empty.
	Controller   rules.PlayerID
	EntersTapped bool
	// Bottom puts a card entering a library on the bottom instead of the top.
	Bottom bool
}

// MoveResult reports what a move actually did.
type MoveResult struct {
	From     rules.Zone
	To       rules.Zone
	Deferred bool
}

// Engine owns zone membership. Every card is in exactly one zone and Move is
// the only way to change that.
type Engine struct {
	logger      *zap.Logger
	seats       []rules.PlayerID
	cards       map[rules.CardID]*Card
	libraries   map[rules.PlayerID][]rules.CardID
	hands       map[rules.PlayerID][]rules.CardID
	graveyards  map[rules.PlayerID][]rules.CardID
	battlefield []rules.CardID
	stack       []rules.CardID
	exile       []rules.CardID
	command     []rules.CardID
	replacer    Replacer
	emit        func(rules.Event)
	nextID      rules.CardID
}

// NewEngine creates an engine for the given seats.
func NewEngine(seats []rules.PlayerID, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:     logger,
		seats:      append([]rules.PlayerID(nil), seats...),
		cards:      make(map[rules.CardID]*Card),
		libraries:  make(map[rules.PlayerID][]rules.CardID),
		hands:      make(map[rules.PlayerID][]rules.CardID),
		graveyards: make(map[rules.PlayerID][]rules.CardID),
		emit:       func(rules.Event) {},
		nextID:     1,
	}
	return e
}

// SetReplacer installs the zone-change replacer. nil removes it.
func (e *Engine) SetReplacer(r Replacer) {
	e.replacer = r
}

// SetEmitter installs the sink for ZoneChangeEvents.
func (e *Engine) SetEmitter(emit func(rules.Event)) {
	if emit == nil {
		emit = func(rules.Event) {}
	}
	e.emit = emit
}

// AddCard places a card directly in card.Zone without emitting events. It
// is used for setup and snapshot import. A zero id is assigned the next
// free id.
func (e *Engine) AddCard(card *Card) error {
	if card == nil {
		return fmt.Errorf("add card: nil card")
	}
	if card.ID == rules.NoCard {
		card.ID = e.nextID
	}
	if _, exists := e.cards[card.ID]; exists {
		return fmt.Errorf("add card: duplicate id %d", card.ID)
	}
	if card.Zone == rules.ZoneNone {
		return fmt.Errorf("add card %d: no zone", card.ID)
	}
	if card.Counters == nil {
		card.Counters = counters.NewCounters()
	}
	if card.Zone == rules.ZoneBattlefield && card.Permanent == nil {
		card.Permanent = &Permanent{Controller: card.Owner}
	}
	e.cards[card.ID] = card
	// Appending keeps library order as given: first card added is the top.
	e.insert(card, card.Zone, true)
	if card.ID >= e.nextID {
		e.nextID = card.ID + 1
	}
	return nil
}

// CreateToken puts a new token onto the battlefield under controller.
func (e *Engine) CreateToken(owner, controller rules.PlayerID, chars Characteristics) *Card {
	card := NewCard(e.nextID, owner, chars)
	e.nextID++
	if controller == "" {
		controller = owner
	}
	card.Zone = rules.ZoneBattlefield
	card.Permanent = &Permanent{Controller: controller, Token: true, SummoningSick: true}
	e.cards[card.ID] = card
	e.insert(card, rules.ZoneBattlefield, false)

	evt := rules.NewEvent(rules.EventZoneChange, owner, card.ID)
	evt.FromZone = rules.ZoneNone
	evt.ToZone = rules.ZoneBattlefield
	evt.Description = fmt.Sprintf("%s token created", chars.Name)
	e.emit(evt)
	return card
}

// Card returns the card with the id.
func (e *Engine) Card(id rules.CardID) (*Card, bool) {
	card, ok := e.cards[id]
	return card, ok
}

// CardIDs returns every card id in ascending order.
func (e *Engine) CardIDs() []rules.CardID {
	ids := make([]rules.CardID, 0, len(e.cards))
	for id := range e.cards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NextID returns the id the next new card will receive.
func (e *Engine) NextID() rules.CardID {
	return e.nextID
}

// SetNextID raises the next id, used when importing a snapshot.
func (e *Engine) SetNextID(id rules.CardID) {
	if id > e.nextID {
		e.nextID = id
	}
}

// ZoneOf returns the zone the card is in.
func (e *Engine) ZoneOf(id rules.CardID) (rules.Zone, bool) {
	card, ok := e.cards[id]
	if !ok {
		return rules.ZoneNone, false
	}
	return card.Zone, true
}

// Library returns the player's library, top first.
func (e *Engine) Library(player rules.PlayerID) []rules.CardID {
	return copyIDs(e.libraries[player])
}

// Hand returns the player's hand in the order cards arrived.
func (e *Engine) Hand(player rules.PlayerID) []rules.CardID {
	return copyIDs(e.hands[player])
}

// Graveyard returns the player's graveyard, oldest first.
func (e *Engine) Graveyard(player rules.PlayerID) []rules.CardID {
	return copyIDs(e.graveyards[player])
}

// Battlefield returns every permanent in the order they entered.
func (e *Engine) Battlefield() []rules.CardID {
	return copyIDs(e.battlefield)
}

// StackCards returns the cards currently on the stack, bottom first.
func (e *Engine) StackCards() []rules.CardID {
	return copyIDs(e.stack)
}

// Exile returns the exiled cards, oldest first.
func (e *Engine) Exile() []rules.CardID {
	return copyIDs(e.exile)
}

// CommandZone returns the cards in the command zone.
func (e *Engine) CommandZone() []rules.CardID {
	return copyIDs(e.command)
}

// Permanents returns the permanents controlled by the player in ascending id
// order. An empty player returns every permanent.
func (e *Engine) Permanents(controller rules.PlayerID) []*Card {
	out := make([]*Card, 0, len(e.battlefield))
	for _, id := range e.battlefield {
		card := e.cards[id]
		if controller == "" || card.Controller() == controller {
			out = append(out, card)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OwnedBy returns every card the player owns in ascending id order.
func (e *Engine) OwnedBy(owner rules.PlayerID) []*Card {
	var out []*Card
	for _, id := range e.CardIDs() {
		if card := e.cards[id]; card.Owner == owner {
			out = append(out, card)
		}
	}
	return out
}

// Move moves the card to the destination. A commander leaving a replaceable
// zone for anywhere but the battlefield, the stack or the command zone is
// first offered to the replacer; a deferred move leaves the card in place.
func (e *Engine) Move(id rules.CardID, to rules.Zone, opts MoveOptions) (MoveResult, error) {
	card, ok := e.cards[id]
	if !ok {
		return MoveResult{}, fmt.Errorf("move card %d: unknown card", id)
	}
	if e.replacer != nil && card.Commander && replaceable(card.Zone, to) {
		switch e.replacer.ReplaceZoneChange(card, card.Zone, to) {
		case ReplaceDefer:
			e.logger.Debug("commander move deferred",
				zap.Int("card_id", int(id)),
				zap.String("from", card.Zone.String()),
				zap.String("to", to.String()),
			)
			return MoveResult{From: card.Zone, To: to, Deferred: true}, nil
		case ReplaceCommandZone:
			to = rules.ZoneCommand
		}
	}
	return e.Commit(id, to, opts)
}

// Commit moves the card without consulting the replacer.
func (e *Engine) Commit(id rules.CardID, to rules.Zone, opts MoveOptions) (MoveResult, error) {
	card, ok := e.cards[id]
	if !ok {
		return MoveResult{}, fmt.Errorf("move card %d: unknown card", id)
	}
	if to == rules.ZoneNone {
		return MoveResult{}, fmt.Errorf("move card %d: no destination", id)
	}
	from := card.Zone
	controller := card.Controller()

	e.remove(card)
	card.Zone = to
	card.Incarnation++

	wasToken := card.Permanent != nil && card.Permanent.Token
	if from == rules.ZoneBattlefield && to != rules.ZoneBattlefield {
		card.Permanent = nil
		card.Tapped = false
		card.Counters.Clear()
	}
	if to == rules.ZoneBattlefield {
		if opts.Controller != "" {
			controller = opts.Controller
		} else if from != rules.ZoneBattlefield {
			controller = card.Owner
		}
		card.Permanent = &Permanent{Controller: controller, SummoningSick: true}
		card.Tapped = opts.EntersTapped
	}
	e.insert(card, to, opts.Bottom)

	evt := rules.NewEvent(rules.EventZoneChange, card.Owner, card.ID)
	evt.Target = controller
	evt.FromZone = from
	evt.ToZone = to
	evt.Hidden = !from.Public() && !to.Public()
	evt.Description = fmt.Sprintf("%s moved from %s to %s", card.Name(), from, to)
	e.emit(evt)

	e.logger.Debug("moved card",
		zap.Int("card_id", int(card.ID)),
		zap.String("card_name", card.Name()),
		zap.String("source_zone", from.String()),
		zap.String("target_zone", to.String()),
	)

	// Tokens cease to exist once they leave the battlefield.
	if wasToken && to != rules.ZoneBattlefield {
		e.remove(card)
		delete(e.cards, card.ID)
	}
	return MoveResult{From: from, To: to}, nil
}

// Draw moves the top card of the player's library to their hand.
func (e *Engine) Draw(player rules.PlayerID) (rules.CardID, error) {
	library := e.libraries[player]
	if len(library) == 0 {
		return rules.NoCard, fmt.Errorf("%s draws: %w", player, rules.ErrEmptyLibrary)
	}
	id := library[0]
	if _, err := e.Commit(id, rules.ZoneHand, MoveOptions{}); err != nil {
		return rules.NoCard, err
	}
	evt := rules.NewEvent(rules.EventDrewCard, player, id)
	evt.Hidden = true
	e.emit(evt)
	return id, nil
}

// Shuffle randomises the player's library with the given source.
func (e *Engine) Shuffle(player rules.PlayerID, rng *rand.Rand) {
	library := e.libraries[player]
	rng.Shuffle(len(library), func(i, j int) {
		library[i], library[j] = library[j], library[i]
	})
}

// Check verifies that every card is listed in exactly the zone it claims.
func (e *Engine) Check() error {
	seen := make(map[rules.CardID]rules.Zone, len(e.cards))
	record := func(zone rules.Zone, ids []rules.CardID) error {
		for _, id := range ids {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("card %d listed in %s and %s", id, prev, zone)
			}
			seen[id] = zone
		}
		return nil
	}
	for _, seat := range e.seats {
		if err := record(rules.ZoneLibrary, e.libraries[seat]); err != nil {
			return err
		}
		if err := record(rules.ZoneHand, e.hands[seat]); err != nil {
			return err
		}
		if err := record(rules.ZoneGraveyard, e.graveyards[seat]); err != nil {
			return err
		}
	}
	for _, zoneList := range []struct {
		zone rules.Zone
		ids  []rules.CardID
	}{
		{rules.ZoneBattlefield, e.battlefield},
		{rules.ZoneStack, e.stack},
		{rules.ZoneExile, e.exile},
		{rules.ZoneCommand, e.command},
	} {
		if err := record(zoneList.zone, zoneList.ids); err != nil {
			return err
		}
	}
	if len(seen) != len(e.cards) {
		return fmt.Errorf("%d cards tracked but %d listed in zones", len(e.cards), len(seen))
	}
	for id, zone := range seen {
		card, ok := e.cards[id]
		if !ok {
			return fmt.Errorf("card %d listed in %s but unknown", id, zone)
		}
		if card.Zone != zone {
			return fmt.Errorf("card %d claims %s but is listed in %s", id, card.Zone, zone)
		}
		if (zone == rules.ZoneBattlefield) != (card.Permanent != nil) {
			return fmt.Errorf("card %d in %s has inconsistent permanent state", id, zone)
		}
	}
	return nil
}

// replaceable reports whether a commander move from→to is subject to the
// command zone replacement.
func replaceable(from, to rules.Zone) bool {
	switch from {
	case rules.ZoneBattlefield, rules.ZoneGraveyard, rules.ZoneLibrary, rules.ZoneHand, rules.ZoneStack:
	default:
		return false
	}
	switch to {
	case rules.ZoneBattlefield, rules.ZoneStack, rules.ZoneCommand:
		return false
	}
	return from != to
}

func (e *Engine) insert(card *Card, zone rules.Zone, bottom bool) {
	switch zone {
	case rules.ZoneLibrary:
		if bottom {
			e.libraries[card.Owner] = append(e.libraries[card.Owner], card.ID)
		} else {
			e.libraries[card.Owner] = append([]rules.CardID{card.ID}, e.libraries[card.Owner]...)
		}
	case rules.ZoneHand:
		e.hands[card.Owner] = append(e.hands[card.Owner], card.ID)
	case rules.ZoneGraveyard:
		// Cards always go to their owner's graveyard.
		e.graveyards[card.Owner] = append(e.graveyards[card.Owner], card.ID)
	case rules.ZoneBattlefield:
		e.battlefield = append(e.battlefield, card.ID)
	case rules.ZoneStack:
		e.stack = append(e.stack, card.ID)
	case rules.ZoneExile:
		e.exile = append(e.exile, card.ID)
	case rules.ZoneCommand:
		e.command = append(e.command, card.ID)
	}
}

func (e *Engine) remove(card *Card) {
	switch card.Zone {
	case rules.ZoneLibrary:
		e.libraries[card.Owner] = removeID(e.libraries[card.Owner], card.ID)
	case rules.ZoneHand:
		e.hands[card.Owner] = removeID(e.hands[card.Owner], card.ID)
	case rules.ZoneGraveyard:
		e.graveyards[card.Owner] = removeID(e.graveyards[card.Owner], card.ID)
	case rules.ZoneBattlefield:
		e.battlefield = removeID(e.battlefield, card.ID)
	case rules.ZoneStack:
		e.stack = removeID(e.stack, card.ID)
	case rules.ZoneExile:
		e.exile = removeID(e.exile, card.ID)
	case rules.ZoneCommand:
		e.command = removeID(e.command, card.ID)
	}
}

func removeID(ids []rules.CardID, id rules.CardID) []rules.CardID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func copyIDs(ids []rules.CardID) []rules.CardID {
	if len(ids) == 0 {
		return nil
	}
	return append([]rules.CardID(nil), ids...)
}
