// Package game is the Commander rules engine aggregate. A Game owns every
// subsystem and is advanced one tick at a time through Submit.
package game

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/commander"
	"github.com/magefree/mage-commander/internal/game/politics"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/targeting"
	"github.com/magefree/mage-commander/internal/game/zone"
)

const (
	// maxSettleRounds bounds the state-based action and trigger loop of one tick.
	maxSettleRounds = 256
	// maxFlowSteps bounds the steps advanced without input in one tick.
	maxFlowSteps = 512
)

// Player is the per-seat state that is not held by a subsystem.
type Player struct {
	ID          rules.PlayerID          `json:"id"`
	Life        int                     `json:"life"`
	Eliminated  bool                    `json:"eliminated,omitempty"`
	Reason      rules.EliminationReason `json:"reason,omitempty"`
	LandsPlayed int                     `json:"lands_played,omitempty"`
	// DrewFromEmpty marks a draw from an empty library; the loss is applied
	// by the next state-based action check.
	DrewFromEmpty bool `json:"drew_from_empty,omitempty"`
}

// Game is the single mutable aggregate of a match. It is not safe for
// concurrent use; Manager serialises access.
type Game struct {
	logger   *zap.Logger
	root     *zap.Logger
	id       string
	settings Settings
	players  map[rules.PlayerID]*Player

	turn       *rules.TurnManager
	priority   *rules.PriorityManager
	stack      *rules.Stack
	resolution *rules.ResolutionContext
	zones      *zone.Engine
	combat     *combat.Engine
	commander  *commander.Overlay
	politics   *politics.Monarch
	triggers   *rules.TriggerManager
	validator  *targeting.TargetValidator

	bus             *rules.EventBus
	queue           rules.EventQueue
	outbox          []rules.Event
	seq             uint64
	pendingTriggers []rules.StackItem

	pendingMoves     []PendingMove
	attackersPending bool
	blockersPending  []rules.PlayerID
	stepDone         bool
	endTurnRequested bool
	over             bool
	winner           rules.PlayerID
}

// newGame builds an empty aggregate for the seats with every subsystem wired.
func newGame(id string, seats []rules.PlayerID, settings Settings, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Game{
		logger:     logger.With(zap.String("game_id", id)),
		root:       logger,
		id:         id,
		settings:   settings,
		players:    make(map[rules.PlayerID]*Player, len(seats)),
		turn:       rules.NewTurnManager(seats),
		priority:   rules.NewPriorityManager(),
		stack:      rules.NewStack(),
		resolution: rules.NewResolutionContext(),
		triggers:   rules.NewTriggerManager(),
		bus:        rules.NewEventBus(),
	}
	g.zones = zone.NewEngine(seats, g.logger)
	g.commander = commander.NewOverlay(settings.CommanderDamageThreshold, settings.CommandZonePolicy, g.logger)
	g.politics = politics.NewMonarch(g.logger)
	g.combat = combat.NewEngine(g.zones, g.logger)
	for _, seat := range seats {
		g.players[seat] = &Player{ID: seat, Life: settings.StartingLife}
	}
	g.wire()
	return g
}

// wire points every subsystem's event sink at this aggregate.
func (g *Game) wire() {
	g.zones.SetEmitter(g.emit)
	g.zones.SetReplacer(g.commander)
	g.combat.SetEmitter(g.emit)
	g.commander.SetEmitter(g.emit)
	g.politics.SetEmitter(g.emit)
	g.validator = targeting.NewTargetValidator(g)
}

// New creates a match from the setup, deals opening hands and runs the
// first turn up to its first decision.
func New(id string, setup Setup, settings Settings, logger *zap.Logger) (*Game, error) {
	if err := setup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid setup: %w", err)
	}
	g := newGame(id, setup.Seats(), settings, logger)

	// Cards are numbered seat by seat: commanders first, then the library
	// top to bottom.
	for _, p := range setup.Players {
		for _, chars := range p.Commanders {
			card := zone.NewCard(rules.NoCard, p.ID, chars)
			card.Zone = rules.ZoneCommand
			card.Commander = true
			if err := g.zones.AddCard(card); err != nil {
				return nil, err
			}
			g.commander.Register(p.ID, card.ID, rules.ZoneCommand)
		}
		for _, entry := range p.Library {
			count := entry.Count
			if count <= 0 {
				count = 1
			}
			for i := 0; i < count; i++ {
				card := zone.NewCard(rules.NoCard, p.ID, entry.Characteristics)
				card.Zone = rules.ZoneLibrary
				if err := g.zones.AddCard(card); err != nil {
					return nil, err
				}
			}
		}
		if p.CommandZonePolicy != "" {
			g.commander.SetPolicy(p.ID, p.CommandZonePolicy)
		}
	}

	if setup.Shuffle {
		rng := rand.New(rand.NewSource(settings.ShuffleSeed))
		for _, seat := range g.turn.Seats() {
			g.zones.Shuffle(seat, rng)
		}
	}
	for _, seat := range g.turn.Seats() {
		for i := 0; i < settings.OpeningHand; i++ {
			if _, err := g.zones.Draw(seat); err != nil {
				break
			}
		}
	}

	g.logger.Info("game started",
		zap.Int("players", len(setup.Players)),
		zap.Int("cards", len(g.zones.CardIDs())),
		zap.String("first_player", string(g.turn.ActivePlayer())),
	)

	g.beginTurn()
	g.enterStep(g.turn.CurrentStep())
	g.run()
	return g, nil
}

// ID returns the match id.
func (g *Game) ID() string { return g.id }

// Settings returns the rule parameters of the match.
func (g *Game) Settings() Settings { return g.settings }

// TurnNumber returns the current turn number, starting at 1.
func (g *Game) TurnNumber() int { return g.turn.TurnNumber() }

// ActivePlayer returns the player whose turn it is.
func (g *Game) ActivePlayer() rules.PlayerID { return g.turn.ActivePlayer() }

// Phase returns the current phase.
func (g *Game) Phase() rules.Phase { return g.turn.CurrentPhase() }

// Step returns the current step.
func (g *Game) Step() rules.Step { return g.turn.CurrentStep() }

// PriorityHolder returns the player holding priority.
func (g *Game) PriorityHolder() rules.PlayerID { return g.priority.Holder() }

// Seats returns every player in seat order, eliminated or not.
func (g *Game) Seats() []rules.PlayerID { return g.turn.Seats() }

// Remaining returns the players still in the game in seat order.
func (g *Game) Remaining() []rules.PlayerID { return g.turn.Remaining() }

// Player returns a copy of the player's state.
func (g *Game) Player(id rules.PlayerID) (Player, bool) {
	p, ok := g.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Life returns the player's life total.
func (g *Game) Life(id rules.PlayerID) int {
	if p, ok := g.players[id]; ok {
		return p.Life
	}
	return 0
}

// Zones exposes the zone engine for read access.
func (g *Game) Zones() *zone.Engine { return g.zones }

// Card returns the card with the id.
func (g *Game) Card(id rules.CardID) (*zone.Card, bool) { return g.zones.Card(id) }

// StackItems returns the stack bottom first.
func (g *Game) StackItems() []rules.StackItem { return g.stack.List() }

// CombatState returns a copy of the combat bookkeeping.
func (g *Game) CombatState() combat.State { return g.combat.State() }

// Monarch returns the monarch, "" when there is none.
func (g *Game) Monarch() rules.PlayerID { return g.politics.Holder() }

// CommanderDamage returns the combat damage the commander dealt to target.
func (g *Game) CommanderDamage(card rules.CardID, target rules.PlayerID) int {
	return g.commander.Damage(card, target)
}

// CommanderTransitions returns how often the commander went to the command
// zone by replacement.
func (g *Game) CommanderTransitions(card rules.CardID) int {
	return g.commander.Transitions(card)
}

// CommanderTax returns the informational commander tax of the card.
func (g *Game) CommanderTax(card rules.CardID) int { return g.commander.Tax(card) }

// Commanders returns the player's commanders.
func (g *Game) Commanders(player rules.PlayerID) []rules.CardID {
	return g.commander.Commanders(player)
}

// Over reports whether the game has ended.
func (g *Game) Over() bool { return g.over }

// Winner returns the last player standing, "" for a draw or while playing.
func (g *Game) Winner() rules.PlayerID { return g.winner }

// Bus returns the event bus outbox subscribers attach to. Listeners are
// called synchronously and must not call back into the game.
func (g *Game) Bus() *rules.EventBus { return g.bus }

// Events returns every event published so far.
func (g *Game) Events() []rules.Event {
	return append([]rules.Event(nil), g.outbox...)
}

// EventsSince returns the published events with a sequence number above seq.
func (g *Game) EventsSince(seq uint64) []rules.Event {
	idx := sort.Search(len(g.outbox), func(i int) bool { return g.outbox[i].Seq > seq })
	return append([]rules.Event(nil), g.outbox[idx:]...)
}

// LastEventSeq returns the sequence number of the last published event.
func (g *Game) LastEventSeq() uint64 { return g.seq }

// Check verifies the aggregate invariants: zone membership, and that every
// stack item's spell card sits on the stack.
func (g *Game) Check() error {
	if err := g.zones.Check(); err != nil {
		return err
	}
	for _, item := range g.stack.List() {
		if item.Kind != rules.StackItemKindSpell {
			continue
		}
		if z, ok := g.zones.ZoneOf(item.SourceID); !ok || z != rules.ZoneStack {
			return fmt.Errorf("stack item %d: spell card %d is in %s", item.ID, item.SourceID, z)
		}
	}
	return nil
}

// SetMonarch makes the player the monarch from outside effect resolution.
func (g *Game) SetMonarch(player rules.PlayerID, source rules.CardID) error {
	if g.over {
		return rules.ErrGameOver
	}
	if !g.turn.InGame(player) {
		return fmt.Errorf("%w: %s is not in the game", rules.ErrInvalidAction, player)
	}
	g.politics.Set(player, source)
	g.run()
	return nil
}

// PlayerInGame implements targeting.TargetGameStateAccessor.
func (g *Game) PlayerInGame(player rules.PlayerID) bool {
	return g.turn.InGame(player)
}

// FindCardForTarget implements targeting.TargetGameStateAccessor.
func (g *Game) FindCardForTarget(id rules.CardID) (targeting.TargetCardInfo, bool) {
	card, ok := g.zones.Card(id)
	if !ok {
		return targeting.TargetCardInfo{}, false
	}
	return targeting.TargetCardInfo{
		ID:          card.ID,
		Zone:        card.Zone,
		Incarnation: card.Incarnation,
		Creature:    card.IsCreature(),
	}, true
}

// StackHas implements targeting.TargetGameStateAccessor.
func (g *Game) StackHas(id rules.StackItemID) bool {
	return g.stack.Contains(id)
}

// emit queues an event raised by any subsystem during the tick.
func (g *Game) emit(ev rules.Event) {
	if ev.Turn == 0 {
		ev.Turn = g.turn.TurnNumber()
	}
	g.queue.Enqueue(ev)
}

// flush drains the queue batch by batch. Each event is numbered, stored in
// the outbox, handed to the internal reactors and then to subscribers.
// Events raised while reacting land in the next batch.
func (g *Game) flush() {
	for g.queue.Len() > 0 {
		for _, ev := range g.queue.Next() {
			g.seq++
			ev.Seq = g.seq
			g.outbox = append(g.outbox, ev)
			g.react(ev)
			g.bus.Publish(ev)
		}
	}
}

// react runs the internal consumers of an event in a fixed order.
func (g *Game) react(ev rules.Event) {
	switch ev.Type {
	case rules.EventZoneChange:
		if ev.FromZone == rules.ZoneBattlefield && ev.ToZone != rules.ZoneBattlefield {
			g.combat.RemoveFromCombat(ev.Card)
			g.triggers.UnregisterSource(ev.Card)
		}
		if ev.ToZone == rules.ZoneBattlefield && ev.FromZone != rules.ZoneBattlefield {
			g.registerTriggers(ev.Card)
		}
	case rules.EventPlayerEliminated:
		g.eliminate(ev.Player, rules.EliminationReason(ev.Reason))
	}
	g.commander.HandleEvent(ev)
	g.politics.HandleEvent(ev)
	g.pendingTriggers = append(g.pendingTriggers, g.triggers.Handle(ev)...)
}

// settle runs state-based actions and puts waiting triggers on the stack
// until nothing changes.
func (g *Game) settle() {
	for round := 0; round < maxSettleRounds; round++ {
		g.flush()
		if g.over {
			g.pendingTriggers = nil
			return
		}
		if g.checkStateBasedActions() {
			continue
		}
		if g.placeTriggers() {
			continue
		}
		return
	}
	g.logger.Warn("state-based actions did not settle", zap.Int("rounds", maxSettleRounds))
}

// blocked reports whether the game waits for a decision other than priority.
func (g *Game) blocked() bool {
	return len(g.pendingMoves) > 0 || g.attackersPending || len(g.blockersPending) > 0
}

// run settles the tick and advances through steps until input is needed.
func (g *Game) run() {
	for i := 0; i < maxFlowSteps; i++ {
		g.settle()
		g.pruneBlockers()
		if g.over || g.blocked() {
			return
		}
		if g.endTurnRequested {
			g.endTurnRequested = false
			g.forceEndTurn()
			continue
		}
		if !g.stepDone && g.priority.AllPassed(g.turn.Remaining()) {
			// The last player yet to pass left the game.
			g.allPassed()
			continue
		}
		if !g.stepDone {
			return
		}
		g.stepDone = false
		g.nextStep()
	}
	g.logger.Warn("turn flow did not reach a decision", zap.Int("steps", maxFlowSteps))
}

// move changes a card's zone through the zone engine and parks deferred
// commander moves until their owner decides.
func (g *Game) move(id rules.CardID, to rules.Zone, opts zone.MoveOptions) {
	if g.isPending(id) {
		return
	}
	result, err := g.zones.Move(id, to, opts)
	if err != nil {
		g.logger.Warn("zone move failed", zap.Int("card_id", int(id)), zap.Error(err))
		return
	}
	if !result.Deferred {
		return
	}
	card, _ := g.zones.Card(id)
	g.pendingMoves = append(g.pendingMoves, PendingMove{Card: id, Owner: card.Owner, From: result.From, To: result.To})
	sort.SliceStable(g.pendingMoves, func(i, j int) bool {
		return g.pendingMoves[i].Card < g.pendingMoves[j].Card
	})
}

func (g *Game) isPending(id rules.CardID) bool {
	for _, move := range g.pendingMoves {
		if move.Card == id {
			return true
		}
	}
	return false
}

// loseLife applies damage or life loss to a player.
func (g *Game) loseLife(player rules.PlayerID, amount int) {
	p, ok := g.players[player]
	if !ok || amount == 0 {
		return
	}
	p.Life -= amount
	evt := rules.NewEventWithAmount(rules.EventLifeChange, player, rules.NoCard, -amount)
	evt.Description = fmt.Sprintf("%s life %d", player, p.Life)
	g.emit(evt)
}

func (g *Game) gainLife(player rules.PlayerID, amount int) {
	p, ok := g.players[player]
	if !ok || amount <= 0 {
		return
	}
	p.Life += amount
	evt := rules.NewEventWithAmount(rules.EventLifeChange, player, rules.NoCard, amount)
	evt.Description = fmt.Sprintf("%s life %d", player, p.Life)
	g.emit(evt)
}

// lifeTotals adapts the game to combat.LifeTotals.
type lifeTotals struct{ g *Game }

func (l lifeTotals) LoseLife(player rules.PlayerID, amount int) { l.g.loseLife(player, amount) }
