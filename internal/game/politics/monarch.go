// Package politics holds the multiplayer designations that pass between
// players. Only the monarch is modelled.
package politics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
)

// Monarch tracks who is the monarch, if anyone.
type Monarch struct {
	logger *zap.Logger
	holder rules.PlayerID
	emit   func(rules.Event)
}

// NewMonarch creates a monarch designation nobody holds.
func NewMonarch(logger *zap.Logger) *Monarch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monarch{logger: logger, emit: func(rules.Event) {}}
}

// SetEmitter installs the sink for MonarchChanged events.
func (m *Monarch) SetEmitter(emit func(rules.Event)) {
	if emit == nil {
		emit = func(rules.Event) {}
	}
	m.emit = emit
}

// Holder returns the monarch, or "" when there is none.
func (m *Monarch) Holder() rules.PlayerID {
	return m.holder
}

// Is reports whether the player is the monarch.
func (m *Monarch) Is(player rules.PlayerID) bool {
	return player != "" && m.holder == player
}

// Set makes player the monarch. source is the card responsible, NoCard for
// a rules transfer. Nothing is emitted when the holder does not change.
func (m *Monarch) Set(player rules.PlayerID, source rules.CardID) bool {
	if player == m.holder {
		return false
	}
	previous := m.holder
	m.holder = player

	evt := rules.NewEvent(rules.EventMonarchChanged, player, rules.NoCard)
	evt.Target = previous
	evt.Source = source
	switch {
	case player == "":
		evt.Description = fmt.Sprintf("%s is no longer the monarch", previous)
	case previous == "":
		evt.Description = fmt.Sprintf("%s becomes the monarch", player)
	default:
		evt.Description = fmt.Sprintf("%s takes the monarchy from %s", player, previous)
	}
	m.emit(evt)

	m.logger.Info("monarch changed",
		zap.String("previous", string(previous)),
		zap.String("current", string(player)),
		zap.Int("source", int(source)),
	)
	return true
}

// HandleEvent moves the monarchy to the controller of a source that dealt
// combat damage to the monarch.
func (m *Monarch) HandleEvent(ev rules.Event) {
	if ev.Type != rules.EventCombatDamage || m.holder == "" {
		return
	}
	if ev.Target != m.holder || ev.Amount <= 0 || ev.Player == "" || ev.Player == m.holder {
		return
	}
	m.Set(ev.Player, ev.Source)
}

// OnEliminated passes the monarchy on when the monarch leaves the game.
// successor is chosen by the caller: the active player, or the next seat
// when the monarch was the active player.
func (m *Monarch) OnEliminated(player, successor rules.PlayerID) {
	if !m.Is(player) {
		return
	}
	if successor == player {
		successor = ""
	}
	m.Set(successor, rules.NoCard)
}

// Restore sets the holder without emitting, used when importing a snapshot.
func (m *Monarch) Restore(holder rules.PlayerID) {
	m.holder = holder
}
