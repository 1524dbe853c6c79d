package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// checkStateBasedActions performs every state-based action that applies at
// once and reports whether any did. Player losses are raised as events and
// take effect when the events are drained.
func (g *Game) checkStateBasedActions() bool {
	acted := false
	for _, id := range g.turn.Remaining() {
		p := g.players[id]
		var reason rules.EliminationReason
		switch {
		case p.Life <= 0:
			reason = rules.EliminationLifeTotal
		case p.DrewFromEmpty:
			reason = rules.EliminationEmptyLibrary
		default:
			continue
		}
		evt := rules.NewEventWithAmount(rules.EventPlayerEliminated, id, rules.NoCard, p.Life)
		evt.Reason = string(reason)
		evt.Description = fmt.Sprintf("%s lost the game", id)
		g.emit(evt)
		acted = true
	}
	if acted {
		return true
	}

	for _, card := range g.zones.Permanents("") {
		if !card.IsCreature() || g.isPending(card.ID) {
			continue
		}
		if card.Toughness() <= 0 || card.HasLethalDamage() {
			g.move(card.ID, rules.ZoneGraveyard, zone.MoveOptions{})
			acted = true
		}
	}
	return acted
}

// eliminate removes a player from the game. It runs once per player; later
// elimination events for the same player are ignored.
func (g *Game) eliminate(player rules.PlayerID, reason rules.EliminationReason) {
	p, ok := g.players[player]
	if !ok || p.Eliminated {
		return
	}
	p.Eliminated = true
	p.Reason = reason
	p.DrewFromEmpty = false

	wasActive := g.turn.ActivePlayer() == player
	next := g.turn.NextSeat(player)
	g.turn.Eliminate(player)
	g.priority.Remove(player, next)

	for _, item := range g.stack.RemoveControlledBy(player) {
		g.countered(item, rules.CounterReasonEliminated)
	}
	g.combat.RemovePlayer(player)

	successor := g.turn.ActivePlayer()
	if wasActive {
		successor = next
	}
	g.politics.OnEliminated(player, successor)

	blockers := g.blockersPending[:0]
	for _, seat := range g.blockersPending {
		if seat != player {
			blockers = append(blockers, seat)
		}
	}
	g.blockersPending = blockers
	moves := g.pendingMoves[:0]
	for _, move := range g.pendingMoves {
		if move.Owner != player {
			moves = append(moves, move)
		}
	}
	g.pendingMoves = moves
	if wasActive {
		g.attackersPending = false
	}

	// Everything the player owns leaves the game; control of what they
	// borrowed goes back to the owners.
	for _, card := range g.zones.OwnedBy(player) {
		if card.Zone == rules.ZoneExile {
			continue
		}
		if _, err := g.zones.Commit(card.ID, rules.ZoneExile, zone.MoveOptions{}); err != nil {
			g.logger.Warn("failed to exile card of eliminated player", zap.Int("card_id", int(card.ID)), zap.Error(err))
		}
	}
	for _, card := range g.zones.Permanents(player) {
		card.Permanent.Controller = card.Owner
	}

	if wasActive {
		g.endTurnRequested = true
	}
	g.logger.Info("player eliminated",
		zap.String("player", string(player)),
		zap.String("reason", string(reason)),
		zap.Int("remaining", len(g.turn.Remaining())),
	)
	g.checkGameOver()
}

// checkGameOver ends the game once at most one player remains.
func (g *Game) checkGameOver() {
	remaining := g.turn.Remaining()
	if g.over || len(remaining) > 1 {
		return
	}
	g.over = true
	if len(remaining) == 1 {
		g.winner = remaining[0]
	}
	g.attackersPending = false
	g.blockersPending = nil
	g.pendingMoves = nil

	evt := rules.NewEvent(rules.EventGameOver, g.winner, rules.NoCard)
	if g.winner == "" {
		evt.Description = "draw"
	} else {
		evt.Description = fmt.Sprintf("%s wins", g.winner)
	}
	g.emit(evt)
	g.logger.Info("game over",
		zap.String("winner", string(g.winner)),
		zap.Int("turn", g.turn.TurnNumber()),
	)
}
