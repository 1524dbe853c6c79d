package game

import (
	"fmt"

	"github.com/magefree/mage-commander/internal/game/rules"
)

// DecisionKind is the kind of input the game is waiting for.
type DecisionKind string

const (
	DecisionPriority         DecisionKind = "PRIORITY"
	DecisionDeclareAttackers DecisionKind = "DECLARE_ATTACKERS"
	DecisionDeclareBlockers  DecisionKind = "DECLARE_BLOCKERS"
	DecisionCommanderZone    DecisionKind = "COMMANDER_ZONE"
	DecisionGameOver         DecisionKind = "GAME_OVER"
)

// Decision describes the suspension point the game stopped at: who must
// answer and with which kind of action.
type Decision struct {
	Kind   DecisionKind   `json:"kind"`
	Player rules.PlayerID `json:"player,omitempty"`
	Turn   int            `json:"turn"`
	Step   string         `json:"step"`
	// Card, From and To describe a pending commander move.
	Card rules.CardID `json:"card,omitempty"`
	From rules.Zone   `json:"from,omitempty"`
	To   rules.Zone   `json:"to,omitempty"`
	// Attackers lists the creatures attacking the deciding player.
	Attackers []rules.CardID `json:"attackers,omitempty"`
	Winner    rules.PlayerID `json:"winner,omitempty"`
}

func (d Decision) String() string {
	switch d.Kind {
	case DecisionCommanderZone:
		return fmt.Sprintf("%s: %s moves commander %d from %s to %s or the command zone", d.Kind, d.Player, d.Card, d.From, d.To)
	case DecisionGameOver:
		if d.Winner == "" {
			return fmt.Sprintf("%s: draw", d.Kind)
		}
		return fmt.Sprintf("%s: %s wins", d.Kind, d.Winner)
	}
	return fmt.Sprintf("%s: %s (turn %d, %s)", d.Kind, d.Player, d.Turn, d.Step)
}

// PendingMove is a commander zone change waiting for its owner's choice.
type PendingMove struct {
	Card  rules.CardID   `json:"card"`
	Owner rules.PlayerID `json:"owner"`
	From  rules.Zone     `json:"from"`
	To    rules.Zone     `json:"to"`
}

// Decision returns the decision the game is currently waiting for. Pending
// commander moves come first, then combat declarations, then priority.
func (g *Game) Decision() Decision {
	d := Decision{Turn: g.turn.TurnNumber(), Step: g.turn.CurrentStep().String()}
	switch {
	case g.over:
		d.Kind = DecisionGameOver
		d.Winner = g.winner
	case len(g.pendingMoves) > 0:
		move := g.pendingMoves[0]
		d.Kind = DecisionCommanderZone
		d.Player = move.Owner
		d.Card = move.Card
		d.From = move.From
		d.To = move.To
	case g.attackersPending:
		d.Kind = DecisionDeclareAttackers
		d.Player = g.turn.ActivePlayer()
	case len(g.blockersPending) > 0:
		d.Kind = DecisionDeclareBlockers
		d.Player = g.blockersPending[0]
		for _, group := range g.combat.Attackers() {
			if group.Defender == d.Player {
				d.Attackers = append(d.Attackers, group.Attacker)
			}
		}
	default:
		d.Kind = DecisionPriority
		d.Player = g.priority.Holder()
	}
	return d
}
