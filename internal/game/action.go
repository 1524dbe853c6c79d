package game

import (
	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/rules"
)

// ActionKind names a player command.
type ActionKind string

const (
	ActionPassPriority        ActionKind = "PASS_PRIORITY"
	ActionCastSpell           ActionKind = "CAST_SPELL"
	ActionActivateAbility     ActionKind = "ACTIVATE_ABILITY"
	ActionPlayLand            ActionKind = "PLAY_LAND"
	ActionDeclareAttackers    ActionKind = "DECLARE_ATTACKERS"
	ActionDeclareBlockers     ActionKind = "DECLARE_BLOCKERS"
	ActionOrderBlockers       ActionKind = "ORDER_BLOCKERS"
	ActionChooseCommanderZone ActionKind = "CHOOSE_COMMANDER_ZONE"
	ActionConcede             ActionKind = "CONCEDE"
)

// Action is one discrete command submitted by a player. Only the fields of
// its kind are read.
type Action struct {
	Kind    ActionKind      `json:"kind"`
	Player  rules.PlayerID  `json:"player"`
	Card    rules.CardID    `json:"card,omitempty"`
	Ability int             `json:"ability,omitempty"`
	Targets []rules.Target  `json:"targets,omitempty"`
	Attacks []combat.Attack `json:"attacks,omitempty"`
	Blocks  []combat.Block  `json:"blocks,omitempty"`
	// Order is the damage assignment order for ORDER_BLOCKERS; Card is the
	// attacker.
	Order         []rules.CardID `json:"order,omitempty"`
	ToCommandZone bool           `json:"to_command_zone,omitempty"`
}

func PassPriority(player rules.PlayerID) Action {
	return Action{Kind: ActionPassPriority, Player: player}
}

func CastSpell(player rules.PlayerID, card rules.CardID, targets ...rules.Target) Action {
	return Action{Kind: ActionCastSpell, Player: player, Card: card, Targets: targets}
}

func ActivateAbility(player rules.PlayerID, source rules.CardID, index int, targets ...rules.Target) Action {
	return Action{Kind: ActionActivateAbility, Player: player, Card: source, Ability: index, Targets: targets}
}

func PlayLand(player rules.PlayerID, card rules.CardID) Action {
	return Action{Kind: ActionPlayLand, Player: player, Card: card}
}

func DeclareAttackers(player rules.PlayerID, attacks ...combat.Attack) Action {
	return Action{Kind: ActionDeclareAttackers, Player: player, Attacks: attacks}
}

func DeclareBlockers(player rules.PlayerID, blocks ...combat.Block) Action {
	return Action{Kind: ActionDeclareBlockers, Player: player, Blocks: blocks}
}

func OrderBlockers(player rules.PlayerID, attacker rules.CardID, order ...rules.CardID) Action {
	return Action{Kind: ActionOrderBlockers, Player: player, Card: attacker, Order: order}
}

func ChooseCommanderZone(player rules.PlayerID, card rules.CardID, toCommandZone bool) Action {
	return Action{Kind: ActionChooseCommanderZone, Player: player, Card: card, ToCommandZone: toCommandZone}
}

func Concede(player rules.PlayerID) Action {
	return Action{Kind: ActionConcede, Player: player}
}
