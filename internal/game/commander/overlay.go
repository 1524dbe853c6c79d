// Package commander layers the Commander format rules over the core
// engine: command zone replacement, commander damage and commander tax.
package commander

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// DefaultDamageThreshold is the commander damage that eliminates a player.
const DefaultDamageThreshold = 21

// Policy decides how a commander's owner answers the command zone choice.
type Policy string

const (
	// PolicyAsk suspends the game until the owner decides.
	PolicyAsk Policy = "ask"
	// PolicyAlways moves the commander to the command zone without asking.
	PolicyAlways Policy = "always"
	// PolicyNever lets the commander go to its original destination.
	PolicyNever Policy = "never"
)

// ParsePolicy validates a policy name. Empty means PolicyAsk.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyAsk:
		return PolicyAsk, nil
	case PolicyAlways:
		return PolicyAlways, nil
	case PolicyNever:
		return PolicyNever, nil
	}
	return "", fmt.Errorf("unknown command zone policy %q", name)
}

// Overlay tracks every commander, its zone and transitions, and the damage
// ledger. It implements zone.Replacer.
type Overlay struct {
	logger      *zap.Logger
	threshold   int
	policy      Policy
	policies    map[rules.PlayerID]Policy
	owners      map[rules.CardID]rules.PlayerID
	zones       map[rules.CardID]rules.Zone
	transitions map[rules.CardID]int
	ledger      map[rules.CardID]map[rules.PlayerID]int
	eliminated  map[rules.PlayerID]bool
	emit        func(rules.Event)
}

// NewOverlay creates an overlay. A threshold <= 0 uses DefaultDamageThreshold.
func NewOverlay(threshold int, policy Policy, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = DefaultDamageThreshold
	}
	if policy == "" {
		policy = PolicyAsk
	}
	return &Overlay{
		logger:      logger,
		threshold:   threshold,
		policy:      policy,
		policies:    make(map[rules.PlayerID]Policy),
		owners:      make(map[rules.CardID]rules.PlayerID),
		zones:       make(map[rules.CardID]rules.Zone),
		transitions: make(map[rules.CardID]int),
		ledger:      make(map[rules.CardID]map[rules.PlayerID]int),
		eliminated:  make(map[rules.PlayerID]bool),
		emit:        func(rules.Event) {},
	}
}

// SetEmitter installs the sink for commander events.
func (o *Overlay) SetEmitter(emit func(rules.Event)) {
	if emit == nil {
		emit = func(rules.Event) {}
	}
	o.emit = emit
}

// SetPolicy overrides the command zone policy for one player.
func (o *Overlay) SetPolicy(player rules.PlayerID, policy Policy) {
	o.policies[player] = policy
}

// PolicyFor returns the command zone policy in effect for the player.
func (o *Overlay) PolicyFor(player rules.PlayerID) Policy {
	if policy, ok := o.policies[player]; ok {
		return policy
	}
	return o.policy
}

// Threshold returns the commander damage that eliminates a player.
func (o *Overlay) Threshold() int {
	return o.threshold
}

// Register marks the card as a commander of owner, currently in zone.
func (o *Overlay) Register(owner rules.PlayerID, card rules.CardID, current rules.Zone) {
	o.owners[card] = owner
	o.zones[card] = current
}

// IsCommander reports whether the card is a registered commander.
func (o *Overlay) IsCommander(card rules.CardID) bool {
	_, ok := o.owners[card]
	return ok
}

// Commanders returns the player's commanders in ascending id order.
func (o *Overlay) Commanders(player rules.PlayerID) []rules.CardID {
	var out []rules.CardID
	for card, owner := range o.owners {
		if owner == player {
			out = append(out, card)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ZoneOf returns the zone the overlay last saw the commander in.
func (o *Overlay) ZoneOf(card rules.CardID) rules.Zone {
	return o.zones[card]
}

// Transitions returns how many times the commander was put into the command
// zone by the replacement.
func (o *Overlay) Transitions(card rules.CardID) int {
	return o.transitions[card]
}

// Tax returns the additional cost to cast the commander from the command
// zone. It is informational; mana is not modelled.
func (o *Overlay) Tax(card rules.CardID) int {
	return 2 * o.transitions[card]
}

// Damage returns the combat damage the commander dealt to the player.
func (o *Overlay) Damage(card rules.CardID, target rules.PlayerID) int {
	return o.ledger[card][target]
}

// ReplaceZoneChange answers the zone engine for a commander leaving a
// replaceable zone.
func (o *Overlay) ReplaceZoneChange(card *zone.Card, from, to rules.Zone) zone.Replacement {
	owner, ok := o.owners[card.ID]
	if !ok {
		return zone.ReplaceNone
	}
	switch o.PolicyFor(owner) {
	case PolicyAlways:
		o.recordTransition(card.ID, owner, from, to)
		return zone.ReplaceCommandZone
	case PolicyNever:
		return zone.ReplaceNone
	default:
		return zone.ReplaceDefer
	}
}

// Choose records the owner's answer to a deferred move and returns the
// destination to commit.
func (o *Overlay) Choose(card rules.CardID, from, to rules.Zone, toCommandZone bool) (rules.Zone, error) {
	owner, ok := o.owners[card]
	if !ok {
		return rules.ZoneNone, fmt.Errorf("%w: card %d is not a commander", rules.ErrInvalidAction, card)
	}
	if !toCommandZone {
		o.logger.Debug("commander kept original destination",
			zap.Int("card_id", int(card)),
			zap.String("owner", string(owner)),
			zap.String("to", to.String()),
		)
		return to, nil
	}
	o.recordTransition(card, owner, from, to)
	return rules.ZoneCommand, nil
}

func (o *Overlay) recordTransition(card rules.CardID, owner rules.PlayerID, from, to rules.Zone) {
	o.transitions[card]++
	evt := rules.NewEventWithAmount(rules.EventCommanderZoneChoice, owner, card, o.transitions[card])
	evt.FromZone = from
	evt.ToZone = to
	evt.Description = fmt.Sprintf("commander %d goes to the command zone instead of %s", card, to)
	o.emit(evt)
	o.logger.Debug("commander moved to command zone",
		zap.Int("card_id", int(card)),
		zap.String("owner", string(owner)),
		zap.Int("transitions", o.transitions[card]),
	)
}

// HandleEvent reacts to drained events: it follows commander zones, books
// commander combat damage and notes eliminations.
func (o *Overlay) HandleEvent(ev rules.Event) {
	switch ev.Type {
	case rules.EventZoneChange:
		if _, ok := o.owners[ev.Card]; ok {
			o.zones[ev.Card] = ev.ToZone
		}
	case rules.EventPlayerEliminated:
		o.eliminated[ev.Player] = true
	case rules.EventCombatDamage:
		if !ev.SourceIsCommander || ev.Target == "" || ev.Amount <= 0 {
			return
		}
		o.recordDamage(ev.Source, ev.Target, ev.Amount, ev.Turn)
	}
}

func (o *Overlay) recordDamage(card rules.CardID, target rules.PlayerID, amount, turn int) {
	if o.ledger[card] == nil {
		o.ledger[card] = make(map[rules.PlayerID]int)
	}
	o.ledger[card][target] += amount
	total := o.ledger[card][target]
	o.logger.Debug("commander damage",
		zap.Int("commander", int(card)),
		zap.String("target", string(target)),
		zap.Int("amount", amount),
		zap.Int("total", total),
	)
	if total < o.threshold || o.eliminated[target] {
		return
	}
	o.eliminated[target] = true
	evt := rules.Event{
		Type:     rules.EventPlayerEliminated,
		Category: rules.CategoryCommander,
		Turn:     turn,
		Player:   target,
		Source:   card,
		Amount:   total,
		Reason:   string(rules.EliminationCommanderDamage),
	}
	evt.Description = fmt.Sprintf("%s took %d commander damage from %d", target, total, card)
	o.emit(evt)
	o.logger.Info("player eliminated by commander damage",
		zap.String("player", string(target)),
		zap.Int("commander", int(card)),
		zap.Int("damage", total),
	)
}

// Data is the exported overlay state.
type Data struct {
	Threshold           int                                     `json:"threshold"`
	Policy              Policy                                  `json:"policy"`
	Policies            map[rules.PlayerID]Policy               `json:"policies,omitempty"`
	PlayerCommanders    map[rules.PlayerID][]rules.CardID       `json:"player_commanders"`
	CommanderZoneStatus map[rules.CardID]rules.Zone             `json:"commander_zone_status"`
	ZoneTransitionCount map[rules.CardID]int                    `json:"zone_transition_count,omitempty"`
	DamageLedger        map[rules.CardID]map[rules.PlayerID]int `json:"damage_ledger,omitempty"`
	Eliminated          []rules.PlayerID                        `json:"eliminated,omitempty"`
}

// Export copies the overlay state. Eliminated players are listed in the
// given seat order.
func (o *Overlay) Export(seats []rules.PlayerID) Data {
	data := Data{
		Threshold:           o.threshold,
		Policy:              o.policy,
		PlayerCommanders:    make(map[rules.PlayerID][]rules.CardID),
		CommanderZoneStatus: make(map[rules.CardID]rules.Zone, len(o.zones)),
	}
	if len(o.policies) > 0 {
		data.Policies = make(map[rules.PlayerID]Policy, len(o.policies))
		for player, policy := range o.policies {
			data.Policies[player] = policy
		}
	}
	for card, owner := range o.owners {
		data.PlayerCommanders[owner] = append(data.PlayerCommanders[owner], card)
		data.CommanderZoneStatus[card] = o.zones[card]
	}
	for owner := range data.PlayerCommanders {
		data.PlayerCommanders[owner] = o.Commanders(owner)
	}
	for card, count := range o.transitions {
		if data.ZoneTransitionCount == nil {
			data.ZoneTransitionCount = make(map[rules.CardID]int)
		}
		data.ZoneTransitionCount[card] = count
	}
	for card, targets := range o.ledger {
		if data.DamageLedger == nil {
			data.DamageLedger = make(map[rules.CardID]map[rules.PlayerID]int)
		}
		entry := make(map[rules.PlayerID]int, len(targets))
		for target, amount := range targets {
			entry[target] = amount
		}
		data.DamageLedger[card] = entry
	}
	for _, seat := range seats {
		if o.eliminated[seat] {
			data.Eliminated = append(data.Eliminated, seat)
		}
	}
	return data
}

// Import replaces the overlay state with data.
func (o *Overlay) Import(data Data) {
	threshold := data.Threshold
	if threshold <= 0 {
		threshold = DefaultDamageThreshold
	}
	restored := NewOverlay(threshold, data.Policy, o.logger)
	for player, policy := range data.Policies {
		restored.policies[player] = policy
	}
	for owner, cards := range data.PlayerCommanders {
		for _, card := range cards {
			restored.Register(owner, card, data.CommanderZoneStatus[card])
		}
	}
	for card, count := range data.ZoneTransitionCount {
		restored.transitions[card] = count
	}
	for card, targets := range data.DamageLedger {
		entry := make(map[rules.PlayerID]int, len(targets))
		for target, amount := range targets {
			entry[target] = amount
		}
		restored.ledger[card] = entry
	}
	for _, player := range data.Eliminated {
		restored.eliminated[player] = true
	}
	restored.emit = o.emit
	*o = *restored
}
