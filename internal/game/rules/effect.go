package rules

// EffectKind is one entry of the generic effect vocabulary.
type EffectKind string

const (
	EffectNone EffectKind = ""
	// EffectPermanent puts the spell card onto the battlefield.
	EffectPermanent EffectKind = "PERMANENT"
	// EffectDamage deals Amount damage to each target.
	EffectDamage EffectKind = "DAMAGE"
	// EffectDestroy puts each target permanent into its owner's graveyard.
	EffectDestroy EffectKind = "DESTROY"
	// EffectExile exiles each target permanent.
	EffectExile EffectKind = "EXILE"
	// EffectBounce returns each target permanent to its owner's hand.
	EffectBounce EffectKind = "BOUNCE"
	// EffectCounter counters the target stack item, or the topmost other
	// item when there is no target.
	EffectCounter EffectKind = "COUNTER"
	// EffectDraw makes the controller draw Amount cards.
	EffectDraw EffectKind = "DRAW"
	// EffectGainLife gives the controller Amount life.
	EffectGainLife EffectKind = "GAIN_LIFE"
	// EffectPump gives each target creature +Amount/+Amount until end of turn.
	EffectPump EffectKind = "PUMP"
	// EffectAddCounters puts Amount counters of kind Counter on each target.
	EffectAddCounters EffectKind = "ADD_COUNTERS"
	// EffectBecomeMonarch makes the controller the monarch.
	EffectBecomeMonarch EffectKind = "BECOME_MONARCH"
	// EffectGrantKeyword gives each target creature Keyword until end of
	// combat.
	EffectGrantKeyword EffectKind = "GRANT_KEYWORD"
	// EffectCreateToken puts Amount Power/Toughness creature tokens named
	// Token onto the battlefield under the controller.
	EffectCreateToken EffectKind = "CREATE_TOKEN"
)

// TargetKind restricts what an effect may target.
type TargetKind string

const (
	TargetNone      TargetKind = ""
	TargetPlayer    TargetKind = "PLAYER"
	TargetCreature  TargetKind = "CREATURE"
	TargetPermanent TargetKind = "PERMANENT"
	TargetStackItem TargetKind = "STACK_ITEM"
	// TargetAny accepts a player or a creature.
	TargetAny TargetKind = "ANY"
)

// Effect is the payload a stack item carries to resolution.
type Effect struct {
	Kind       EffectKind `json:"kind" yaml:"kind"`
	Amount     int        `json:"amount,omitempty" yaml:"amount,omitempty"`
	Target     TargetKind `json:"target,omitempty" yaml:"target,omitempty"`
	MaxTargets int        `json:"max_targets,omitempty" yaml:"max_targets,omitempty"`
	Counter    string     `json:"counter,omitempty" yaml:"counter,omitempty"`
	Keyword    string     `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Token      string     `json:"token,omitempty" yaml:"token,omitempty"`
	Power      int        `json:"power,omitempty" yaml:"power,omitempty"`
	Toughness  int        `json:"toughness,omitempty" yaml:"toughness,omitempty"`
}

// TargetCount is the maximum number of targets the effect takes.
func (e Effect) TargetCount() int {
	if e.Target == TargetNone {
		return 0
	}
	if e.MaxTargets <= 0 {
		return 1
	}
	return e.MaxTargets
}

// Target references a player, a card on the battlefield or a stack item.
// Incarnation pins a card target to the object it was when chosen; a card
// that changed zones since is a new object.
type Target struct {
	Player      PlayerID    `json:"player,omitempty"`
	Card        CardID      `json:"card,omitempty"`
	Item        StackItemID `json:"item,omitempty"`
	Incarnation int         `json:"incarnation,omitempty"`
}

// PlayerTarget targets a player.
func PlayerTarget(player PlayerID) Target {
	return Target{Player: player}
}

// CardTarget targets a permanent.
func CardTarget(card CardID) Target {
	return Target{Card: card}
}

// ItemTarget targets a stack item.
func ItemTarget(item StackItemID) Target {
	return Target{Item: item}
}

// IsPlayer reports whether the target is a player.
func (t Target) IsPlayer() bool {
	return t.Player != ""
}

// IsItem reports whether the target is a stack item.
func (t Target) IsItem() bool {
	return t.Player == "" && t.Item != 0
}

// IsCard reports whether the target is a card.
func (t Target) IsCard() bool {
	return t.Player == "" && t.Item == 0 && t.Card != NoCard
}
