package zone

import (
	"strings"

	"github.com/magefree/mage-commander/internal/game/counters"
	"github.com/magefree/mage-commander/internal/game/rules"
)

// Keyword is a combat keyword the engine understands.
type Keyword string

const (
	KeywordFlying       Keyword = "FLYING"
	KeywordReach        Keyword = "REACH"
	KeywordVigilance    Keyword = "VIGILANCE"
	KeywordTrample      Keyword = "TRAMPLE"
	KeywordFirstStrike  Keyword = "FIRST_STRIKE"
	KeywordDoubleStrike Keyword = "DOUBLE_STRIKE"
	KeywordDeathtouch   Keyword = "DEATHTOUCH"
	KeywordDefender     Keyword = "DEFENDER"
	KeywordHaste        Keyword = "HASTE"
)

// Card types the engine looks at.
const (
	TypeCreature     = "Creature"
	TypeLand         = "Land"
	TypeInstant      = "Instant"
	TypeSorcery      = "Sorcery"
	TypeArtifact     = "Artifact"
	TypeEnchantment  = "Enchantment"
	TypePlaneswalker = "Planeswalker"
)

// Ability is an activated ability printed on a permanent.
type Ability struct {
	Effect      rules.Effect `json:"effect" yaml:"effect"`
	TapCost     bool         `json:"tap_cost,omitempty" yaml:"tap_cost,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// TriggerSpec is a triggered ability printed on a permanent. It fires on
// events of type On whose subject or source is the permanent itself; zone
// change triggers fire only when the permanent enters the battlefield.
type TriggerSpec struct {
	On          rules.EventType `json:"on" yaml:"on"`
	Effect      rules.Effect    `json:"effect" yaml:"effect"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// Characteristics are the printed, immutable properties of a card.
type Characteristics struct {
	Name        string        `json:"name" yaml:"name"`
	ManaCost    string        `json:"mana_cost,omitempty" yaml:"mana_cost,omitempty"`
	Types       []string      `json:"types" yaml:"types"`
	Subtypes    []string      `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`
	Power       int           `json:"power,omitempty" yaml:"power,omitempty"`
	Toughness   int           `json:"toughness,omitempty" yaml:"toughness,omitempty"`
	Keywords    []Keyword     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	MinBlockers int           `json:"min_blockers,omitempty" yaml:"min_blockers,omitempty"`
	Spell       rules.Effect  `json:"spell,omitempty" yaml:"spell,omitempty"`
	Abilities   []Ability     `json:"abilities,omitempty" yaml:"abilities,omitempty"`
	Triggers    []TriggerSpec `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// HasType reports whether the card has the type, ignoring case.
func (c Characteristics) HasType(cardType string) bool {
	for _, t := range c.Types {
		if strings.EqualFold(t, cardType) {
			return true
		}
	}
	return false
}

// HasKeyword reports whether the keyword is printed on the card.
func (c Characteristics) HasKeyword(keyword Keyword) bool {
	for _, k := range c.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// IsCreature reports whether the card is a creature.
func (c Characteristics) IsCreature() bool { return c.HasType(TypeCreature) }

// IsLand reports whether the card is a land.
func (c Characteristics) IsLand() bool { return c.HasType(TypeLand) }

// IsInstant reports whether the card can be cast at instant speed.
func (c Characteristics) IsInstant() bool { return c.HasType(TypeInstant) }

// IsPermanent reports whether the card resolves onto the battlefield.
func (c Characteristics) IsPermanent() bool {
	return !c.HasType(TypeInstant) && !c.HasType(TypeSorcery)
}

// TypeLine joins the types the way card_type is exported.
func (c Characteristics) TypeLine() string {
	return strings.Join(c.Types, " ")
}

// Permanent holds the state a card has only while on the battlefield.
type Permanent struct {
	Controller        rules.PlayerID `json:"controller"`
	PowerModifier     int            `json:"power_modifier,omitempty"`
	ToughnessModifier int            `json:"toughness_modifier,omitempty"`
	Damage            int            `json:"damage,omitempty"`
	DeathtouchDamage  bool           `json:"deathtouch_damage,omitempty"`
	Token             bool           `json:"token,omitempty"`
	SummoningSick     bool           `json:"summoning_sick,omitempty"`
	CombatKeywords    []Keyword      `json:"combat_keywords,omitempty"`
}

// Card is a physical card (or token) and its per-zone state.
type Card struct {
	ID              rules.CardID
	Owner           rules.PlayerID
	Zone            rules.Zone
	Tapped          bool
	Counters        *counters.Counters
	Characteristics Characteristics
	Commander       bool
	// Incarnation increases on every zone change; a card that changed zones
	// is a new object for targeting.
	Incarnation int
	Permanent   *Permanent
}

// NewCard creates a card in no zone yet.
func NewCard(id rules.CardID, owner rules.PlayerID, chars Characteristics) *Card {
	return &Card{
		ID:              id,
		Owner:           owner,
		Counters:        counters.NewCounters(),
		Characteristics: chars,
	}
}

// Name returns the printed name.
func (c *Card) Name() string {
	return c.Characteristics.Name
}

// Controller returns the permanent's controller, or the owner off the
// battlefield.
func (c *Card) Controller() rules.PlayerID {
	if c.Permanent != nil && c.Permanent.Controller != "" {
		return c.Permanent.Controller
	}
	return c.Owner
}

// IsCreature reports whether the card is a creature.
func (c *Card) IsCreature() bool {
	return c.Characteristics.IsCreature()
}

// Power returns the current power including counters and modifiers.
func (c *Card) Power() int {
	power := c.Characteristics.Power
	if c.Counters != nil {
		boost, _ := c.Counters.Boost()
		power += boost
	}
	if c.Permanent != nil {
		power += c.Permanent.PowerModifier
	}
	return power
}

// Toughness returns the current toughness including counters and modifiers.
func (c *Card) Toughness() int {
	toughness := c.Characteristics.Toughness
	if c.Counters != nil {
		_, boost := c.Counters.Boost()
		toughness += boost
	}
	if c.Permanent != nil {
		toughness += c.Permanent.ToughnessModifier
	}
	return toughness
}

// HasKeyword checks printed keywords and keywords granted until end of combat.
func (c *Card) HasKeyword(keyword Keyword) bool {
	if c.Characteristics.HasKeyword(keyword) {
		return true
	}
	if c.Permanent != nil {
		for _, k := range c.Permanent.CombatKeywords {
			if k == keyword {
				return true
			}
		}
	}
	return false
}

// HasLethalDamage reports whether marked damage destroys the creature.
func (c *Card) HasLethalDamage() bool {
	if c.Permanent == nil || !c.IsCreature() {
		return false
	}
	if c.Permanent.Damage <= 0 {
		return false
	}
	return c.Permanent.DeathtouchDamage || c.Permanent.Damage >= c.Toughness()
}

// CanAttackOrTap reports whether summoning sickness allows attacking or
// paying a tap cost.
func (c *Card) CanAttackOrTap() bool {
	if c.Permanent == nil {
		return false
	}
	return !c.Permanent.SummoningSick || !c.IsCreature() || c.HasKeyword(KeywordHaste)
}
