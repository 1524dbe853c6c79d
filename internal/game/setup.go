package game

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/magefree/mage-commander/internal/game/commander"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// Settings are the per-match rule parameters.
type Settings struct {
	StartingLife             int              `json:"starting_life" yaml:"starting_life"`
	CommanderDamageThreshold int              `json:"commander_damage_threshold" yaml:"commander_damage_threshold"`
	OpeningHand              int              `json:"opening_hand" yaml:"opening_hand"`
	MaxHandSize              int              `json:"max_hand_size" yaml:"max_hand_size"`
	SkipFirstDraw            bool             `json:"skip_first_draw" yaml:"skip_first_draw"`
	ShuffleSeed              int64            `json:"shuffle_seed" yaml:"shuffle_seed"`
	CommandZonePolicy        commander.Policy `json:"command_zone_policy" yaml:"command_zone_policy"`
}

// DefaultSettings returns the Commander defaults.
func DefaultSettings() Settings {
	return Settings{
		StartingLife:             40,
		CommanderDamageThreshold: commander.DefaultDamageThreshold,
		OpeningHand:              7,
		MaxHandSize:              7,
		SkipFirstDraw:            true,
		CommandZonePolicy:        commander.PolicyAsk,
	}
}

// CardEntry is one library line of a setup file. Count repeats the card.
type CardEntry struct {
	zone.Characteristics `yaml:",inline"`
	Count                int `json:"count,omitempty" yaml:"count,omitempty"`
}

// PlayerSetup describes one seat: its commanders and its library, top first.
type PlayerSetup struct {
	ID                rules.PlayerID         `json:"id" yaml:"id"`
	Commanders        []zone.Characteristics `json:"commanders" yaml:"commanders"`
	Library           []CardEntry            `json:"library" yaml:"library"`
	CommandZonePolicy commander.Policy       `json:"command_zone_policy,omitempty" yaml:"command_zone_policy,omitempty"`
}

// Setup is a match description: seats in turn order.
type Setup struct {
	Shuffle bool          `json:"shuffle" yaml:"shuffle"`
	Players []PlayerSetup `json:"players" yaml:"players"`
}

// Seats returns the player ids in seat order.
func (s Setup) Seats() []rules.PlayerID {
	seats := make([]rules.PlayerID, 0, len(s.Players))
	for _, p := range s.Players {
		seats = append(seats, p.ID)
	}
	return seats
}

// Validate checks the seat list.
func (s Setup) Validate() error {
	if len(s.Players) < 2 {
		return fmt.Errorf("at least 2 players required, got %d", len(s.Players))
	}
	seen := make(map[rules.PlayerID]bool, len(s.Players))
	for i, p := range s.Players {
		if p.ID == "" {
			return fmt.Errorf("player %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate player id %q", p.ID)
		}
		seen[p.ID] = true
		if p.CommandZonePolicy != "" {
			if _, err := commander.ParsePolicy(string(p.CommandZonePolicy)); err != nil {
				return fmt.Errorf("player %s: %w", p.ID, err)
			}
		}
	}
	return nil
}

// ParseSetup decodes a YAML match description.
func ParseSetup(data []byte) (Setup, error) {
	var setup Setup
	if err := yaml.Unmarshal(data, &setup); err != nil {
		return Setup{}, fmt.Errorf("failed to parse setup: %w", err)
	}
	if err := setup.Validate(); err != nil {
		return Setup{}, err
	}
	return setup, nil
}

// LoadSetup reads a YAML match description from disk.
func LoadSetup(path string) (Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Setup{}, fmt.Errorf("failed to read setup %s: %w", path, err)
	}
	return ParseSetup(data)
}
