package rules

import (
	"fmt"
	"strings"
)

// Zone is a place a card can be.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneLibrary
	ZoneHand
	ZoneBattlefield
	ZoneGraveyard
	ZoneStack
	ZoneExile
	ZoneCommand
)

var zoneNames = map[Zone]string{
	ZoneNone:        "NONE",
	ZoneLibrary:     "LIBRARY",
	ZoneHand:        "HAND",
	ZoneBattlefield: "BATTLEFIELD",
	ZoneGraveyard:   "GRAVEYARD",
	ZoneStack:       "STACK",
	ZoneExile:       "EXILE",
	ZoneCommand:     "COMMAND",
}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// Public reports whether cards in the zone are visible to every player.
func (z Zone) Public() bool {
	return z != ZoneLibrary && z != ZoneHand && z != ZoneNone
}

// ParseZone is the inverse of Zone.String.
func ParseZone(name string) (Zone, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for zone, zoneName := range zoneNames {
		if zoneName == upper {
			return zone, nil
		}
	}
	return ZoneNone, fmt.Errorf("unknown zone %q", name)
}

// MarshalText encodes the zone by name so snapshots stay readable.
func (z Zone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// UnmarshalText decodes a zone name.
func (z *Zone) UnmarshalText(text []byte) error {
	parsed, err := ParseZone(string(text))
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}
