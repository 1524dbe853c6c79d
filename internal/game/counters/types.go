package counters

// CounterType represents a kind of counter.
type CounterType string

const (
	// Power/toughness boost counters
	CounterTypeP1P1 CounterType = "+1/+1"
	CounterTypeM1M1 CounterType = "-1/-1"
	CounterTypeP2P2 CounterType = "+2/+2"
	CounterTypeP1P0 CounterType = "+1/+0"
	CounterTypeP0P1 CounterType = "+0/+1"

	CounterTypeLoyalty CounterType = "loyalty"
	CounterTypeCharge  CounterType = "charge"
	CounterTypeTime    CounterType = "time"
	CounterTypeShield  CounterType = "shield"
	CounterTypeStun    CounterType = "stun"
)

// String returns the string representation of the counter type.
func (ct CounterType) String() string {
	return string(ct)
}

// IsBoost reports whether the counter changes power or toughness.
func (ct CounterType) IsBoost() bool {
	_, _, ok := ParseBoost(string(ct))
	return ok
}
