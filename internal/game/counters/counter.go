package counters

import (
	"sort"
	"strconv"
	"strings"
)

// Counters is the set of counters on a card, keyed by counter kind.
// The zero value is not usable; use NewCounters.
type Counters struct {
	counts map[CounterType]int
}

// NewCounters creates an empty collection.
func NewCounters() *Counters {
	return &Counters{counts: make(map[CounterType]int)}
}

// FromMap builds a collection from a kind→count map, dropping
// non-positive counts.
func FromMap(m map[string]int) *Counters {
	cs := NewCounters()
	for name, count := range m {
		cs.Add(CounterType(name), count)
	}
	return cs
}

// Add puts amount counters of the given kind on the card.
func (cs *Counters) Add(kind CounterType, amount int) {
	if amount <= 0 || kind == "" {
		return
	}
	cs.counts[kind] += amount
}

// Remove takes up to amount counters of the kind off the card and reports
// whether any were removed.
func (cs *Counters) Remove(kind CounterType, amount int) bool {
	current := cs.counts[kind]
	if amount <= 0 || current == 0 {
		return false
	}
	if amount >= current {
		delete(cs.counts, kind)
	} else {
		cs.counts[kind] = current - amount
	}
	return true
}

// Count returns the number of counters of the kind.
func (cs *Counters) Count(kind CounterType) int {
	return cs.counts[kind]
}

// Has returns true if there are any counters of the kind.
func (cs *Counters) Has(kind CounterType) bool {
	return cs.counts[kind] > 0
}

// Total returns the total number of all counters.
func (cs *Counters) Total() int {
	total := 0
	for _, count := range cs.counts {
		total += count
	}
	return total
}

// Kinds returns the kinds present, sorted by name.
func (cs *Counters) Kinds() []CounterType {
	kinds := make([]CounterType, 0, len(cs.counts))
	for kind := range cs.counts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Map returns a copy keyed by kind name, or nil when empty.
func (cs *Counters) Map() map[string]int {
	if len(cs.counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(cs.counts))
	for kind, count := range cs.counts {
		out[string(kind)] = count
	}
	return out
}

// Clear removes every counter.
func (cs *Counters) Clear() {
	cs.counts = make(map[CounterType]int)
}

// Copy creates a deep copy of the collection.
func (cs *Counters) Copy() *Counters {
	out := NewCounters()
	for kind, count := range cs.counts {
		out.counts[kind] = count
	}
	return out
}

// Boost sums the power/toughness change of every boost counter
// ("+1/+1", "-1/-1", "+2/+0", ...).
func (cs *Counters) Boost() (power, toughness int) {
	for kind, count := range cs.counts {
		p, t, ok := ParseBoost(string(kind))
		if !ok {
			continue
		}
		power += p * count
		toughness += t * count
	}
	return power, toughness
}

// ParseBoost parses a boost counter name such as "+1/+1" into its deltas.
func ParseBoost(name string) (power, toughness int, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	power, ok = parseBoostValue(parts[0])
	if !ok {
		return 0, 0, false
	}
	toughness, ok = parseBoostValue(parts[1])
	if !ok {
		return 0, 0, false
	}
	return power, toughness, true
}

func parseBoostValue(s string) (int, bool) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}
	value, err := strconv.Atoi(s[1:])
	if err != nil || value < 0 {
		return 0, false
	}
	if s[0] == '-' {
		value = -value
	}
	return value, true
}
