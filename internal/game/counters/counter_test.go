package counters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersAddRemove(t *testing.T) {
	cs := NewCounters()
	cs.Add(CounterTypeCharge, 2)
	cs.Add(CounterTypeCharge, 1)
	cs.Add(CounterTypeStun, 0)

	assert.Equal(t, 3, cs.Count(CounterTypeCharge))
	assert.False(t, cs.Has(CounterTypeStun))

	assert.True(t, cs.Remove(CounterTypeCharge, 5))
	assert.False(t, cs.Has(CounterTypeCharge))
	assert.False(t, cs.Remove(CounterTypeCharge, 1))
	assert.Nil(t, cs.Map())
}

func TestCountersBoost(t *testing.T) {
	cs := NewCounters()
	cs.Add(CounterTypeP1P1, 3)
	cs.Add(CounterTypeM1M1, 1)
	cs.Add(CounterTypeP1P0, 2)
	cs.Add(CounterTypeLoyalty, 4)

	power, toughness := cs.Boost()
	assert.Equal(t, 4, power)
	assert.Equal(t, 2, toughness)
}

func TestParseBoost(t *testing.T) {
	cases := []struct {
		name      string
		power     int
		toughness int
		ok        bool
	}{
		{"+1/+1", 1, 1, true},
		{"-1/-1", -1, -1, true},
		{"+2/+0", 2, 0, true},
		{"+10/-3", 10, -3, true},
		{"loyalty", 0, 0, false},
		{"1/1", 0, 0, false},
		{"+x/+1", 0, 0, false},
	}
	for _, tc := range cases {
		power, toughness, ok := ParseBoost(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.power, power, tc.name)
		assert.Equal(t, tc.toughness, toughness, tc.name)
	}
}

func TestCountersCopyAndKinds(t *testing.T) {
	cs := FromMap(map[string]int{"time": 2, "charge": 1, "stun": 0})
	dup := cs.Copy()
	dup.Add(CounterTypeTime, 1)

	assert.Equal(t, 2, cs.Count(CounterTypeTime))
	assert.Equal(t, 3, dup.Count(CounterTypeTime))
	assert.Equal(t, []CounterType{"charge", "time"}, cs.Kinds())
	assert.Equal(t, 3, cs.Total())
}
