package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/counters"
	"github.com/magefree/mage-commander/internal/game/rules"
)

func TestExportImportRoundTrip(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	giantID := h.commanderOnBattlefield(alice)
	h.card(giantID).Counters.Add(counters.CounterTypeP1P1, 2)
	h.do(CastSpell(alice, h.inHand(alice, shock.Name), rules.PlayerTarget(bob)))

	original := h.game.Export()
	require.NoError(t, ValidateSerializationRoundtrip(original))

	encoded, err := original.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(encoded)
	require.NoError(t, err)

	imported, err := Import(decoded, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, imported.Check())
	assert.Equal(t, checksum(t, original), checksum(t, imported.Export()))
	assert.Equal(t, h.game.Decision(), imported.Decision())
	assert.Equal(t, h.game.StackItems(), imported.StackItems())
	importedGiant, ok := imported.Card(giantID)
	require.True(t, ok)
	assert.Equal(t, 2, importedGiant.Counters.Count(counters.CounterTypeP1P1))

	// Both games continue identically.
	for _, action := range []Action{PassPriority(bob), PassPriority(carol), PassPriority(alice)} {
		_, err := h.game.Submit(action)
		require.NoError(t, err)
		_, err = imported.Submit(action)
		require.NoError(t, err)
	}
	assert.Equal(t, 38, imported.Life(bob))
	assert.Equal(t, checksum(t, h.game.Export()), checksum(t, imported.Export()))
}

func TestExportUsesIndexReferences(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	data := h.game.Export()

	require.Len(t, data.Players, 3)
	assert.Equal(t, 0, data.ActivePlayer)
	require.Len(t, data.Zones.Hands, 3)
	for seat, hand := range data.Zones.Hands {
		for _, idx := range hand {
			card := data.Cards[idx]
			assert.Equal(t, seat, card.OwnerIndex)
			assert.Equal(t, rules.ZoneHand, card.Zone)
			assert.Equal(t, rules.ZoneHand, data.Zones.CardZoneMap[idx])
		}
	}
	for i := 1; i < len(data.Cards); i++ {
		assert.Less(t, data.Cards[i-1].ID, data.Cards[i].ID)
	}
}

func TestImportRejectsInconsistentSnapshots(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	logger := zaptest.NewLogger(t)

	t.Run("version", func(t *testing.T) {
		data, err := cloneState(h.game.Export())
		require.NoError(t, err)
		data.Version = 99
		_, err = Import(data, logger)
		assert.Error(t, err)
	})

	t.Run("card listed twice", func(t *testing.T) {
		data, err := cloneState(h.game.Export())
		require.NoError(t, err)
		data.Zones.Hands[0] = append(data.Zones.Hands[0], data.Zones.Hands[0][0])
		_, err = Import(data, logger)
		assert.Error(t, err)
	})

	t.Run("card in no zone", func(t *testing.T) {
		data, err := cloneState(h.game.Export())
		require.NoError(t, err)
		data.Zones.Libraries[2] = data.Zones.Libraries[2][1:]
		_, err = Import(data, logger)
		assert.Error(t, err)
	})

	t.Run("wrong owner", func(t *testing.T) {
		data, err := cloneState(h.game.Export())
		require.NoError(t, err)
		data.Zones.Hands[0], data.Zones.Hands[1] = data.Zones.Hands[1], data.Zones.Hands[0]
		_, err = Import(data, logger)
		assert.Error(t, err)
	})
}

func TestChecksumDetectsChanges(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	data := h.game.Export()
	sum, err := data.ComputeChecksum()
	require.NoError(t, err)

	ok, err := data.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.True(t, ok)

	data.Players[1].Life = 39
	ok, err = data.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = data.VerifyChecksum(nil)
	assert.Error(t, err)
}

func TestRestoreKeepsSubscribers(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	var published int
	h.game.Bus().Subscribe(func(rules.Event) { published++ })

	saved, err := cloneState(h.game.Export())
	require.NoError(t, err)
	seq := h.game.LastEventSeq()

	attacker := h.onBattlefield(alice, bears)
	h.attackWith(combat.Attack{Attacker: attacker, Defender: carol})
	require.Equal(t, 38, h.game.Life(carol))

	require.NoError(t, h.game.Restore(saved))
	require.NoError(t, h.game.Check())
	assert.Equal(t, 40, h.game.Life(carol))
	assert.Equal(t, seq, h.game.LastEventSeq())
	assert.Len(t, h.game.EventsSince(seq), 0)
	_, ok := h.game.Card(attacker)
	assert.False(t, ok, "cards created after the snapshot are gone")

	// A full round of passes changes the step, which publishes.
	before := published
	h.passAround()
	assert.Greater(t, published, before)
}
