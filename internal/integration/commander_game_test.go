package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
	"github.com/magefree/mage-commander/internal/store"
)

const (
	alice rules.PlayerID = "alice"
	bob   rules.PlayerID = "bob"
	carol rules.PlayerID = "carol"
)

var (
	forest = zone.Characteristics{Name: "Forest", Types: []string{zone.TypeLand}}
	giant  = zone.Characteristics{Name: "Craterhoof Giant", Types: []string{zone.TypeCreature}, Power: 12, Toughness: 12}
)

func podSetup() game.Setup {
	library := []game.CardEntry{{Characteristics: forest, Count: 30}}
	return game.Setup{Players: []game.PlayerSetup{
		{ID: alice, Commanders: []zone.Characteristics{giant}, Library: library},
		{ID: bob, Library: library},
		{ID: carol, Library: library},
	}}
}

// advance answers every decision with the do-nothing choice until stop
// reports true.
func advance(t *testing.T, m *game.Manager, id string, stop func(game.Decision) bool) game.Decision {
	t.Helper()
	ctx := context.Background()
	d, err := m.Decision(id)
	require.NoError(t, err)
	for i := 0; !stop(d); i++ {
		require.Less(t, i, 5000, "decision never reached")
		var action game.Action
		switch d.Kind {
		case game.DecisionPriority:
			action = game.PassPriority(d.Player)
		case game.DecisionDeclareAttackers:
			action = game.DeclareAttackers(d.Player)
		case game.DecisionDeclareBlockers:
			action = game.DeclareBlockers(d.Player)
		default:
			t.Fatalf("cannot answer %s", d)
		}
		d, err = m.Submit(ctx, id, action)
		require.NoError(t, err)
	}
	return d
}

func attackersDecision(turn int) func(game.Decision) bool {
	return func(d game.Decision) bool {
		return d.Kind == game.DecisionDeclareAttackers && d.Turn == turn
	}
}

func TestCommanderDamageGamePersistsAndReplays(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	dbPath := filepath.Join(t.TempDir(), "games.db")
	replayDir := t.TempDir()

	snapshots, err := store.OpenSQLite(dbPath, logger)
	require.NoError(t, err)
	m := game.NewManager(logger, game.WithSnapshotStore(snapshots), game.WithReplayDir(replayDir))

	var eliminated []rules.Event
	m.SetNotificationHandler(func(n game.GameNotification) {
		if n.Event.Type == rules.EventPlayerEliminated {
			eliminated = append(eliminated, n.Event)
		}
	})

	id, _, err := m.Create(ctx, podSetup(), game.DefaultSettings())
	require.NoError(t, err)

	// Cast the commander from the command zone and let it resolve.
	d := advance(t, m, id, func(d game.Decision) bool {
		return d.Kind == game.DecisionPriority && d.Step == rules.StepMain1.String()
	})
	require.Equal(t, alice, d.Player)
	state, err := m.Export(id)
	require.NoError(t, err)
	require.Len(t, state.Zones.CommandZone, 1)
	giantID := state.Cards[state.Zones.CommandZone[0]].ID

	_, err = m.Submit(ctx, id, game.CastSpell(alice, giantID))
	require.NoError(t, err)
	advance(t, m, id, func(game.Decision) bool {
		s, err := m.Export(id)
		require.NoError(t, err)
		return len(s.Zones.Stack) == 0
	})
	state, err = m.Export(id)
	require.NoError(t, err)
	for _, card := range state.Cards {
		if card.ID == giantID {
			assert.Equal(t, rules.ZoneBattlefield, card.Zone)
		}
	}

	for _, turn := range []int{4, 7} {
		d = advance(t, m, id, attackersDecision(turn))
		require.Equal(t, alice, d.Player)
		_, err = m.Submit(ctx, id, game.DeclareAttackers(alice, combat.Attack{Attacker: giantID, Defender: bob}))
		require.NoError(t, err)
		d = advance(t, m, id, func(d game.Decision) bool {
			return d.Step == rules.StepEndCombat.String()
		})
	}

	require.Len(t, eliminated, 1)
	assert.Equal(t, bob, eliminated[0].Player)
	assert.Equal(t, string(rules.EliminationCommanderDamage), eliminated[0].Reason)

	d, err = m.Submit(ctx, id, game.Concede(carol))
	require.NoError(t, err)
	require.Equal(t, game.DecisionGameOver, d.Kind)
	assert.Equal(t, alice, d.Winner)

	final, err := m.Export(id)
	require.NoError(t, err)
	finalSum, err := final.ComputeChecksum()
	require.NoError(t, err)

	infos, err := snapshots.ListSnapshots(ctx, id)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(infos), 7)
	assert.Equal(t, finalSum.Hash, infos[len(infos)-1].Checksum)
	require.NoError(t, snapshots.Close())

	t.Run("reload from a fresh process", func(t *testing.T) {
		reopened, err := store.OpenSQLite(dbPath, logger)
		require.NoError(t, err)
		defer reopened.Close()

		fresh := game.NewManager(logger, game.WithSnapshotStore(reopened))
		d, err := fresh.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, game.DecisionGameOver, d.Kind)
		assert.Equal(t, alice, d.Winner)

		loaded, err := fresh.Export(id)
		require.NoError(t, err)
		ok, err := loaded.VerifyChecksum(finalSum)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("replay file reproduces the game", func(t *testing.T) {
		replay, err := game.LoadReplayFromFile(replayDir, id)
		require.NoError(t, err)
		recorder, err := game.NewRecorderFromReplay(replay, logger)
		require.NoError(t, err)

		applied, err := recorder.StepForward(replay.ActionCount())
		require.NoError(t, err)
		assert.Equal(t, replay.ActionCount(), applied)
		assert.True(t, recorder.Game().Over())

		ok, err := recorder.Game().Export().VerifyChecksum(finalSum)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
