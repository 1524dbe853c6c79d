package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/rules"
)

func receive(t *testing.T, sub *Subscription) (rules.Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return rules.Event{}, false
	}
}

func TestHubRoutesByGame(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := hub.Subscribe("a")
	b := hub.Subscribe("b")
	require.NotNil(t, a)
	require.NotNil(t, b)

	hub.Publish(game.GameNotification{GameID: "b", Event: rules.Event{Seq: 1, Type: rules.EventTurnBegan}})
	hub.Publish(game.GameNotification{GameID: "a", Event: rules.Event{Seq: 7, Type: rules.EventMonarchChanged}})

	ev, ok := receive(t, a)
	require.True(t, ok)
	assert.Equal(t, uint64(7), ev.Seq)

	ev, ok = receive(t, b)
	require.True(t, ok)
	assert.Equal(t, rules.EventTurnBegan, ev.Type)

	hub.Unsubscribe(a)
	_, ok = receive(t, a)
	assert.False(t, ok, "unsubscribing closes the channel")
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	sub := hub.Subscribe("g")
	probe := hub.Subscribe("probe")
	require.NotNil(t, sub)
	require.NotNil(t, probe)
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish(game.GameNotification{GameID: "g", Event: rules.Event{Seq: uint64(i + 1)}})
	}
	// Notifications are delivered in order, so once the probe hears its
	// event every earlier one has been handled.
	hub.Publish(game.GameNotification{GameID: "probe", Event: rules.Event{Seq: 1}})
	_, ok := receive(t, probe)
	require.True(t, ok)

	// The buffered events drain, then the channel is closed.
	received := 0
	for {
		_, ok := receive(t, sub)
		if !ok {
			break
		}
		received++
	}
	assert.Equal(t, subscriberBuffer, received)
}

func TestHubStopClosesSubscribers(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	sub := hub.Subscribe("g")
	require.NotNil(t, sub)
	cancel()
	<-stopped

	_, ok := receive(t, sub)
	assert.False(t, ok)
	assert.Nil(t, hub.Subscribe("g"))
}

func TestEncodeEvent(t *testing.T) {
	ev := rules.Event{Seq: 3, Type: rules.EventPlayerEliminated, Player: "south", Reason: string(rules.EliminationCommanderDamage)}
	data, err := encodeEvent("g1", ev)
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, protojson.Unmarshal(data, &decoded))
	assert.Equal(t, "g1", decoded.Fields["game_id"].GetStringValue())
	event := decoded.Fields["event"].GetStructValue()
	require.NotNil(t, event)
	assert.Equal(t, float64(3), event.Fields["seq"].GetNumberValue())
	assert.Equal(t, "PLAYER_ELIMINATED", event.Fields["type"].GetStringValue())
	assert.Equal(t, "COMMANDER_DAMAGE", event.Fields["reason"].GetStringValue())
}
