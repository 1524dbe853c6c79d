package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/zone"
	"github.com/magefree/mage-commander/internal/store"
)

func twoPlayerSetup() game.Setup {
	island := game.CardEntry{
		Characteristics: zone.Characteristics{Name: "Island", Types: []string{zone.TypeLand}},
		Count:           20,
	}
	return game.Setup{Players: []game.PlayerSetup{
		{ID: "north", Library: []game.CardEntry{island}},
		{ID: "south", Library: []game.CardEntry{island}},
	}}
}

type testServer struct {
	manager   *game.Manager
	hub       *Hub
	snapshots *store.Memory
	api       *API
	http      *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	snapshots := store.NewMemory()
	manager := game.NewManager(logger, game.WithSnapshotStore(snapshots))
	hub := NewHub(logger)
	manager.SetNotificationHandler(hub.Publish)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	api := NewAPI(manager, hub, snapshots, game.DefaultSettings(), logger)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testServer{manager: manager, hub: hub, snapshots: snapshots, api: api, http: srv}
}
