package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/config"
	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/server"
	"github.com/magefree/mage-commander/internal/store"
)

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// TestConfiguredServerStack wires the server the way cmd/server does: rules
// and store come from a config file, games are driven over HTTP.
func TestConfiguredServerStack(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snapshots.db")
	cfgPath := filepath.Join(dir, "commander.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
rules:
  starting_life: 30
commander:
  auto_command_zone: always
store:
  driver: sqlite
  dsn: %s
`, dbPath)), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	snapshots, err := store.Open(ctx, cfg.Store, logger)
	require.NoError(t, err)
	defer snapshots.Close()

	manager := game.NewManager(logger, game.WithSnapshotStore(snapshots))
	hub := server.NewHub(logger)
	manager.SetNotificationHandler(hub.Publish)
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go hub.Run(hubCtx)

	srv := httptest.NewServer(server.NewAPI(manager, hub, snapshots, cfg.Settings(), logger).Handler())
	defer srv.Close()

	var created server.CreateGameResponse
	require.Equal(t, http.StatusCreated, postJSON(t, srv.URL+"/games", server.CreateGameRequest{Setup: podSetup()}, &created))
	require.NotEmpty(t, created.GameID)
	gameURL := srv.URL + "/games/" + created.GameID

	var state game.GameStateData
	require.Equal(t, http.StatusOK, getJSON(t, gameURL+"/state", &state))
	for _, p := range state.Players {
		assert.Equal(t, 30, p.Life)
	}

	// Pass the whole first turn.
	d := created.Decision
	for d.Turn == 1 {
		var resp server.SubmitResponse
		var action game.Action
		switch d.Kind {
		case game.DecisionDeclareAttackers:
			action = game.DeclareAttackers(d.Player)
		default:
			action = game.PassPriority(d.Player)
		}
		require.Equal(t, http.StatusOK, postJSON(t, gameURL+"/actions", action, &resp))
		d = resp.Decision
	}
	assert.Equal(t, bob, d.Player)

	var listed struct {
		Snapshots []store.SnapshotInfo `json:"snapshots"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, gameURL+"/snapshots", &listed))
	require.Len(t, listed.Snapshots, 2)
	assert.Equal(t, 1, listed.Snapshots[0].Turn)
	assert.Equal(t, 2, listed.Snapshots[1].Turn)

	// An action from the wrong player is a conflict and changes nothing.
	var rejected map[string]string
	assert.Equal(t, http.StatusConflict, postJSON(t, gameURL+"/actions", game.PassPriority(carol), &rejected))
	assert.NotEmpty(t, rejected["error"])

	require.NoError(t, manager.Remove(created.GameID))
	var reloaded game.Decision
	require.Equal(t, http.StatusOK, postJSON(t, gameURL+"/load", struct{}{}, &reloaded))
	assert.Equal(t, d, reloaded)
}
