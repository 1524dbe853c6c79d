package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/store"
)

// SnapshotLister lists the stored snapshots of a game.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, gameID string) ([]store.SnapshotInfo, error)
}

// CreateGameRequest starts a game. Settings default to the server's rules.
type CreateGameRequest struct {
	Setup    game.Setup     `json:"setup"`
	Settings *game.Settings `json:"settings,omitempty"`
}

type CreateGameResponse struct {
	GameID   string        `json:"game_id"`
	Decision game.Decision `json:"decision"`
}

// SubmitResponse is the decision after an action. Warning carries the
// rejected part of a partially accepted block declaration.
type SubmitResponse struct {
	Decision game.Decision `json:"decision"`
	Warning  string        `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API serves the game manager over HTTP and websocket.
type API struct {
	manager   *game.Manager
	hub       *Hub
	snapshots SnapshotLister
	settings  game.Settings
	logger    *zap.Logger
}

// NewAPI creates the HTTP front of the manager. snapshots may be nil.
func NewAPI(manager *game.Manager, hub *Hub, snapshots SnapshotLister, settings game.Settings, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		manager:   manager,
		hub:       hub,
		snapshots: snapshots,
		settings:  settings,
		logger:    logger,
	}
}

// Handler returns the routed handler wrapped in recovery and request
// logging.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /games", a.createGame)
	mux.HandleFunc("GET /games", a.listGames)
	mux.HandleFunc("GET /games/{id}", a.decision)
	mux.HandleFunc("DELETE /games/{id}", a.removeGame)
	mux.HandleFunc("GET /games/{id}/state", a.state)
	mux.HandleFunc("POST /games/{id}/actions", a.submit)
	mux.HandleFunc("GET /games/{id}/events", a.events)
	mux.HandleFunc("GET /games/{id}/stream", a.stream)
	mux.HandleFunc("POST /games/{id}/rewind", a.rewind)
	mux.HandleFunc("POST /games/{id}/forward", a.forward)
	mux.HandleFunc("POST /games/{id}/load", a.load)
	mux.HandleFunc("GET /games/{id}/snapshots", a.listSnapshots)
	return recoverHTTP(a.logger, logHTTP(a.logger, mux))
}

func (a *API) createGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	settings := a.settings
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := req.Setup.Validate(); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	id, d, err := a.manager.Create(r.Context(), req.Setup, settings)
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusCreated, CreateGameResponse{GameID: id, Decision: d})
}

func (a *API) listGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"games": a.manager.List()})
}

func (a *API) decision(w http.ResponseWriter, r *http.Request) {
	d, err := a.manager.Decision(r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) removeGame(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.Remove(r.PathValue("id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) state(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.manager.Export(r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	var action game.Action
	if err := decodeBody(r, &action); err != nil {
		a.fail(w, err)
		return
	}
	d, err := a.manager.Submit(r.Context(), r.PathValue("id"), action)
	if !game.Accepted(err) {
		a.fail(w, err)
		return
	}
	resp := SubmitResponse{Decision: d}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) events(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			a.fail(w, fmt.Errorf("%w: since must be a sequence number", errBadRequest))
			return
		}
		since = v
	}
	events, err := a.manager.Events(r.PathValue("id"), since)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.manager.Decision(id); err != nil {
		a.fail(w, err)
		return
	}
	a.hub.serveWS(w, r, id)
}

func (a *API) rewind(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Turn int `json:"turn"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	d, err := a.manager.Rewind(r.PathValue("id"), req.Turn)
	if err != nil {
		a.fail(w, badIfUnclassified(err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) forward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actions int `json:"actions"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	d, applied, err := a.manager.StepForward(r.PathValue("id"), req.Actions)
	if err != nil {
		a.fail(w, badIfUnclassified(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decision": d, "applied": applied})
}

func (a *API) load(w http.ResponseWriter, r *http.Request) {
	d, err := a.manager.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		a.fail(w, fmt.Errorf("%w: no snapshot store configured", errBadRequest))
		return
	}
	infos, err := a.snapshots.ListSnapshots(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})
}

func (a *API) fail(w http.ResponseWriter, err error) {
	code, _ := errorCode(err)
	if code == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// badIfUnclassified treats replay navigation errors as caller mistakes.
func badIfUnclassified(err error) error {
	if code, _ := errorCode(err); code == http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return err
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	return h.Hijack()
}

func logHTTP(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func recoverHTTP(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in http handler",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
