package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/rules"
)

const subscriberBuffer = 256

var upgrader = websocket.Upgrader{
	// Event streams are read-only; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscription receives the events of one game.
type Subscription struct {
	gameID string
	send   chan rules.Event
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan rules.Event { return s.send }

// Hub fans game notifications out to the subscribers of each game. A
// subscriber that falls behind is dropped instead of stalling the game.
type Hub struct {
	logger     *zap.Logger
	clients    map[*Subscription]bool
	broadcast  chan game.GameNotification
	register   chan *Subscription
	unregister chan *Subscription
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*Subscription]bool),
		broadcast:  make(chan game.GameNotification, 1024),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		done:       make(chan struct{}),
	}
}

// Run delivers notifications until ctx is cancelled, then closes every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("subscriber registered", zap.String("game_id", client.gameID))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("subscriber unregistered", zap.String("game_id", client.gameID))
			}

		case n := <-h.broadcast:
			for client := range h.clients {
				if client.gameID != n.GameID {
					continue
				}
				select {
				case client.send <- n.Event:
				default:
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropping slow subscriber", zap.String("game_id", client.gameID))
				}
			}
		}
	}
}

// Publish queues a notification. It is the Manager's notification handler
// and never blocks the game.
func (h *Hub) Publish(n game.GameNotification) {
	select {
	case h.broadcast <- n:
	default:
		h.logger.Warn("event stream backlog full, dropping event",
			zap.String("game_id", n.GameID),
			zap.Uint64("seq", n.Event.Seq),
		)
	}
}

// Subscribe registers a subscription to the game. It returns nil once the
// hub has stopped.
func (h *Hub) Subscribe(gameID string) *Subscription {
	client := &Subscription{gameID: gameID, send: make(chan rules.Event, subscriberBuffer)}
	select {
	case h.register <- client:
		return client
	case <-h.done:
		return nil
	}
}

func (h *Hub) Unsubscribe(client *Subscription) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// eventStruct converts an event into a protobuf Struct tagged with its game.
func eventStruct(gameID string, ev rules.Event) (*structpb.Struct, error) {
	var fields map[string]any
	if err := toMap(ev, &fields); err != nil {
		return nil, fmt.Errorf("failed to convert event %d: %w", ev.Seq, err)
	}
	return structpb.NewStruct(map[string]any{
		"game_id": gameID,
		"event":   fields,
	})
}

// encodeEvent is the websocket frame of one event.
func encodeEvent(gameID string, ev rules.Event) ([]byte, error) {
	s, err := eventStruct(gameID, ev)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

func toMap(v any, out *map[string]any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// serveWS upgrades the request and streams the game's events until the
// peer goes away.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, gameID string) {
	// Subscribe before the handshake completes so no event published after
	// the client sees the upgrade is missed.
	client := h.Subscribe(gameID)
	if client == nil {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Unsubscribe(client)
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

// readPump discards inbound frames; it only notices the peer closing.
func (h *Hub) readPump(conn *websocket.Conn, client *Subscription) {
	defer func() {
		h.Unsubscribe(client)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *Subscription) {
	defer conn.Close()
	for ev := range client.send {
		message, err := encodeEvent(client.gameID, ev)
		if err != nil {
			h.logger.Warn("failed to encode event", zap.Error(err))
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
