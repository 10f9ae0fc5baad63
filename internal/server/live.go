package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kristian206/agent-ascend-server/internal/season"
)

// FeedMessage is the envelope pushed to live feed subscribers.
type FeedMessage struct {
	Type    string            `json:"type"`
	Payload season.AwardEvent `json:"payload"`
}

type feedClient struct {
	send chan FeedMessage
}

// Hub fans award events out to connected dashboard clients. It implements
// season.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	metrics *Metrics
	logger  *slog.Logger
}

func NewHub(metrics *Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*feedClient]struct{}),
		metrics: metrics,
		logger:  logger,
	}
}

// PublishAward broadcasts to every subscriber. Slow clients drop messages
// rather than blocking the award path.
func (h *Hub) PublishAward(ev season.AwardEvent) {
	msg := FeedMessage{Type: "award", Payload: ev}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("ws accept", "err", err)
		return
	}

	client := &feedClient{send: make(chan FeedMessage, 64)}
	h.register(client)
	defer h.unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		// Drain inbound frames so pings are answered; the feed itself is
		// one-way.
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg := <-client.send:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				conn.Close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncrFeedClient()
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	h.metrics.DecrFeedClient()
}
