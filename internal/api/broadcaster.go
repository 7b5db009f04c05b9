package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"warp-markets/internal/domain"
	"warp-markets/internal/observability"
)

// Broadcaster pushes ticker refreshes to connected websocket clients.
type Broadcaster struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	logger   *log.Logger
	metrics  *observability.Metrics
}

// NewBroadcaster creates a websocket broadcaster.
func NewBroadcaster(logger *log.Logger, metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
		metrics:  metrics,
	}
}

// BroadcastTickers sends the ticker set to every connected client.
// Clients that fail to receive are dropped.
func (b *Broadcaster) BroadcastTickers(tickers []domain.Ticker) {
	msg, err := json.Marshal(tickers)
	if err != nil {
		b.logger.Printf("marshal tickers: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Printf("websocket write: %v", err)
			c.Close()
			delete(b.clients, c)
		}
	}
	b.gauge()
}

// Handler returns an http.HandlerFunc accepting websocket connections.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Printf("websocket upgrade: %v", err)
			return
		}

		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.gauge()
		b.mu.Unlock()

		// Read loop keeps the connection alive and detects close.
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.gauge()
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// gauge updates the client count metric; callers hold b.mu.
func (b *Broadcaster) gauge() {
	if b.metrics != nil {
		b.metrics.WSClients.Set(float64(len(b.clients)))
	}
}
