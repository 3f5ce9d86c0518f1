package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-store/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

type subscriber struct {
	remoteAddr string
	send       chan model.StockEvent
	cancel     context.CancelFunc
}

// StockFeed pushes stock events to WebSocket subscribers.
type StockFeed struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*subscriber
}

// NewStockFeed creates a new StockFeed instance.
func NewStockFeed(logger *zap.Logger) *StockFeed {
	return &StockFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]*subscriber),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (f *StockFeed) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", f.HandleWebSocket).Methods(http.MethodGet)
}

// Publish queues event for every subscriber. A subscriber whose buffer is
// full misses the event.
func (f *StockFeed) Publish(event model.StockEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.clients {
		select {
		case sub.send <- event:
		default:
			f.logger.Warn("stock feed subscriber lagging, event dropped",
				zap.String("remote_addr", sub.remoteAddr),
				zap.String("event_id", event.ID),
			)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (f *StockFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.clients)
}

// HandleWebSocket upgrades the request and subscribes the connection.
//
//nolint:contextcheck // WebSocket connections outlive the HTTP request context
func (f *StockFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		remoteAddr: conn.RemoteAddr().String(),
		send:       make(chan model.StockEvent, sendBuffer),
		cancel:     cancel,
	}

	f.mu.Lock()
	f.clients[conn] = sub
	f.mu.Unlock()

	f.logger.Info("stock feed subscriber connected", zap.String("remote_addr", sub.remoteAddr))

	go f.writePump(ctx, conn, sub)
	go f.readPump(ctx, conn, cancel)
}

// readPump drains incoming frames so pongs and close frames are processed.
func (f *StockFeed) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		f.removeClient(conn)
		if err := conn.Close(); err != nil {
			f.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		f.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					f.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			f.logger.Debug("received message", zap.ByteString("message", message))
		}
	}
}

// writePump forwards queued events and keeps the connection alive with pings.
func (f *StockFeed) writePump(ctx context.Context, conn *websocket.Conn, sub *subscriber) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.sendCloseMessage(conn)
			return
		case event := <-sub.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				f.logger.Debug("failed to send stock event", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (f *StockFeed) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		f.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		f.logger.Debug("failed to send close message", zap.Error(err))
	}
}

func (f *StockFeed) removeClient(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sub, exists := f.clients[conn]; exists {
		sub.cancel()
		delete(f.clients, conn)
		f.logger.Info("stock feed subscriber disconnected", zap.String("remote_addr", sub.remoteAddr))
	}
}

// CloseAllConnections closes all active WebSocket connections.
func (f *StockFeed) CloseAllConnections() {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.clients))
	for _, sub := range f.clients {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	// Cancelling makes each writePump send its close frame.
	for _, sub := range subs {
		sub.cancel()
	}

	time.Sleep(100 * time.Millisecond)

	f.mu.Lock()
	for conn := range f.clients {
		if err := conn.Close(); err != nil {
			f.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(f.clients, conn)
	}
	f.mu.Unlock()

	f.logger.Info("all stock feed connections closed")
}
