// Package websocket pushes live-reload notifications to browsers viewing a
// page served by brick.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/brick/internal/logging"
)

const (
	pingInterval = 54 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketManager owns the browser connections and broadcasts updates to
// them.
//
// A hub goroutine serializes registration, removal and broadcast; each
// client gets a read and a write pump.
type WebSocketManager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	hubDone      chan struct{}
}

// NewWebSocketManager creates a manager and starts its hub.
func NewWebSocketManager(originValidator OriginValidator, logger logging.Logger) *WebSocketManager {
	if originValidator == nil {
		originValidator = AllowedOrigins{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	manager := &WebSocketManager{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		logger:          logger.WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
		hubDone:         make(chan struct{}),
	}

	go manager.runHub()
	return manager
}

// HandleWebSocket upgrades the request and registers the client.
func (wm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if wm.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if !wm.validateWebSocketRequest(r) {
		wm.logger.Warn(r.Context(), nil, "websocket connection rejected",
			"origin", r.Header.Get("Origin"),
			"remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins are checked above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		wm.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:         conn,
		send:         make(chan []byte, 256),
		lastActivity: time.Now(),
	}

	select {
	case wm.register <- client:
	case <-wm.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}

	go wm.handleClient(client)
}

// validateWebSocketRequest accepts same-host requests and listed origins.
func (wm *WebSocketManager) validateWebSocketRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	return wm.originValidator.IsAllowedOrigin(origin)
}

func (wm *WebSocketManager) runHub() {
	defer close(wm.hubDone)

	for {
		select {
		case client := <-wm.register:
			wm.registerClient(client)

		case conn := <-wm.unregister:
			wm.unregisterClient(conn)

		case message := <-wm.broadcast:
			wm.broadcastToClients(message)

		case <-wm.ctx.Done():
			wm.closeAll()
			return
		}
	}
}

func (wm *WebSocketManager) registerClient(client *Client) {
	wm.clientsMutex.Lock()
	wm.clients[client.conn] = client
	count := len(wm.clients)
	wm.clientsMutex.Unlock()

	wm.logger.Debug(wm.ctx, "websocket client connected", "clients", count)
}

func (wm *WebSocketManager) unregisterClient(conn *websocket.Conn) {
	wm.clientsMutex.Lock()
	client, exists := wm.clients[conn]
	if exists {
		delete(wm.clients, conn)
		close(client.send)
	}
	count := len(wm.clients)
	wm.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		wm.logger.Debug(wm.ctx, "websocket client disconnected", "clients", count)
	}
}

func (wm *WebSocketManager) closeAll() {
	wm.clientsMutex.Lock()
	clients := wm.clients
	wm.clients = make(map[*websocket.Conn]*Client)
	wm.clientsMutex.Unlock()

	for conn, client := range clients {
		close(client.send)
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
	}
}

// broadcastToClients queues message on every client. Clients whose buffer
// is full are dropped.
func (wm *WebSocketManager) broadcastToClients(message []byte) {
	wm.clientsMutex.RLock()
	var stalled []*websocket.Conn
	for conn, client := range wm.clients {
		select {
		case client.send <- message:
		default:
			stalled = append(stalled, conn)
		}
	}
	wm.clientsMutex.RUnlock()

	for _, conn := range stalled {
		wm.unregisterClient(conn)
	}
}

func (wm *WebSocketManager) handleClient(client *Client) {
	go wm.writeToClient(client)
	wm.readFromClient(client)

	select {
	case wm.unregister <- client.conn:
	case <-wm.ctx.Done():
	}
}

// readFromClient drains client messages until the connection fails. The
// protocol is one way; anything the browser sends only counts as activity.
func (wm *WebSocketManager) readFromClient(client *Client) {
	for {
		ctx, cancel := context.WithTimeout(wm.ctx, readTimeout)
		_, _, err := client.conn.Read(ctx)
		cancel()

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway &&
				wm.ctx.Err() == nil {
				wm.logger.Debug(wm.ctx, "websocket read ended", "error", err.Error())
			}
			return
		}
		client.lastActivity = time.Now()
	}
}

func (wm *WebSocketManager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(wm.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wm.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-wm.ctx.Done():
			return
		}
	}
}

// Broadcast queues msg for every connected client.
func (wm *WebSocketManager) Broadcast(msg UpdateMessage) error {
	if err := wm.ctx.Err(); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case wm.broadcast <- data:
		return nil
	case <-wm.ctx.Done():
		return wm.ctx.Err()
	}
}

// BroadcastReload tells every browser to reload.
func (wm *WebSocketManager) BroadcastReload(target string) error {
	return wm.Broadcast(UpdateMessage{Type: MessageReload, Target: target})
}

// ClientCount returns the number of connected clients.
func (wm *WebSocketManager) ClientCount() int {
	wm.clientsMutex.RLock()
	defer wm.clientsMutex.RUnlock()
	return len(wm.clients)
}

// Shutdown closes every connection and stops the hub. It waits for the hub
// until ctx is done.
func (wm *WebSocketManager) Shutdown(ctx context.Context) error {
	wm.shutdownOnce.Do(wm.cancel)

	select {
	case <-wm.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
