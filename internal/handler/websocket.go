package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/cart"
	"github.com/vyrodovalexey/gamestore/internal/model"
	"github.com/vyrodovalexey/gamestore/internal/session"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// client is one connected view.
type client struct {
	conn   *websocket.Conn
	send   chan model.Event
	cancel context.CancelFunc
}

// WebSocketHandler streams cart, visibility and session changes to
// connected views. Every client first receives the current state.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	cart     *cart.Store
	session  *session.Store
	logger   *zap.Logger

	mu           sync.RWMutex
	clients      map[*websocket.Conn]*client
	lastRevision uint64

	unsubscribe []func()
}

// NewWebSocketHandler creates a new WebSocketHandler subscribed to the cart
// and session stores.
func NewWebSocketHandler(cartStore *cart.Store, sessionStore *session.Store, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		cart:    cartStore,
		session: sessionStore,
		logger:  logger,
		clients: make(map[*websocket.Conn]*client),
	}

	h.unsubscribe = []func(){
		cartStore.Subscribe(h.onCart),
		cartStore.SubscribeVisibility(h.onVisibility),
		sessionStore.Subscribe(h.onSession),
	}

	return h
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket handles WebSocket connection requests.
//
//nolint:contextcheck // WebSocket connections outlive the HTTP request context
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())

	c := &client{
		conn:   conn,
		send:   make(chan model.Event, sendBuffer),
		cancel: cancel,
	}

	snapshot := h.cart.Snapshot()
	visible := h.cart.Visible()
	c.send <- model.NewEvent(model.EventTypeCart, snapshot.Revision, model.NewCartState(snapshot.Items, visible))
	c.send <- model.NewEvent(model.EventTypeCartVisibility, 0, visible)
	c.send <- model.NewEvent(model.EventTypeSession, 0, h.sessionView(h.session.CurrentUser()))

	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	h.logger.Info("websocket client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go h.writePump(ctx, c)
	go h.readPump(ctx, c)
}

func (h *WebSocketHandler) sessionView(user *model.User) SessionView {
	return SessionView{Authenticated: user != nil, User: user}
}

func (h *WebSocketHandler) onCart(snapshot cart.Snapshot) {
	h.mu.Lock()
	if snapshot.Revision <= h.lastRevision {
		h.mu.Unlock()
		return
	}
	h.lastRevision = snapshot.Revision
	h.mu.Unlock()

	state := model.NewCartState(snapshot.Items, h.cart.Visible())
	h.broadcast(model.NewEvent(model.EventTypeCart, snapshot.Revision, state))
}

func (h *WebSocketHandler) onVisibility(visible bool) {
	h.broadcast(model.NewEvent(model.EventTypeCartVisibility, 0, visible))
}

func (h *WebSocketHandler) onSession(user *model.User) {
	h.broadcast(model.NewEvent(model.EventTypeSession, 0, h.sessionView(user)))
}

// broadcast queues event for every client. A client whose queue is full is
// disconnected.
func (h *WebSocketHandler) broadcast(event model.Event) {
	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- event:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", zap.String("remote_addr", c.conn.RemoteAddr().String()))
		c.cancel()
	}
}

// readPump handles incoming messages from the WebSocket connection.
func (h *WebSocketHandler) readPump(ctx context.Context, c *client) {
	defer func() {
		c.cancel()
		h.removeClient(c.conn)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			h.logger.Debug("received message", zap.ByteString("message", message))
		}
	}
}

// writePump sends queued events and keepalive pings.
func (h *WebSocketHandler) writePump(ctx context.Context, c *client) {
	pingTicker := time.NewTicker(pingPeriod)

	defer func() {
		pingTicker.Stop()
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(c.conn)
			return
		case event := <-c.send:
			if err := h.sendEvent(c.conn, event); err != nil {
				h.logger.Debug("failed to send event", zap.String("type", event.Type), zap.Error(err))
				c.cancel()
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(c.conn); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}

// sendEvent writes one event to the connection.
func (h *WebSocketHandler) sendEvent(conn *websocket.Conn, event model.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// sendPing sends a ping message to the connection.
func (h *WebSocketHandler) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// sendCloseMessage sends a close message to the connection.
func (h *WebSocketHandler) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient removes a client from the clients map.
func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.clients[conn]; exists {
		c.cancel()
		delete(h.clients, conn)
		h.logger.Info("websocket client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAllConnections stops listening to the stores and closes every
// connection with a close frame.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.Lock()
	unsubscribe := h.unsubscribe
	h.unsubscribe = nil
	clients := make([]*client, 0, len(h.clients))
	for conn, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}

	// Each writePump sends a close frame and closes its connection.
	for _, c := range clients {
		c.cancel()
	}

	h.logger.Info("all websocket connections closed")
}
