package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/shopping"
	"github.com/robsonsouzans/listans/internal/store"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketHandler streams list summaries to connected clients. Each client
// subscribes to one list and receives a fresh summary after every mutation.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	service  *shopping.Service
	sessions *auth.SessionRegistry
	store    store.Store
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]context.CancelFunc
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(service *shopping.Service, sessions *auth.SessionRegistry, st store.Store, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		service:  service,
		sessions: sessions,
		store:    st,
		logger:   logger,
		clients:  make(map[*websocket.Conn]context.CancelFunc),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket handles GET /ws?list_id=...&token=... requests. The session
// token travels in the query string because browser WebSocket clients cannot
// set an Authorization header.
//
//nolint:contextcheck // intentional: WebSocket connections outlive the HTTP request context
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(r)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return
	}

	listID := r.URL.Query().Get("list_id")
	if listID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "list_id is required")
		return
	}
	if !h.authorize(r, user, listID) {
		writeError(w, h.logger, http.StatusForbidden, "no access to this list")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// Use background context instead of request context because the HTTP
	// request context gets canceled when the handler returns, but WebSocket
	// connections need to persist beyond the initial HTTP upgrade.
	ctx, cancel := context.WithCancel(context.Background())

	h.mu.Lock()
	h.clients[conn] = cancel
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.String("user_id", user.ID),
		zap.String("list_id", listID),
	)

	updates, unsubscribe := h.service.Subscribe(listID)

	go h.writePump(ctx, conn, listID, updates, unsubscribe)
	go h.readPump(ctx, conn, cancel)
}

// authenticate resolves the token query parameter to its user.
func (h *WebSocketHandler) authenticate(r *http.Request) (*model.User, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}
	if token == "" {
		return nil, false
	}

	session, ok := h.sessions.Get(token)
	if !ok {
		return nil, false
	}

	user, err := h.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		return nil, false
	}
	return user, true
}

// authorize checks that the user owns or has been granted the list.
func (h *WebSocketHandler) authorize(r *http.Request, user *model.User, listID string) bool {
	lists, err := h.store.ListsForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to authorize websocket client", zap.Error(err))
		return false
	}
	for _, l := range lists {
		if l.ID == listID {
			return true
		}
	}
	return false
}

// readPump handles incoming messages from the WebSocket connection.
func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		h.removeClient(conn)
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
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
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			h.logger.Debug("received message", zap.ByteString("message", message))
		}
	}
}

// writePump pushes the initial summary, then every update published for the
// list, plus periodic pings.
func (h *WebSocketHandler) writePump(ctx context.Context, conn *websocket.Conn, listID string, updates <-chan model.ListSummary, unsubscribe func()) {
	pingTicker := time.NewTicker(pingPeriod)

	defer func() {
		pingTicker.Stop()
		unsubscribe()
	}()

	if err := h.sendInitialSummary(ctx, conn, listID); err != nil {
		h.logger.Debug("failed to send initial summary", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(conn)
			return
		case summary, ok := <-updates:
			if !ok {
				h.sendCloseMessage(conn)
				return
			}
			if err := h.sendSummary(conn, summary); err != nil {
				h.logger.Debug("failed to send summary", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(conn); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// sendInitialSummary computes and pushes the current summary on connect so
// clients do not wait for the first mutation.
func (h *WebSocketHandler) sendInitialSummary(ctx context.Context, conn *websocket.Conn, listID string) error {
	summary, err := h.service.Summary(ctx, listID)
	if err != nil {
		return err
	}
	return h.sendSummary(conn, summary)
}

// sendSummary sends a summary message to the connection.
func (h *WebSocketHandler) sendSummary(conn *websocket.Conn, summary model.ListSummary) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(model.NewSummaryMessage(&summary))
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

	if cancel, exists := h.clients[conn]; exists {
		cancel()
		delete(h.clients, conn)
		h.logger.Info("websocket client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// CloseAllConnections closes all active WebSocket connections.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.Lock()
	// Copy the clients map to avoid holding the lock while closing
	clients := make(map[*websocket.Conn]context.CancelFunc, len(h.clients))
	for conn, cancel := range h.clients {
		clients[conn] = cancel
	}
	h.mu.Unlock()

	// Cancel all contexts first - this will trigger writePump to send close messages
	for _, cancel := range clients {
		cancel()
	}

	// Give writePump goroutines time to send close messages
	time.Sleep(100 * time.Millisecond)

	// Now close all connections
	h.mu.Lock()
	for conn := range h.clients {
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.logger.Info("all websocket connections closed")
}
