package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"storefront-backend/internal/metrics"
	"storefront-backend/internal/mirror"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	catalog      *services.CatalogService
	entitlements *services.EntitlementService
	wishlist     *services.WishlistService
	bus          services.EventBus
	hub          *WebSocketHub
	logger       *slog.Logger
}

type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	logger     *slog.Logger
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan *Message
	done   <-chan struct{}
}

type Message struct {
	Type   string `json:"type"`
	GameID string `json:"gameId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		logger:     logger,
	}

	go hub.run()

	return hub
}

func NewWebSocketHandler(catalog *services.CatalogService, entitlements *services.EntitlementService, wishlist *services.WishlistService, bus services.EventBus, hub *WebSocketHub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		catalog:      catalog,
		entitlements: entitlements,
		wishlist:     wishlist,
		bus:          bus,
		hub:          hub,
		logger:       logger,
	}
}

// HandleWebSocket serves one mirror of the caller's cart, wishlist and
// library. Every change is pushed as a SNAPSHOT message.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := currentUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "failed to upgrade to websocket", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *Message, sendBuffer),
		done:   ctx.Done(),
	}

	h.hub.register <- client
	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	go client.writePump(ctx, cancel)

	m := mirror.New(userID, h.entitlements, h.wishlist, h.logger)
	stopObserving := m.Subscribe(func(s *mirror.Snapshot) {
		client.enqueue(snapshotMessage(s))
	})
	defer stopObserving()

	events, unsubscribe, err := h.bus.SubscribeUserEvents(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to subscribe to user events",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		client.enqueue(errorMessage(apierrors.ErrStoreUnavailable))
	} else {
		defer unsubscribe()
		go m.Run(ctx, events)
	}

	if err := m.Refresh(ctx); err != nil {
		client.enqueue(errorMessage(err))
		client.enqueue(snapshotMessage(m.Snapshot()))
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WarnContext(ctx, "websocket error",
					slog.String("user_id", userID),
					slog.Any("error", err),
				)
			}
			break
		}

		h.handleMessage(ctx, client, m, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *Client, m *mirror.Mirror, msg *Message) {
	switch msg.Type {
	case "PING":
		client.enqueue(&Message{
			Type: "PONG",
			Data: gin.H{"timestamp": time.Now().Unix()},
		})
	case "REFRESH":
		if err := m.Refresh(ctx); err != nil {
			client.enqueue(errorMessage(err))
		}
	case "TOGGLE_WISHLIST":
		if _, err := m.ToggleWishlist(ctx, msg.GameID); err != nil {
			client.enqueue(errorMessage(err))
		}
	case "ADD_TO_CART":
		game, err := h.catalog.Get(ctx, client.UserID, msg.GameID)
		if err != nil {
			client.enqueue(errorMessage(err))
			return
		}
		if game.Status != models.GameStatusApproved {
			client.enqueue(errorMessage(apierrors.NewValidationError("gameId", "game is not for sale")))
			return
		}
		if err := m.AddToCart(game); err != nil {
			client.enqueue(errorMessage(err))
		}
	case "REMOVE_FROM_CART":
		m.RemoveFromCart(msg.GameID)
	case "CLEAR_CART":
		m.ClearCart()
	default:
		client.enqueue(errorMessage(apierrors.NewValidationError("type", "unknown message type")))
	}
}

// enqueue drops the message when the connection is gone or its buffer is full.
func (c *Client) enqueue(msg *Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func snapshotMessage(s *mirror.Snapshot) *Message {
	return &Message{
		Type: "SNAPSHOT",
		Data: gin.H{
			"userId":    s.UserID,
			"cart":      s.Cart,
			"cartTotal": s.CartTotal(),
			"wishlist":  s.Wishlist,
			"library":   s.Library,
			"version":   s.Version,
		},
	}
}

func errorMessage(err error) *Message {
	apiErr := apierrors.AsAPIError(err)
	return &Message{
		Type: "ERROR",
		Data: gin.H{
			"code":  apiErr.Code,
			"error": apiErr.Message,
		},
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			conns, ok := hub.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				hub.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			metrics.MirrorConnections.Inc()
			hub.logger.Debug("client registered", slog.String("user_id", client.UserID))

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					metrics.MirrorConnections.Dec()
				}
				if len(conns) == 0 {
					delete(hub.clients, client.UserID)
				}
				hub.logger.Debug("client unregistered", slog.String("user_id", client.UserID))
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for _, conns := range hub.clients {
		for client := range conns {
			client.enqueue(message)
		}
	}
}

// BroadcastCatalogUpdate tells every open storefront that a game changed
// status so it can refetch the catalog.
func (hub *WebSocketHub) BroadcastCatalogUpdate(gameID string, status models.GameStatus) {
	msg := &Message{
		Type:   "CATALOG_UPDATE",
		GameID: gameID,
		Data: gin.H{
			"gameId":    gameID,
			"status":    status,
			"timestamp": time.Now().Unix(),
		},
	}

	select {
	case hub.broadcast <- msg:
	default:
		hub.logger.Warn("catalog broadcast dropped", slog.String("game_id", gameID))
	}
}
