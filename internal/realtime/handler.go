package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"checkout-service/internal/models"

	"github.com/gin-gonic/gin"
	gw "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OrderReader looks up the current status sent on connect
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

type Handler struct {
	hub    *Hub
	orders OrderReader
}

func NewHandler(hub *Hub, orders OrderReader) *Handler {
	return &Handler{hub: hub, orders: orders}
}

// ServeWS upgrades GET /api/orders/:id/ws and streams that order's status changes.
func (h *Handler) ServeWS(c *gin.Context) {
	orderID := c.Param("id")
	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn("Websocket upgrade failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	s := &subscriber{orderID: orderID, send: make(chan []byte, 16)}
	if b, err := json.Marshal(StatusUpdate{OrderID: orderID, Status: order.Status}); err == nil {
		s.send <- b
	}

	if !h.hub.join(s) {
		_ = conn.Close()
		return
	}
	go writePump(conn, s)
	go h.readPump(conn, s)
}

func (h *Handler) readPump(conn *gw.Conn, s *subscriber) {
	defer func() {
		h.hub.leave(s)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *gw.Conn, s *subscriber) {
	defer func() { _ = conn.Close() }()
	for msg := range s.send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
