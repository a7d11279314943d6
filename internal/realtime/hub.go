package realtime

import (
	"context"
	"encoding/json"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// StatusUpdate is pushed to subscribers of an order
type StatusUpdate struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type subscriber struct {
	orderID string
	send    chan []byte
}

// Hub fans order status changes out to the websocket clients watching each order.
type Hub struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan StatusUpdate
	clients    map[string]map[*subscriber]bool
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan StatusUpdate, 256),
		clients:    make(map[string]map[*subscriber]bool),
		done:       make(chan struct{}),
		logger:     util.GetLogger(),
	}
}

// Run owns the client set until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case s := <-h.register:
			set, ok := h.clients[s.orderID]
			if !ok {
				set = make(map[*subscriber]bool)
				h.clients[s.orderID] = set
			}
			set[s] = true
			util.WebsocketClients.Inc()
		case s := <-h.unregister:
			h.remove(s)
		case upd := <-h.broadcast:
			msg, err := json.Marshal(upd)
			if err != nil {
				continue
			}
			for s := range h.clients[upd.OrderID] {
				select {
				case s.send <- msg:
				default:
					// Slow client; drop it rather than block the hub.
					h.remove(s)
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for s := range set {
					h.remove(s)
				}
			}
			return
		}
	}
}

func (h *Hub) remove(s *subscriber) {
	set, ok := h.clients[s.orderID]
	if !ok || !set[s] {
		return
	}
	delete(set, s)
	close(s.send)
	util.WebsocketClients.Dec()
	if len(set) == 0 {
		delete(h.clients, s.orderID)
	}
}

func (h *Hub) join(s *subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(s *subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// NotifyOrderStatus queues a status change for broadcast. It never blocks;
// updates are dropped when the queue is full.
func (h *Hub) NotifyOrderStatus(orderID, status string) {
	select {
	case h.broadcast <- StatusUpdate{OrderID: orderID, Status: status}:
	default:
		h.logger.Warn("Status broadcast queue full", zap.String("order_id", orderID))
	}
}
