package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/gin-gonic/gin"
	gw "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticOrders map[string]string

func (s staticOrders) GetOrder(_ context.Context, id string) (*models.Order, error) {
	status, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return &models.Order{OrderID: id, Status: status}, nil
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(hub, staticOrders{"ORD1": models.OrderStatusPending})
	router.GET("/api/orders/:id/ws", handler.ServeWS)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, orderID string) (*gw.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/orders/" + orderID + "/ws"
	return gw.DefaultDialer.Dial(url, nil)
}

func readUpdate(t *testing.T, conn *gw.Conn) StatusUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var upd StatusUpdate
	require.NoError(t, conn.ReadJSON(&upd))
	return upd
}

func TestSubscriberReceivesCurrentAndNewStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)
	server := newTestServer(t, hub)

	conn, _, err := dial(t, server, "ORD1")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, StatusUpdate{OrderID: "ORD1", Status: models.OrderStatusPending}, readUpdate(t, conn))

	// The initial status is written only after the hub accepted the client.
	hub.NotifyOrderStatus("ORD2", models.OrderStatusCancelled)
	hub.NotifyOrderStatus("ORD1", models.OrderStatusConfirmed)
	upd := readUpdate(t, conn)
	assert.Equal(t, StatusUpdate{OrderID: "ORD1", Status: models.OrderStatusConfirmed}, upd)
}

func TestUnknownOrderIsNotUpgraded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)
	server := newTestServer(t, hub)

	_, resp, err := dial(t, server, "ORD-MISSING")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotifyWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.NotifyOrderStatus("ORD1", models.OrderStatusConfirmed)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyOrderStatus blocked")
	}
}
