package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/paymentclient"
)

type memOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	processed map[string]bool
	// beforeUpdate runs once ahead of the next UpdateOrderStatus, standing in
	// for a concurrent writer.
	beforeUpdate func()
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: map[string]*models.Order{}, processed: map[string]bool{}}
}

func (m *memOrderStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; ok {
		return fmt.Errorf("%w: order %s exists", models.ErrConflict, o.OrderID)
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.OrderID] = &cp
	return nil
}

func (m *memOrderStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderStore) ListOrders(context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrderStore) UpdateOrderStatus(_ context.Context, id, from, to string) error {
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("%w: order %s is no longer %q", models.ErrConflict, id, from)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrderStore) IsEventProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[id], nil
}

func (m *memOrderStore) MarkEventProcessed(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[id] = true
	return nil
}

func (m *memOrderStore) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

type memPaymentStore struct {
	mu       sync.Mutex
	nextID   int64
	payments map[string]*models.Payment
	outbox   []models.OutboxMessage
	saves    int
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{payments: map[string]*models.Payment{}}
}

func (m *memPaymentStore) InsertPayment(_ context.Context, p *models.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.OrderID]; ok {
		return false, nil
	}
	m.nextID++
	p.PaymentID = m.nextID
	cp := *p
	m.payments[p.OrderID] = &cp
	return true, nil
}

func (m *memPaymentStore) GetPaymentByID(_ context.Context, id int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.PaymentID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
}

func (m *memPaymentStore) GetPaymentByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentStore) SavePayment(_ context.Context, p *models.Payment, msg *models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.OrderID]; !ok {
		return fmt.Errorf("%w: payment %d", models.ErrNotFound, p.PaymentID)
	}
	cp := *p
	m.payments[p.OrderID] = &cp
	m.saves++
	if msg != nil {
		m.outbox = append(m.outbox, *msg)
	}
	return nil
}

func (m *memPaymentStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memPaymentStore) events() []*models.PaymentStatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PaymentStatusEvent, 0, len(m.outbox))
	for _, msg := range m.outbox {
		e, err := broker.DecodePaymentStatusEvent(msg.Payload)
		if err != nil {
			panic(err)
		}
		out = append(out, e)
	}
	return out
}

type memLocker struct {
	mu    sync.Mutex
	held  map[string]string
	err   error
	calls int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (l *memLocker) AcquireLock(_ context.Context, name string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[name]; ok {
		return "", false, nil
	}
	token := fmt.Sprintf("token-%d", l.calls)
	l.held[name] = token
	return token, true, nil
}

func (l *memLocker) ReleaseLock(_ context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == token {
		delete(l.held, name)
	}
	return nil
}

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (*gateway.RemoteOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.RemoteOrder{
		ID:       fmt.Sprintf("order_%s_%d", receipt, g.calls),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	charge   bool
	refund   bool
	charges  int
	refunds  int
	chargeFn func()
}

func (p *fakeProcessor) Charge(context.Context, string, float64) bool {
	p.mu.Lock()
	p.charges++
	fn := p.chargeFn
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
	return p.charge
}

func (p *fakeProcessor) Refund(context.Context, string, float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds++
	return p.refund
}

type fakePaymentClient struct {
	refundResult *paymentclient.PaymentResult
	refundErr    error
	payResult    *paymentclient.PaymentResult
	payErr       error
	refundCalls  int
	payCalls     int
}

func (c *fakePaymentClient) Refund(context.Context, string) (*paymentclient.PaymentResult, error) {
	c.refundCalls++
	return c.refundResult, c.refundErr
}

func (c *fakePaymentClient) Pay(context.Context, string, float64, string) (*paymentclient.PaymentResult, error) {
	c.payCalls++
	return c.payResult, c.payErr
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []string
}

func (n *recordingNotifier) NotifyOrderStatus(orderID, status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, orderID+"="+status)
}
