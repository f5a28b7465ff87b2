package venue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// DryRun is an in-process order client that accepts every order and reports
// it filled on the first status poll. Used in monitor mode and tests so the
// execution path can run without moving funds.
type DryRun struct {
	mu     sync.Mutex
	orders map[string]domain.OrderStatus
}

// NewDryRun creates an empty dry-run client.
func NewDryRun() *DryRun {
	return &DryRun{orders: make(map[string]domain.OrderStatus)}
}

// SubmitOrder records the order and assigns an id.
func (d *DryRun) SubmitOrder(_ context.Context, _ domain.Venue, _ string, _ domain.BookSide, _ float64, size float64) (string, error) {
	id := uuid.New().String()
	d.mu.Lock()
	d.orders[id] = domain.OrderStatus{
		OrderID:    id,
		FilledSize: size,
		TotalSize:  size,
		Status:     "filled",
	}
	d.mu.Unlock()
	return id, nil
}

// GetOrderStatus reports the recorded order as filled.
func (d *DryRun) GetOrderStatus(_ context.Context, _ domain.Venue, orderID string) (domain.OrderStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.orders[orderID]
	if !ok {
		return domain.OrderStatus{}, fmt.Errorf("venue: dry-run order %s: %w", orderID, domain.ErrNotFound)
	}
	return st, nil
}

// CancelOrder marks the order cancelled.
func (d *DryRun) CancelOrder(_ context.Context, _ domain.Venue, orderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.orders[orderID]
	if !ok {
		return fmt.Errorf("venue: dry-run order %s: %w", orderID, domain.ErrNotFound)
	}
	st.Status = "cancelled"
	d.orders[orderID] = st
	return nil
}
