package bookingtest

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/study-space-booking/internal/model"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Notifier records every notification it receives.
type Notifier struct {
	mu        sync.Mutex
	confirmed []model.EnrichedReservation
	cancelled []model.EnrichedReservation
}

func (n *Notifier) ReservationConfirmed(_ context.Context, r model.EnrichedReservation) {
	n.mu.Lock()
	n.confirmed = append(n.confirmed, r)
	n.mu.Unlock()
}

func (n *Notifier) ReservationCancelled(_ context.Context, r model.EnrichedReservation) {
	n.mu.Lock()
	n.cancelled = append(n.cancelled, r)
	n.mu.Unlock()
}

// Confirmed returns a copy of the confirmations received so far.
func (n *Notifier) Confirmed() []model.EnrichedReservation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.EnrichedReservation(nil), n.confirmed...)
}

// Cancelled returns a copy of the cancellations received so far.
func (n *Notifier) Cancelled() []model.EnrichedReservation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.EnrichedReservation(nil), n.cancelled...)
}
