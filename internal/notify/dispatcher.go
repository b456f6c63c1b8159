// Package notify turns committed reservation changes into booking events.
// Work is queued in memory and delivered by a background goroutine so the
// request that committed the reservation never waits on the broker.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
	"github.com/iliyamo/study-space-booking/internal/queue"
)

// UserDirectory resolves where a user's notifications go.
type UserDirectory interface {
	FindUserContact(ctx context.Context, id uint64) (model.UserContact, error)
}

type job struct {
	kind string
	res  model.EnrichedReservation
}

// Dispatcher implements booking.Notifier.
type Dispatcher struct {
	dir     UserDirectory
	pub     Publisher
	timeout time.Duration
	log     logrus.FieldLogger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

var _ booking.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts a dispatcher with room for buffer pending
// notifications.  Each delivery is bounded by timeout.
func NewDispatcher(dir UserDirectory, pub Publisher, buffer int, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		dir:     dir,
		pub:     pub,
		timeout: timeout,
		log:     log,
		now:     time.Now,
		jobs:    make(chan job, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) ReservationConfirmed(_ context.Context, r model.EnrichedReservation) {
	d.enqueue(job{kind: queue.KindConfirmed, res: r})
}

func (d *Dispatcher) ReservationCancelled(_ context.Context, r model.EnrichedReservation) {
	d.enqueue(job{kind: queue.KindCancelled, res: r})
}

// enqueue never blocks; when the buffer is full the notification is
// dropped and logged.
func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry := d.log.WithFields(logrus.Fields{"event": j.kind, "reservation_id": j.res.ID})
	if d.closed {
		entry.Warn("notification dropped: dispatcher closed")
		return
	}
	select {
	case d.jobs <- j:
	default:
		entry.Warn("notification dropped: queue full")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	entry := d.log.WithFields(logrus.Fields{
		"event":          j.kind,
		"reservation_id": j.res.ID,
		"user_id":        j.res.UserID,
	})

	to, err := d.dir.FindUserContact(ctx, j.res.UserID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			entry.Warn("notification skipped: user not found")
			return
		}
		entry.WithError(err).Error("notification failed: contact lookup")
		return
	}
	if !to.WantsEmail() {
		entry.Debug("notification skipped: email not verified or disabled")
		return
	}
	ev := queue.NewBookingEvent(j.kind, j.res, to, d.now())
	if err := d.pub.Publish(ctx, ev); err != nil {
		entry.WithError(err).Error("notification failed: publish")
		return
	}
	entry.WithField("event_id", ev.EventID).Debug("notification published")
}

// Close stops accepting notifications and waits until the queued ones
// are delivered or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
