package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking/bookingtest"
	"github.com/iliyamo/study-space-booking/internal/model"
	"github.com/iliyamo/study-space-booking/internal/queue"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
	block  chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []queue.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingEvent(nil), p.events...)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func reservationFor(userID uint64) model.EnrichedReservation {
	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	return model.EnrichedReservation{
		Reservation: model.Reservation{
			ID:               7,
			UserID:           userID,
			SpaceID:          1,
			StartTime:        start,
			EndTime:          start.Add(90 * time.Minute),
			Status:           model.StatusConfirmed,
			ConfirmationCode: "ABCDEF1234",
		},
		DurationMinutes: 90,
		Space:           &model.SpaceSummary{ID: 1, Name: "Quiet Room", BuildingName: "Library", CampusName: "North"},
	}
}

func newDirectory() *bookingtest.Store {
	s := bookingtest.NewStore()
	s.AddUser(model.UserContact{ID: 1, Email: "ada@example.edu", FullName: "Ada", EmailVerified: true, EmailNotifications: true})
	s.AddUser(model.UserContact{ID: 2, Email: "bob@example.edu", FullName: "Bob", EmailVerified: false, EmailNotifications: true})
	s.AddUser(model.UserContact{ID: 3, Email: "cy@example.edu", FullName: "Cy", EmailVerified: true, EmailNotifications: false})
	return s
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDispatcherPublishesBothKinds(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(newDirectory(), pub, 8, time.Second, quietLogger())

	r := reservationFor(1)
	d.ReservationConfirmed(context.Background(), r)
	reason := model.ReasonUserRequested
	r.Status = model.StatusCancelled
	r.CancellationReason = &reason
	d.ReservationCancelled(context.Background(), r)
	drain(t, d)

	evs := pub.Events()
	if len(evs) != 2 {
		t.Fatalf("published %d events, want 2", len(evs))
	}
	if evs[0].Kind != queue.KindConfirmed || evs[0].Queue() != queue.ConfirmedQueue {
		t.Errorf("first event = %s on %s", evs[0].Kind, evs[0].Queue())
	}
	if evs[1].Kind != queue.KindCancelled || evs[1].Queue() != queue.CancelledQueue {
		t.Errorf("second event = %s on %s", evs[1].Kind, evs[1].Queue())
	}
	if evs[0].RecipientEmail != "ada@example.edu" || evs[0].SpaceName != "Quiet Room" {
		t.Errorf("unexpected payload %+v", evs[0])
	}
	if evs[1].CancellationReason != string(model.ReasonUserRequested) {
		t.Errorf("reason = %q", evs[1].CancellationReason)
	}
	if evs[0].EventID == "" || evs[0].EventID == evs[1].EventID {
		t.Errorf("event ids not unique: %q %q", evs[0].EventID, evs[1].EventID)
	}
}

func TestDispatcherHonoursPreferences(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(newDirectory(), pub, 8, time.Second, quietLogger())

	d.ReservationConfirmed(context.Background(), reservationFor(2))  // unverified
	d.ReservationConfirmed(context.Background(), reservationFor(3))  // opted out
	d.ReservationConfirmed(context.Background(), reservationFor(99)) // unknown
	drain(t, d)

	if n := len(pub.Events()); n != 0 {
		t.Fatalf("published %d events, want 0", n)
	}
}

func TestDispatcherPublishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(newDirectory(), pub, 8, time.Second, quietLogger())
	d.ReservationConfirmed(context.Background(), reservationFor(1))
	drain(t, d)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	d := NewDispatcher(newDirectory(), pub, 1, 5*time.Second, quietLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.ReservationConfirmed(context.Background(), reservationFor(1))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full buffer")
	}
	close(pub.block)
	drain(t, d)

	// one in flight plus one buffered at most
	if n := len(pub.Events()); n < 1 || n > 2 {
		t.Fatalf("published %d events, want 1 or 2", n)
	}
}

func TestDispatcherAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(newDirectory(), pub, 4, time.Second, quietLogger())
	drain(t, d)
	d.ReservationConfirmed(context.Background(), reservationFor(1))
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if n := len(pub.Events()); n != 0 {
		t.Fatalf("published %d events after close", n)
	}
}
