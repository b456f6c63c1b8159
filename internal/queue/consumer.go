package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartBookingConsumer connects to RabbitMQ, declares the confirmed and
// cancelled queues (durable) and consumes both.  Each event is appended to
// logPath as a single human readable line, standing in for the mailer.
// It reconnects with backoff until ctx is cancelled.
func StartBookingConsumer(ctx context.Context, url, logPath string, log logrus.FieldLogger) error {
	sink := &eventLog{path: logPath}
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("booking-consumer: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("booking-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink *eventLog, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("booking-consumer: set QoS failed")
	}

	sources, err := openQueues(ch, ConfirmedQueue, CancelledQueue)
	if err != nil {
		return err
	}
	deliveries := merge(ctx, sources...)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := sink.handleMessage(d.Body); err != nil {
				log.WithError(err).WithField("message_id", d.MessageId).Error("booking-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// queueChannel is the part of *amqp.Channel the consumer uses.
type queueChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// openQueues declares and subscribes to every queue before any delivery
// is forwarded, so a failure leaves nothing running.
func openQueues(ch queueChannel, names ...string) ([]<-chan amqp.Delivery, error) {
	sources := make([]<-chan amqp.Delivery, 0, len(names))
	for _, name := range names {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("queue consume %s: %w", name, err)
		}
		sources = append(sources, msgs)
	}
	return sources, nil
}

// merge forwards every source onto one channel, closed once all sources
// are drained.  Deliveries that arrive after ctx ends are requeued.
func merge(ctx context.Context, sources ...<-chan amqp.Delivery) <-chan amqp.Delivery {
	out := make(chan amqp.Delivery)
	var wg sync.WaitGroup
	for _, msgs := range sources {
		wg.Add(1)
		go func(msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range msgs {
				select {
				case out <- d:
				case <-ctx.Done():
					_ = d.Nack(false, true)
				}
			}
		}(msgs)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// eventLog appends one line per event to a file.
type eventLog struct {
	mu   sync.Mutex
	path string
}

func (l *eventLog) handleMessage(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ReservationID == 0 {
		return errors.New("event without reservation_id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev BookingEvent) string {
	title := "Reservation confirmed"
	extra := ""
	if ev.Kind == KindCancelled {
		title = "Reservation cancelled"
		extra = fmt.Sprintf(" | reason=%s", ev.CancellationReason)
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | space_id=%d | code=%s | space=%q | building=%q | campus=%q | window=%s/%s | to=%s%s\n",
		ev.OccurredAt, title, ev.ReservationID, ev.UserID, ev.SpaceID, ev.ConfirmationCode,
		ev.SpaceName, ev.BuildingName, ev.CampusName, ev.StartTime, ev.EndTime, ev.RecipientEmail, extra)
}
