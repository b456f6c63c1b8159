package config

import (
	"os"
	"time"
)

// QueueConfig configures booking notifications.
type QueueConfig struct {
	// URL of the RabbitMQ broker.  Empty disables publishing; the
	// dispatcher then only logs.
	URL string
	// Buffer is how many notifications may wait for the publisher before
	// new ones are dropped.
	Buffer int
	// Timeout bounds the delivery of a single notification.
	Timeout time.Duration
	// Consume starts the in-process consumer that records events.
	Consume bool
	// LogPath is where the consumer appends delivered events.
	LogPath string
}

// LoadQueueConfig reads RABBITMQ_URL (or AMQP_URL), NOTIFY_BUFFER,
// NOTIFY_TIMEOUT, NOTIFY_CONSUME and NOTIFY_LOG_PATH.
func LoadQueueConfig() QueueConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	c := QueueConfig{
		URL:     url,
		Buffer:  envInt("NOTIFY_BUFFER", 256),
		Timeout: envDur("NOTIFY_TIMEOUT", 10*time.Second),
		Consume: envBool("NOTIFY_CONSUME", true),
		LogPath: envStr("NOTIFY_LOG_PATH", "logs/booking.log"),
	}
	if c.Buffer < 1 {
		c.Buffer = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}
