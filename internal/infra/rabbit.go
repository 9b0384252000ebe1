package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NewAMQPChannel dials the broker, opens a channel in confirm mode and
// declares the durable save-event queue. The caller owns both returned
// handles and must close the connection on shutdown.
func NewAMQPChannel(cfg *Config) (*amqp.Connection, *amqp.Channel, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.SaveQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %q: %w", cfg.SaveQueue, err)
	}

	return conn, ch, nil
}
