package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const ExchangePush = "parley.push"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PushNotification is the body published for a user who missed a live event.
type PushNotification struct {
	UserID     domain.UserID  `json:"userId"`
	Event      core.EventName `json:"event"`
	Payload    any            `json:"payload"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// RabbitMQClient publishes offline notifications to a topic exchange with
// routing key user.<id>; push workers consume from there.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel publisher
	closer  func() error
	now     func() time.Time
}

func NewRabbitMQClient(url string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangePush, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare push exchange: %w", err)
	}

	log.Info().Str("module", "broker").Str("exchange", ExchangePush).Msg("rabbitmq ready")
	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		closer:  ch.Close,
		now:     time.Now,
	}, nil
}

func RoutingKey(uid domain.UserID) string {
	return fmt.Sprintf("user.%s", uid)
}

// NotifyOffline implements app.OfflineNotifier.
func (c *RabbitMQClient) NotifyOffline(ctx context.Context, uid domain.UserID, e core.Event) error {
	body, err := json.Marshal(PushNotification{
		UserID:     uid,
		Event:      e.Name(),
		Payload:    e.Payload(),
		OccurredAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push body: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		ExchangePush,    // exchange
		RoutingKey(uid), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    c.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish push for %s: %w", uid, err)
	}
	return nil
}

func (c *RabbitMQClient) Close() {
	if c.closer != nil {
		_ = c.closer()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
