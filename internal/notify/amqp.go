package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeName is the topic exchange events are published to, with
// routing keys of the form "courtsniper.<kind>".
const ExchangeName = "courtsniper.events"

type AMQP struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
	mu      sync.Mutex
}

func NewAMQP(url string, log *zap.Logger) (*AMQP, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange: %w", err)
	}
	log.Info("amqp publisher connected", zap.String("exchange", ExchangeName))
	return &AMQP{conn: conn, channel: ch, log: log}, nil
}

func (a *AMQP) Notify(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel.PublishWithContext(ctx, ExchangeName, "courtsniper."+string(e.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.channel.Close(); err != nil {
		_ = a.conn.Close()
		return err
	}
	return a.conn.Close()
}
