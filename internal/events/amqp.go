package events

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange              = "quiz.events"
	RoutingScoreSubmitted = "score.submitted"
)

// Publisher fans events out to other services.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	ch       channel
	exchange string
	closers  []func() error
}

func NewAMQPPublisher(ch channel, exchange string) *AMQPPublisher {
	if exchange == "" {
		exchange = Exchange
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// DialAMQP connects, opens a channel and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = Exchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, err
	}
	p := NewAMQPPublisher(ch, exchange)
	p.closers = []func() error{ch.Close, conn.Close}
	return p, nil
}

func routingKey(typ string) (string, error) {
	switch typ {
	case TypeScoreSubmitted:
		return RoutingScoreSubmitted, nil
	}
	return "", errors.New("events: no route for " + typ)
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	key, err := routingKey(e.Type)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.Key,
		Type:         e.Type,
		AppId:        e.SiteID,
		Timestamp:    time.Unix(e.CreatedAt, 0),
		Body:         e.Data,
	})
}

func (p *AMQPPublisher) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
