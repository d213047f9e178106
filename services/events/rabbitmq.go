package eventsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/academia/core"
)

const exchangeType = "topic"

type (
	rabbitConn interface {
		IsClosed() bool
		Close() error
	}

	rabbitChannel interface {
		PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
		IsClosed() bool
		Close() error
	}

	// RabbitPublisher publishes events on a topic exchange; the routing key is the event type (eg. like.added).
	// A closed channel or connection is re-opened on the next Publish.
	RabbitPublisher struct {
		mu       sync.Mutex
		conn     rabbitConn
		ch       rabbitChannel
		closed   bool
		exchange string
		connect  func() (rabbitConn, rabbitChannel, error)
		logger   core.Logger
	}
)

var _ core.EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher connects to url and declares exchange. Waits 1s longer between each connection attempt.
func NewRabbitPublisher(url, exchange string, logger core.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{
		exchange: exchange,
		connect:  func() (rabbitConn, rabbitChannel, error) { return dialRabbit(url, exchange) },
		logger:   logger,
	}

	var err error
	maxAttempts := 5
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if p.conn, p.ch, err = p.connect(); err == nil {
			return p, nil
		}
		logger.Warn("connecting to RabbitMQ: "+err.Error(), err)
		if attempts < maxAttempts {
			time.Sleep(time.Duration(attempts) * time.Second)
		}
	}
	return nil, core.Unavailable(err, "connecting to RabbitMQ")
}

func dialRabbit(url, exchange string) (rabbitConn, rabbitChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dialing")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "opening channel")
	}
	if err = ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "declaring exchange")
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, evt core.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Type:         evt.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.Unavailable(amqp.ErrClosed, "publishing event")
	}
	if p.conn.IsClosed() || p.ch.IsClosed() {
		if err = p.reconnect(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, evt.Type, false, false, msg)
	if errors.Cause(err) == amqp.ErrClosed {
		// closed between the check and the publish: one more try on a fresh channel
		if err = p.reconnect(); err != nil {
			return err
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, evt.Type, false, false, msg)
	}
	if errors.Cause(err) == amqp.ErrClosed {
		return core.Unavailable(err, "publishing event")
	}
	return errors.Wrap(err, "publishing event")
}

// reconnect replaces the connection and channel; p.mu must be held.
func (p *RabbitPublisher) reconnect() error {
	p.logger.Warn("RabbitMQ channel closed: reconnecting")
	_ = p.ch.Close()
	_ = p.conn.Close()

	conn, ch, err := p.connect()
	if err != nil {
		return core.Unavailable(err, "reconnecting to RabbitMQ")
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	_ = p.ch.Close()
	return errors.Wrap(p.conn.Close(), "closing RabbitMQ connection")
}
