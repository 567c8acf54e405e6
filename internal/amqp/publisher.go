// Package amqp publishes engine events to a RabbitMQ topic exchange so other
// services (notifiers, analytics) can follow ledger activity.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dukerupert/kidpoints/internal/events"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func() (*amqp091.Connection, channel, error)

// Publisher implements events.Publisher. It reconnects lazily after a
// connection failure; a publish that fails is not retried.
type Publisher struct {
	exchange string
	dial     dialFunc
	logger   *slog.Logger

	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	failures int
	retryAt  time.Time
	now      func() time.Time
}

// NewPublisher dials url and declares a durable topic exchange.
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}
	p.dial = func() (*amqp091.Connection, channel, error) {
		return dialExchange(url, exchange)
	}

	conn, ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

func dialExchange(url, exchange string) (*amqp091.Connection, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

// RoutingKey returns "kidpoints.<entity>.<action>".
func RoutingKey(e events.Event) string {
	return "kidpoints." + e.Entity + "." + e.Action
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.reconnect(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,    // exchange
		RoutingKey(e), // routing key
		false,         // mandatory
		false,         // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    e.At,
			Type:         e.Type,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			p.dropConnection()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("published event", "type", e.Type, "exchange", p.exchange, "family_id", e.FamilyID)
	return nil
}

// reconnect is called with mu held.
func (p *Publisher) reconnect() error {
	if p.now().Before(p.retryAt) {
		return fmt.Errorf("amqp reconnect backing off until %s", p.retryAt.Format(time.RFC3339))
	}
	conn, ch, err := p.dial()
	if err != nil {
		p.retryAt = p.now().Add(exponentialBackoff(p.failures))
		p.failures++
		return fmt.Errorf("reconnect: %w", err)
	}
	p.logger.Info("amqp reconnected", "exchange", p.exchange, "attempts", p.failures+1)
	p.conn, p.ch = conn, ch
	p.failures = 0
	p.retryAt = time.Time{}
	return nil
}

// dropConnection is called with mu held.
func (p *Publisher) dropConnection() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropConnection()
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
