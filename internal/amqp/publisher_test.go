package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dukerupert/kidpoints/internal/events"
)

type fakeChannel struct {
	published []amqp091.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(ch channel, dial dialFunc) *Publisher {
	return &Publisher{
		exchange: "kidpoints.events",
		logger:   slog.Default(),
		ch:       ch,
		dial:     dial,
		now:      time.Now,
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"closed sentinel", amqp091.ErrClosed, true},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestPublishRoutesByEntityAndAction(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch, nil)

	e := events.New(events.EntityRedemption, events.ActionApproved, 1, 2, 3)
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(ch.keys) != 1 || ch.keys[0] != "kidpoints.redemption.approved" {
		t.Fatalf("keys = %v", ch.keys)
	}
	msg := ch.published[0]
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("publishing = %+v", msg)
	}
	var got events.Event
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.Type != "redemption_approved" || got.ID != 3 {
		t.Errorf("body = %+v", got)
	}
}

func TestPublishReconnectsAfterConnectionError(t *testing.T) {
	broken := &fakeChannel{err: amqp091.ErrClosed}
	healthy := &fakeChannel{}
	dials := 0
	p := newTestPublisher(broken, func() (*amqp091.Connection, channel, error) {
		dials++
		return nil, healthy, nil
	})

	e := events.New(events.EntityLedger, events.ActionAdjusted, 1, 2, 0)
	if err := p.Publish(context.Background(), e); err == nil {
		t.Fatal("expected error from broken channel")
	}
	if !broken.closed {
		t.Error("broken channel should be closed")
	}

	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish after reconnect: %v", err)
	}
	if dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}
	if len(healthy.published) != 1 {
		t.Errorf("healthy channel got %d messages, want 1", len(healthy.published))
	}
}

func TestReconnectBacksOff(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	dials := 0
	p := newTestPublisher(nil, func() (*amqp091.Connection, channel, error) {
		dials++
		return nil, nil, errors.New("connection refused")
	})
	p.now = func() time.Time { return now }

	e := events.New(events.EntityLedger, events.ActionAdjusted, 1, 2, 0)
	p.Publish(context.Background(), e)
	p.Publish(context.Background(), e)
	if dials != 1 {
		t.Errorf("dials = %d, want 1 while backing off", dials)
	}

	now = now.Add(2 * time.Second)
	p.Publish(context.Background(), e)
	if dials != 2 {
		t.Errorf("dials = %d, want 2 after backoff elapsed", dials)
	}
}
