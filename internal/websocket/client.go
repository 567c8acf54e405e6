package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/kidpoints/internal/auth"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one device subscribed to a family's ledger events. Everything it
// logs carries the family and the actor who opened it.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	familyID int64
	send     chan []byte
	logger   *slog.Logger
}

func NewClient(hub *Hub, conn *ws.Conn, p auth.Principal, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		familyID: p.FamilyID,
		send:     make(chan []byte, sendBufferSize),
		logger:   logger.With("family_id", p.FamilyID, "actor", p.Actor),
	}
}

// Run subscribes the client to its family's events until either side goes
// away, then unsubscribes and closes the connection.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	c.logger.Info("family feed connected", "clients", c.hub.ClientCount())

	done := make(chan error, 1)
	go func() {
		err := c.writePump(ctx)
		if err != nil {
			// Unblock readPump.
			c.conn.CloseNow()
		}
		done <- err
	}()
	readErr := c.readPump(ctx)
	cancel()
	writeErr := <-done

	c.conn.Close(ws.StatusNormalClosure, "")
	c.logger.Info("family feed disconnected",
		"duration", time.Since(started).Round(time.Second),
		"reason", closeReason(readErr, writeErr))
}

// readPump discards what the device sends; the feed is one-way. It returns
// the error that ended the connection.
func (c *Client) readPump(ctx context.Context) error {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return err
		}
	}
}

// writePump forwards queued events and pings the device so a dead tablet is
// noticed within pingInterval.
func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				c.logger.Debug("family feed ping failed", "error", err)
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// closeReason names why a feed ended for the disconnect log line.
func closeReason(readErr, writeErr error) string {
	switch {
	case ws.CloseStatus(readErr) != -1:
		return "closed by client: " + ws.CloseStatus(readErr).String()
	case writeErr != nil && !errors.Is(writeErr, context.Canceled):
		return "write failed: " + writeErr.Error()
	case errors.Is(readErr, context.Canceled):
		return "server shutdown"
	case readErr != nil:
		return readErr.Error()
	default:
		return "unknown"
	}
}
