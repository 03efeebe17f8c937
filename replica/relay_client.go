package replica

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"go-ripple/debug"
	"go-ripple/save"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// RelayClient keeps a Store in sync with a relay hub. Each websocket text
// message is one raw profile document in either direction.
type RelayClient struct {
	url   string
	store *Store
	log   log.FieldLogger
	send  chan []byte

	dialer *websocket.Dialer
}

// NewRelayClient creates a client for the relay at url (ws://host/sync) and
// installs itself as the store's publisher
func NewRelayClient(url string, store *Store) *RelayClient {
	c := &RelayClient{
		url:    url,
		store:  store,
		log:    debug.Fields("relay-client", "url", url),
		send:   make(chan []byte, 64),
		dialer: websocket.DefaultDialer,
	}
	store.SetPublisher(c.Publish)
	return c
}

// Publish queues a document for the relay. Drops when the queue is full;
// the next connect resends the local profile anyway.
func (c *RelayClient) Publish(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.log.Warn("send queue full, dropping profile update")
	}
}

// Run connects and reconnects until ctx is done
func (c *RelayClient) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.WithError(err).WithField("retry", backoff).Warn("relay session ended")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// session runs one connection until it breaks
func (c *RelayClient) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.log.Info("connected")

	// Announce the local profile so peers that missed it catch up
	if raw, ok, err := c.store.Local(); err == nil && ok {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			conn.Close()
			return err
		}
	}

	done := make(chan error, 1)
	go func() { done <- c.readPump(conn) }()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil

		case err := <-done:
			return err

		case raw := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return err
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *RelayClient) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := c.store.Put(raw); err != nil {
			switch {
			case errors.Is(err, save.ErrInvalidProfile):
				c.log.WithError(err).Debug("ignoring malformed profile")
			case errors.Is(err, save.ErrBadSignature):
				c.log.WithError(err).Warn("ignoring forged profile")
			default:
				c.log.WithError(err).Warn("storing peer profile failed")
			}
		}
	}
}
