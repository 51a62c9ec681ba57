// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// ErrConnClosed is returned by Send after the connection has been closed.
var ErrConnClosed = errors.New("websocket connection closed")

// clientIDCounter hands out monotonically increasing client IDs.
var clientIDCounter atomic.Uint64

// InboundHandler receives every message a peer sends, except pings.
// A returned message is sent back to the same peer.
type InboundHandler func(ctx context.Context, msg InboundMessage) *Message

// Client is a gorilla connection registered with the hub.
type Client struct {
	id   uint64
	conn *websocket.Conn
	send chan Message

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn with a unique ID.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		conn: conn,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID implements Conn.
func (c *Client) ID() uint64 {
	return c.id
}

// Send implements Conn. It blocks only while the send buffer is full.
func (c *Client) Send(ctx context.Context, msg Message) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Conn. The write pump sends a close frame and closes the socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Serve registers the client under group and pumps messages until the peer
// disconnects or the client is closed, then unregisters it. It blocks for
// the lifetime of the connection.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, group Group, onMessage InboundHandler) error {
	c := NewClient(conn)
	if err := h.registry.Register(c, group); err != nil {
		_ = conn.Close()
		return err
	}

	go c.writePump()
	c.readPump(ctx, group, onMessage)

	h.registry.Unregister(c, group)
	return c.Close()
}

// readPump pumps messages from the websocket connection to onMessage
func (c *Client) readPump(ctx context.Context, group Group, onMessage InboundHandler) {
	defer func() {
		_ = c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("conn_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logging.Debug().Err(err).Uint64("conn_id", c.id).Str("group", string(group)).Msg("ignoring malformed websocket message")
			c.reply(NewMessage(MessageTypeError, map[string]interface{}{"detail": "malformed message"}))
			continue
		}

		if msg.Type == MessageTypePing {
			c.reply(NewMessage(MessageTypePong, nil))
			continue
		}

		if onMessage == nil {
			continue
		}
		if resp := onMessage(ctx, msg); resp != nil {
			c.reply(*resp)
		}
	}
}

// reply queues a direct response without blocking the read loop.
func (c *Client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// writePump pumps messages from the send buffer to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			payload, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to marshal websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("failed to write message")
				_ = c.Close()
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
