package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/protocol"
	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one websocket connection bound to a player's session. Reads
// are dispatched to the session in order; writes go through Send.
type Client struct {
	UserID int64
	Conn   *websocket.Conn
	Send   chan []byte

	sess      *session.Session
	validator *protocol.Validator
	statePush time.Duration
	log       *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, sess *session.Session, v *protocol.Validator, statePush time.Duration) *Client {
	if statePush <= 0 {
		statePush = time.Second
	}
	return &Client{
		UserID:    sess.UserID(),
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		sess:      sess,
		validator: v,
		statePush: statePush,
		log:       logger.With("user_id", sess.UserID()),
		done:      make(chan struct{}),
	}
}

// Run serves the connection until the peer goes away or ctx ends.
func (c *Client) Run(ctx context.Context) {
	Connections.Inc()
	defer Connections.Dec()

	go c.writePump(ctx)

	// explicit ready handshake so clients can wait for it
	c.queue(protocol.Response{Type: protocol.TypeReady, Payload: c.sess.Snapshot()})
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read error", "error", err)
			}
			return
		}
		Messages.WithLabelValues("in").Inc()

		req, err := c.validator.Decode(msg)
		if err != nil {
			var id string
			if req != nil {
				id = req.ID
			}
			c.queue(protocol.Error(id, protocol.CodeBadRequest, err.Error()))
			continue
		}
		for _, resp := range dispatch(ctx, c.sess, req) {
			c.queue(resp)
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	state := time.NewTicker(c.statePush)
	defer func() {
		ping.Stop()
		state.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.log.Debug("ws write error", "error", err)
				return
			}
			Messages.WithLabelValues("out").Inc()

		case <-state.C:
			data, err := json.Marshal(protocol.Response{Type: protocol.TypeState, Payload: c.sess.Snapshot()})
			if err != nil {
				c.log.Error("encode state", "error", err)
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case <-c.done:
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(kind, data)
}

// queue encodes and enqueues a message. A client that cannot keep up is
// disconnected rather than blocking the read loop.
func (c *Client) queue(resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("encode response", "type", resp.Type, "error", err)
		return
	}
	select {
	case c.Send <- data:
	case <-c.done:
	default:
		c.log.Warn("ws send buffer full, closing")
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}
