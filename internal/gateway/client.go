package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"callguard/internal/presence"
	"callguard/internal/relay"

	"github.com/gorilla/websocket"
)

type client struct {
	id     string
	userID string
	role   string
	scope  presence.Scope
	conn   *websocket.Conn
	groups []string // guarded by Hub.mu

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	opts Options
	log  *slog.Logger
}

func (c *client) enqueue(b []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump owns every write to the socket, including pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write failed", "err", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("ping failed", "err", err)
				return
			}
		case <-c.done:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// readPump decodes inbound frames and hands them to handle until the socket fails.
func (c *client) readPump(handle func(inbound)) {
	defer c.close()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected close", "err", err)
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(errorEvent(inbound{}, codeInvalidMessage, "malformed message"))
			continue
		}
		handle(msg)
	}
}

// reply queues ev for this connection only.
func (c *client) reply(ev relay.Event) {
	ev.To = c.userID
	b, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("reply marshal failed", "event", ev.Type, "err", err)
		return
	}
	if err := c.enqueue(b); err != nil {
		c.log.Debug("reply dropped", "event", ev.Type, "err", err)
	}
}
