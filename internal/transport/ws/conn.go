package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	outboundSize   = 64
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("outbound buffer full")
)

// Frame is the wire format in both directions: a named event plus an opaque
// JSON body.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn wraps one websocket connection. All writes go through the outbound
// channel and a single write pump, so services can push events from any
// goroutine without touching the socket.
type Conn struct {
	id     string
	userID int64
	sock   *websocket.Conn
	logger *zap.Logger

	outbound  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(id string, userID int64, sock *websocket.Conn, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Conn{
		id:       id,
		userID:   userID,
		sock:     sock,
		logger:   logger,
		outbound: make(chan []byte, outboundSize),
		closed:   make(chan struct{}),
	}
}

func (c *Conn) ID() string    { return c.id }
func (c *Conn) UserID() int64 { return c.userID }

// Send enqueues one event for delivery. Never blocks: a full outbound buffer
// means the client is not draining and the event is dropped.
func (c *Conn) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	select {
	case c.outbound <- frame:
		return nil
	default:
		c.logger.Warn("outbound buffer full, event dropped",
			zap.String("conn_id", c.id),
			zap.Int64("user_id", c.userID),
			zap.String("event", event),
		)
		return errSlowConsumer
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.sock.Close()
	})
}

// readPump feeds inbound frames to handle until the peer disconnects. Runs on
// the connection's owning goroutine; returns when the socket dies.
func (c *Conn) readPump(handle func(raw []byte)) {
	defer c.close()

	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read failed",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		handle(raw)
	}
}

// writePump drains the outbound channel onto the socket and keeps the
// connection alive with pings. One per connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.outbound:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
