package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"

	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
)

type ClientConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

// Client adapts a gorilla connection to Transport. Reads happen on the caller's
// goroutine through ReadFrame; all data writes go through the write pump.
type Client struct {
	id        string
	conn      *gorillaWS.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	cfg       ClientConfig
	log       *logger.Logger
}

func NewClient(conn *gorillaWS.Conn, cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, cfg.SendBufferSize),
		done: make(chan struct{}),
		cfg:  cfg,
		log:  log,
	}

	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if cfg.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		})
	}

	return c
}

func (c *Client) ID() string {
	return c.id
}

// Start launches the write pump.
func (c *Client) Start() {
	go c.writePump()
}

func (c *Client) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == gorillaWS.TextMessage || messageType == gorillaWS.BinaryMessage {
			return data, nil
		}
	}
}

// Send queues frame for the write pump. It fails when the connection is closed
// or the queue stays full until ctx expires.
func (c *Client) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return commonerrors.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return commonerrors.ErrConnectionClosed
	case <-ctx.Done():
		return commonerrors.ErrSendTimeout.WithCause(ctx.Err())
	}
}

// Close sends a close frame with code and tears the connection down. Only the first call has effect.
func (c *Client) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteWait)
		if werr := c.conn.WriteControl(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(code, reason), deadline); werr != nil && werr != gorillaWS.ErrCloseSent {
			c.log.Debugf("websocket close frame not sent conn_id=%s: %v", c.id, werr)
		}
		err = c.conn.Close()
	})
	return err
}

func (c *Client) writePump() {
	var tick <-chan time.Time
	if c.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.TextMessage, message); err != nil {
				c.log.Debugf("websocket write failed conn_id=%s: %v", c.id, err)
				_ = c.Close(gorillaWS.CloseInternalServerErr, "write failed")
				return
			}

		case <-tick:
			if err := c.conn.WriteControl(gorillaWS.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				_ = c.Close(gorillaWS.CloseInternalServerErr, "write failed")
				return
			}
		}
	}
}
