package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var ErrNotConnected = errors.New("realtime channel not connected")

// Channel is the client side of the backend realtime connection. Run keeps
// it connected; inbound envelopes from every connection are delivered on
// Events in arrival order.
type Channel struct {
	url       string
	header    func() http.Header
	dialer    *websocket.Dialer
	backoff   time.Duration
	onConnect func(ctx context.Context)

	events chan Envelope

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewChannel(url string, header func() http.Header, backoff time.Duration) *Channel {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Channel{
		url:     url,
		header:  header,
		dialer:  websocket.DefaultDialer,
		backoff: backoff,
		events:  make(chan Envelope, 256),
	}
}

// OnConnect registers a hook run after every successful dial.
func (c *Channel) OnConnect(fn func(ctx context.Context)) {
	c.onConnect = fn
}

func (c *Channel) Events() <-chan Envelope {
	return c.events
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run dials and reads until ctx is done, redialing after backoff when the
// connection drops. Events is closed when Run returns.
func (c *Channel) Run(ctx context.Context) {
	defer close(c.events)

	for {
		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Realtime: connection lost: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Channel) connectAndRead(ctx context.Context) error {
	var header http.Header
	if c.header != nil {
		header = c.header()
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	log.Printf("Realtime: connected to %s", c.url)

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go c.pingLoop(conn, done)

	if c.onConnect != nil {
		go c.onConnect(ctx)
	}

	return c.readPump(ctx, conn)
}

func (c *Channel) readPump(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Realtime: dropping malformed frame: %v", err)
			continue
		}

		select {
		case c.events <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Emit writes one event. It returns once the frame is written to the
// socket; there is no server acknowledgement at this layer.
func (c *Channel) Emit(ctx context.Context, event string, payload interface{}) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, raw)
}
