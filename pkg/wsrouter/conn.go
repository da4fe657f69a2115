package wsrouter

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn wraps a websocket connection so that handlers of several members may
// write to it concurrently.
type Conn struct {
	*websocket.Conn
	wmu         sync.Mutex
	readTimeout time.Duration
}

func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

func (c *Conn) WriteJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.Conn.WriteJSON(v)
}

// WriteClose sends a close frame with the given code.
func (c *Conn) WriteClose(code int, text string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

// WritePing sends a ping frame. The peer answers with a pong, which extends
// the read deadline set by SetReadTimeout.
func (c *Conn) WritePing() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// SetReadTimeout makes reads fail once the peer stays silent for longer than
// timeout. Every received message or pong extends the deadline. It must be
// called before the connection is served.
func (c *Conn) SetReadTimeout(timeout time.Duration) error {
	c.readTimeout = timeout
	c.Conn.SetPongHandler(func(string) error {
		return c.extendReadDeadline()
	})

	return c.extendReadDeadline()
}

func (c *Conn) extendReadDeadline() error {
	if c.readTimeout <= 0 {
		return nil
	}

	return c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
}
