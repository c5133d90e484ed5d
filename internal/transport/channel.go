package transport

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Backoff
	GivenUp
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Backoff:
		return "backoff"
	case GivenUp:
		return "given_up"
	default:
		return "disconnected"
	}
}

var ErrNotOpen = errors.New("transport: channel not open")

// Handlers are the channel's capability callbacks. Nil fields default to
// no-ops, so consumers declare only what they react to.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(err error)
	OnGiveUp  func()
}

func (h *Handlers) normalize() {
	if h.OnOpen == nil {
		h.OnOpen = func() {}
	}
	if h.OnMessage == nil {
		h.OnMessage = func([]byte) {}
	}
	if h.OnClose == nil {
		h.OnClose = func(error) {}
	}
	if h.OnGiveUp == nil {
		h.OnGiveUp = func() {}
	}
}

type Options struct {
	URL         string
	Dialer      Dialer
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func (o *Options) normalize() {
	if o.Dialer == nil {
		o.Dialer = NewWebsocketDialer()
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
}

// Channel is a push connection that reconnects itself with capped exponential
// backoff. It gives up for good after MaxAttempts consecutive failures; only
// Connect revives it after that.
type Channel struct {
	opts Options
	h    Handlers

	mu        sync.Mutex
	state     State
	conn      Conn
	attempts  int
	timer     *time.Timer
	active    bool
	gen       int
	subscribe []byte
}

func NewChannel(opts Options, h Handlers) *Channel {
	opts.normalize()
	h.normalize()
	return &Channel{opts: opts, h: h}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe stores a payload that is (re)sent every time the channel reaches
// Open. Sent immediately when already open.
func (c *Channel) Subscribe(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.subscribe = data
	conn := c.conn
	open := c.state == Open
	c.mu.Unlock()

	if open && conn != nil {
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	return nil
}

// Send writes one message on the open channel. It never queues.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	open := c.state == Open
	c.mu.Unlock()

	if !open || conn == nil {
		return ErrNotOpen
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) Connect() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.dial(gen)
}

// Disconnect tears the channel down immediately: pending reconnect timers are
// cancelled and the socket is closed. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.active = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) dial(gen int) {
	c.mu.Lock()
	if !c.active || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	c.mu.Unlock()

	go func() {
		conn, err := c.opts.Dialer.Dial(c.opts.URL)

		c.mu.Lock()
		if !c.active || c.gen != gen {
			c.mu.Unlock()
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			c.mu.Unlock()
			c.dropped(gen, err)
			return
		}
		c.conn = conn
		c.state = Open
		c.attempts = 0
		pending := c.subscribe
		c.mu.Unlock()

		c.h.OnOpen()
		if pending != nil {
			if werr := conn.WriteMessage(websocket.TextMessage, pending); werr != nil {
				log.Printf("transport: subscribe send failed: %v", werr)
			}
		}
		c.readLoop(conn, gen)
	}()
}

func (c *Channel) readLoop(conn Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(gen, err)
			return
		}
		c.h.OnMessage(data)
	}
}

func (c *Channel) dropped(gen int, err error) {
	c.mu.Lock()
	if !c.active || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	if c.attempts >= c.opts.MaxAttempts {
		c.state = GivenUp
		c.active = false
		c.timer = nil
		c.mu.Unlock()
		log.Printf("transport: giving up after %d reconnect attempts: %v", c.opts.MaxAttempts, err)
		c.h.OnGiveUp()
		return
	}

	delay := Delay(c.attempts, c.opts.BaseDelay, c.opts.MaxDelay)
	c.attempts++
	c.state = Backoff
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if !c.active || c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		c.dial(gen)
	})
	c.mu.Unlock()
	c.h.OnClose(err)
}
