package transport

import "github.com/fasthttp/websocket"

// Conn is the subset of a websocket connection the channel uses.
// *websocket.Conn satisfies it directly.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(url string) (Conn, error)
}

type websocketDialer struct {
	d *websocket.Dialer
}

// NewWebsocketDialer returns the production dialer.
func NewWebsocketDialer() Dialer {
	return websocketDialer{d: websocket.DefaultDialer}
}

func (w websocketDialer) Dial(url string) (Conn, error) {
	conn, _, err := w.d.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
