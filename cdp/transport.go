package cdp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is a persistent duplex message stream carrying newline-free JSON
// protocol messages. Send must be safe for concurrent use; Receive is called
// from a single reader goroutine.
type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// wsTransport adapts a websocket connection to the Transport interface.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialWebSocket opens a websocket transport to a remote-debugging endpoint.
func DialWebSocket(ctx context.Context, wsURL string) (Transport, error) {
	dialer := websocket.Dialer{
		// Screenshot payloads routinely exceed the default buffer sizes.
		ReadBufferSize:  1 << 20,
		WriteBufferSize: 1 << 20,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("cdp: dial %s: status %d: %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("cdp: dial %s: %w", wsURL, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
