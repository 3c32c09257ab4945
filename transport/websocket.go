package transport

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/samsarahq/go/oops"
)

// wsEnvelope is the id/type/message framing used for the subscription
// socket protocol: each subscribe/unsubscribe/update carries an id
// correlating requests to replies over one shared connection.
type wsEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

type wsSubscribeMessage struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type wsResultMessage struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message string   `json:"message"`
		Path    []string `json:"path"`
	} `json:"errors"`
}

// WebSocketClient implements Subscription over one shared gorilla/websocket
// connection, demultiplexing replies by envelope id.
type WebSocketClient struct {
	URL string

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan<- Response
	nextID  uint64
}

// Subscribe implements Subscription.
func (c *WebSocketClient) Subscribe(ctx context.Context, req Request) (<-chan Response, error) {
	if err := c.ensureConn(); err != nil {
		return nil, err
	}

	id := c.newID()
	out := make(chan Response, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.pending = map[string]chan<- Response{}
	}
	c.pending[id] = out
	c.mu.Unlock()

	msg, err := json.Marshal(wsSubscribeMessage{Query: req.Query, Variables: req.Variables})
	if err != nil {
		return nil, oops.Wrapf(err, "encoding subscribe message")
	}
	if err := c.writeEnvelope(wsEnvelope{ID: id, Type: "subscribe", Message: msg}); err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		c.unsubscribe(id)
	}()

	return out, nil
}

func (c *WebSocketClient) ensureConn() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)
	if err != nil {
		return oops.Wrapf(err, "dialing %s", c.URL)
	}
	c.conn = conn
	go c.readLoop(conn)
	return nil
}

func (c *WebSocketClient) readLoop(conn *websocket.Conn) {
	for {
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			c.closeAll(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		c.mu.Unlock()
		if !ok {
			continue
		}

		switch env.Type {
		case "result":
			var result wsResultMessage
			if err := json.Unmarshal(env.Message, &result); err != nil {
				ch <- Response{Error: err}
				continue
			}
			resp := Response{Data: result.Data}
			for _, e := range result.Errors {
				resp.Errors = append(resp.Errors, GraphQLError{Message: e.Message, Path: e.Path})
			}
			ch <- resp
		case "done":
			c.unsubscribe(env.ID)
		}
	}
}

func (c *WebSocketClient) writeEnvelope(env wsEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return oops.Errorf("transport: websocket not connected")
	}
	return c.conn.WriteJSON(env)
}

func (c *WebSocketClient) unsubscribe(id string) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	conn := c.conn
	c.mu.Unlock()

	if ok {
		close(ch)
	}
	if conn != nil {
		_ = c.writeEnvelope(wsEnvelope{ID: id, Type: "unsubscribe"})
	}
}

func (c *WebSocketClient) closeAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.conn = nil
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- Response{Error: err}
		close(ch)
	}
}

func (c *WebSocketClient) newID() string {
	n := atomic.AddUint64(&c.nextID, 1)
	return formatID(n)
}

func formatID(n uint64) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 20)
	for n > 0 {
		buf = append(buf, digits[n%10])
		n /= 10
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
