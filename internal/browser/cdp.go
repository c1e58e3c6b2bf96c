package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// cdpMessage is the wire envelope of the DevTools protocol. Commands carry
// an ID and get a matching response; events carry a method and no ID.
type cdpMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cdpReply struct {
	result json.RawMessage
	err    error
}

// conn is a single DevTools websocket connection to one page target.
type conn struct {
	ws  *websocket.Conn
	log *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   int64
	pending  map[int64]chan cdpReply
	handlers map[string]func(json.RawMessage)

	closed    chan struct{}
	closeOnce sync.Once
}

// dialCDP connects to a DevTools websocket endpoint and starts the read loop.
func dialCDP(ctx context.Context, wsURL string, log *zap.Logger) (*conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing devtools endpoint: %w", err)
	}
	c := &conn{
		ws:       ws,
		log:      log,
		pending:  make(map[int64]chan cdpReply),
		handlers: make(map[string]func(json.RawMessage)),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *conn) readLoop() {
	defer c.close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg cdpMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("unparseable devtools message", zap.Error(err))
			continue
		}
		if msg.ID != 0 {
			c.mu.Lock()
			ch := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ch == nil {
				continue
			}
			reply := cdpReply{result: msg.Result}
			if msg.Error != nil {
				reply.err = fmt.Errorf("devtools error %d: %s", msg.Error.Code, msg.Error.Message)
			}
			ch <- reply
			continue
		}
		c.mu.Lock()
		handler := c.handlers[msg.Method]
		c.mu.Unlock()
		if handler != nil {
			handler(msg.Params)
		}
	}
}

// call issues one protocol command and decodes its result into out (out may
// be nil for commands whose result the caller ignores).
func (c *conn) call(ctx context.Context, method string, params, out any) error {
	var rawParams json.RawMessage
	if params != nil {
		var err error
		rawParams, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan cdpReply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(cdpMessage{ID: id, Method: method, Params: rawParams})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case reply := <-ch:
		if reply.err != nil {
			return reply.err
		}
		if out != nil && len(reply.result) > 0 {
			return json.Unmarshal(reply.result, out)
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("devtools connection closed during %s", method)
	}
}

// on registers an event handler for a protocol method. Handlers run on the
// read loop goroutine and must not block.
func (c *conn) on(method string, fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = fn
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
		c.mu.Lock()
		for id, ch := range c.pending {
			ch <- cdpReply{err: fmt.Errorf("connection closed")}
			delete(c.pending, id)
		}
		c.mu.Unlock()
	})
}
