// Package gateway is the websocket client to the chat gateway. One
// connection carries both directions: outbound runtime and messaging calls,
// and inbound tool calls (spawn, send) the gateway relays from chat sessions.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/eventq"
	"github.com/moxieworks/moxie/internal/sessions"
)

// envelope is one frame on the gateway socket. Frames with a method are
// requests; frames without one are responses matched to a pending call by ID.
type envelope struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ErrClosed is returned by calls issued after the connection closed.
var ErrClosed = errors.New("gateway connection closed")

// Client talks to the chat gateway over one websocket connection.
type Client struct {
	url   string
	token string

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan envelope
	closed  bool

	// Tools receives inbound tool calls. Nil clients reject them.
	tools Tools

	// appender receives transcript entries the gateway relays for local
	// persistence. Nil clients reject session.append.
	appender sessions.Appender
}

// New creates an unconnected client.
func New(url, token string) *Client {
	return &Client{
		url:     url,
		token:   token,
		pending: make(map[string]chan envelope),
	}
}

// SetTools registers the handler for inbound tool calls. Must be called
// before Connect.
func (c *Client) SetTools(t Tools) {
	c.tools = t
}

// SetAppender registers the sink for relayed transcript entries. Must be
// called before Connect.
func (c *Client) SetAppender(a sessions.Appender) {
	c.appender = a
}

// Connect dials the gateway and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dialing gateway %s: %w", c.url, err)
	}
	conn.SetReadLimit(4 * 1024 * 1024)

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(conn)
	debug.LogKV("gateway", "connected", "url", c.url)
	return nil
}

// Close tears the connection down and fails all pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "client closing")
}

func (c *Client) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			debug.LogKV("gateway", "read loop ended", "err", err)
			c.failPending()
			return
		}
		if env.Method != "" {
			go c.handleRequest(conn, env)
			continue
		}
		c.mu.Lock()
		ch := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if ch != nil {
			// Close may have closed ch between lookup and send.
			eventq.Offer(ch, env)
		}
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call issues one request and decodes the matched response into result.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	env := envelope{ID: uuid.NewString(), Method: method, Params: raw}
	ch := make(chan envelope, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[env.ID] = ch
	c.mu.Unlock()

	if err := wsjson.Write(ctx, conn, env); err != nil {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != "" {
			return fmt.Errorf("%s: %s", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

// callTimeout wraps call with a deadline.
func (c *Client) callTimeout(ctx context.Context, d time.Duration, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return c.call(ctx, method, params, result)
}
