package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"codedepth/internal/logging"
)

// RPCError is a structured error returned by the language server. The
// code and message are surfaced verbatim; interpreting the code is the
// caller's responsibility.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// CodeContentModified is the error code rust-analyzer (and others) return
// while the background index is still being built. It is the only code
// the workspace indexer treats as retryable.
const CodeContentModified = -32801

// ErrConnClosed is returned for requests pending when the connection dies
var ErrConnClosed = fmt.Errorf("lsp connection closed")

// outMessage is an outgoing JSON-RPC 2.0 message
type outMessage struct {
	Jsonrpc string
	ID      *int
	Method  string
	Params  interface{}
	Result  interface{}

	hasResult bool
}

func (m outMessage) MarshalJSON() ([]byte, error) {
	// Responses must carry "result": null explicitly; requests must not.
	type request struct {
		Jsonrpc string      `json:"jsonrpc"`
		ID      *int        `json:"id,omitempty"`
		Method  string      `json:"method,omitempty"`
		Params  interface{} `json:"params,omitempty"`
	}
	type response struct {
		Jsonrpc string      `json:"jsonrpc"`
		ID      *int        `json:"id"`
		Result  interface{} `json:"result"`
	}
	if m.hasResult {
		return json.Marshal(response{Jsonrpc: m.Jsonrpc, ID: m.ID, Result: m.Result})
	}
	return json.Marshal(request{Jsonrpc: m.Jsonrpc, ID: m.ID, Method: m.Method, Params: m.Params})
}

// inMessage is an incoming JSON-RPC 2.0 message
type inMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Conn is a framed, correlated JSON-RPC connection over a byte stream
// pair. Each request carries a monotonically assigned id; responses are
// matched to their awaiting caller by id, tolerating out-of-order
// delivery.
type Conn struct {
	writer  io.Writer
	writeMu sync.Mutex

	nextID    int
	pending   map[int]chan *inMessage
	pendingMu sync.Mutex

	done     chan struct{}
	closeErr error
	once     sync.Once

	logger *logging.Logger
}

// NewConn wires a connection over the given streams and starts the read
// loop. The logger may not be nil.
func NewConn(r io.Reader, w io.Writer, logger *logging.Logger) *Conn {
	c := &Conn{
		writer:  w,
		pending: make(map[int]chan *inMessage),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go c.readLoop(bufio.NewReader(r))
	return c
}

// Call sends a request and decodes the matching response into result.
// A nil result discards the response payload. Server errors are returned
// as *RPCError.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	c.pendingMu.Lock()
	select {
	case <-c.done:
		c.pendingMu.Unlock()
		return ErrConnClosed
	default:
	}
	id := c.nextID
	c.nextID++
	respChan := make(chan *inMessage, 1)
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	msg := outMessage{Jsonrpc: "2.0", ID: &id, Method: method, Params: params}
	if err := c.writeMessage(msg); err != nil {
		c.forget(id)
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-respChan:
		if resp == nil {
			return ErrConnClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.done:
		return ErrConnClosed
	}
}

// Notify sends a notification (no response expected)
func (c *Conn) Notify(method string, params interface{}) error {
	return c.writeMessage(outMessage{Jsonrpc: "2.0", Method: method, Params: params})
}

// Close tears down the connection and fails all pending requests
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.failPending()
	})
	return nil
}

func (c *Conn) forget(id int) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Conn) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

func (c *Conn) writeMessage(msg outMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

func (c *Conn) readLoop(reader *bufio.Reader) {
	defer func() {
		c.once.Do(func() {
			close(c.done)
			c.failPending()
		})
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		msg, err := readMessage(reader)
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("read loop terminated", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}
		c.handleMessage(msg)
	}
}

// readMessage reads one header-delimited, length-prefixed message:
// a header block ending in a blank line, then exactly Content-Length
// bytes of UTF-8 JSON.
func readMessage(reader *bufio.Reader) (*inMessage, error) {
	headers := make(map[string]string)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	contentLengthStr, ok := headers["Content-Length"]
	if !ok {
		return nil, fmt.Errorf("malformed frame: missing Content-Length header")
	}
	contentLength, err := strconv.Atoi(contentLengthStr)
	if err != nil {
		return nil, fmt.Errorf("malformed frame: invalid Content-Length: %w", err)
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(reader, content); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	var msg inMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal frame body: %w", err)
	}
	return &msg, nil
}

func (c *Conn) handleMessage(msg *inMessage) {
	// A response: has an id and no method
	if msg.ID != nil && msg.Method == "" {
		c.pendingMu.Lock()
		respChan, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			respChan <- msg
		} else {
			c.logger.Debug("dropped uncorrelated response", map[string]interface{}{
				"id": *msg.ID,
			})
		}
		return
	}

	if msg.Method != "" {
		c.handleServerMessage(msg)
	}
}

// handleServerMessage handles server-initiated traffic. Notifications
// (diagnostics, progress, log messages) are not part of this pipeline and
// are dropped; server-to-client requests get an empty response so the
// server does not stall.
func (c *Conn) handleServerMessage(msg *inMessage) {
	switch msg.Method {
	case "window/logMessage", "window/showMessage":
		c.logger.Debug("server message", map[string]interface{}{
			"method": msg.Method,
			"params": string(msg.Params),
		})
	case "textDocument/publishDiagnostics", "$/progress":
		// High-volume notifications; nothing in the pipeline consumes them
	}

	if msg.ID != nil {
		resp := outMessage{Jsonrpc: "2.0", ID: msg.ID, hasResult: true}
		_ = c.writeMessage(resp)
	}
}
