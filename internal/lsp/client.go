package lsp

import (
	"context"
	"io"
	"os/exec"
	"time"

	"codedepth/internal/logging"
)

// Method names consumed by the pipeline
const (
	MethodInitialize      = "initialize"
	MethodInitialized     = "initialized"
	MethodShutdown        = "shutdown"
	MethodExit            = "exit"
	MethodWorkspaceSymbol = "workspace/symbol"
	MethodDocumentSymbol  = "textDocument/documentSymbol"
	MethodIncomingCalls   = "callHierarchy/incomingCalls"
)

// Client exposes the typed protocol operations the pipeline needs over a
// framed connection to a single language server.
type Client struct {
	conn   *Conn
	cmd    *exec.Cmd // nil when constructed over raw streams
	logger *logging.Logger
}

// NewClient wires a client over the given streams. Reads come from r
// (the server's stdout), writes go to w (the server's stdin).
func NewClient(r io.Reader, w io.Writer, logger *logging.Logger) *Client {
	return &Client{
		conn:   NewConn(r, w, logger),
		logger: logger,
	}
}

// Initialize performs the initialize request
func (c *Client) Initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error) {
	var result InitializeResult
	if err := c.conn.Call(ctx, MethodInitialize, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Initialized sends the post-handshake initialized notification
func (c *Client) Initialized() error {
	return c.conn.Notify(MethodInitialized, struct{}{})
}

// WorkspaceSymbol searches the workspace for symbols matching query.
// A null server result yields a nil slice.
func (c *Client) WorkspaceSymbol(ctx context.Context, query string) ([]SymbolInformation, error) {
	var result []SymbolInformation
	params := WorkspaceSymbolParams{Query: query}
	if err := c.conn.Call(ctx, MethodWorkspaceSymbol, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentSymbol fetches the symbols of one document. A null server
// result yields nil.
func (c *Client) DocumentSymbol(ctx context.Context, uri string) (*DocumentSymbolResponse, error) {
	var result *DocumentSymbolResponse
	params := DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: uri}}
	if err := c.conn.Call(ctx, MethodDocumentSymbol, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CallHierarchyIncomingCalls queries the callers of the given item.
// A null server result yields a nil slice.
func (c *Client) CallHierarchyIncomingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyIncomingCall, error) {
	var result []CallHierarchyIncomingCall
	params := CallHierarchyIncomingCallsParams{Item: item}
	if err := c.conn.Call(ctx, MethodIncomingCalls, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Close shuts the server down and tears down the connection. Shutdown
// is a request and must be answered before exit, so it gets a bounded
// wait; both are best-effort and a server that already died is not an
// error.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.conn.Call(ctx, MethodShutdown, nil, nil)
	_ = c.conn.Notify(MethodExit, nil)
	_ = c.conn.Close()

	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
	return nil
}
