package lsp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Position is a zero-based line/character offset in a document
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end position pair in a document
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a specific document
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// SymbolKind is the LSP symbol kind enumeration
type SymbolKind int

const (
	// KindMethod is the LSP symbol kind for methods
	KindMethod SymbolKind = 6
	// KindFunction is the LSP symbol kind for free functions
	KindFunction SymbolKind = 12
)

// SymbolTag is the LSP symbol tag enumeration
type SymbolTag int

// SymbolInformation is a flat symbol entry as returned by workspace/symbol
type SymbolInformation struct {
	Name          string      `json:"name"`
	Kind          SymbolKind  `json:"kind"`
	Tags          []SymbolTag `json:"tags,omitempty"`
	Location      Location    `json:"location"`
	ContainerName string      `json:"containerName,omitempty"`
}

// DocumentSymbol is a hierarchical symbol entry with exact per-symbol ranges
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Tags           []SymbolTag      `json:"tags,omitempty"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// DocumentSymbolResponse is the polymorphic textDocument/documentSymbol
// result: either a flat SymbolInformation list or a nested DocumentSymbol
// tree. The two cases are distinguished by the presence of a "location"
// field on the first element.
type DocumentSymbolResponse struct {
	Flat   []SymbolInformation
	Nested []DocumentSymbol

	flat bool
}

// IsFlat reports whether the server returned the flat shape
func (r *DocumentSymbolResponse) IsFlat() bool {
	return r.flat
}

// UnmarshalJSON decodes either response shape
func (r *DocumentSymbolResponse) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("document symbol response is not an array: %w", err)
	}

	if len(elems) == 0 {
		r.Nested = []DocumentSymbol{}
		return nil
	}

	var probe struct {
		Location *Location `json:"location"`
	}
	if err := json.Unmarshal(elems[0], &probe); err != nil {
		return err
	}

	if probe.Location != nil {
		r.flat = true
		return json.Unmarshal(data, &r.Flat)
	}
	return json.Unmarshal(data, &r.Nested)
}

// MarshalJSON encodes whichever shape is populated
func (r DocumentSymbolResponse) MarshalJSON() ([]byte, error) {
	if r.flat {
		return json.Marshal(r.Flat)
	}
	return json.Marshal(r.Nested)
}

// CallHierarchyItem is a located symbol as used by call-hierarchy queries.
// Data is an opaque server-issued token; it is carried back verbatim on
// follow-up requests but excluded from item identity.
type CallHierarchyItem struct {
	Name           string          `json:"name"`
	Kind           SymbolKind      `json:"kind"`
	Tags           []SymbolTag     `json:"tags,omitempty"`
	Detail         string          `json:"detail,omitempty"`
	URI            string          `json:"uri"`
	Range          Range           `json:"range"`
	SelectionRange Range           `json:"selectionRange"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// CallHierarchyIncomingCall pairs a caller item with its call-site ranges
type CallHierarchyIncomingCall struct {
	From       CallHierarchyItem `json:"from"`
	FromRanges []Range           `json:"fromRanges"`
}

// Request parameter types

// WorkspaceSymbolParams are the parameters of workspace/symbol
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// TextDocumentIdentifier identifies a document by URI
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// DocumentSymbolParams are the parameters of textDocument/documentSymbol
type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// CallHierarchyIncomingCallsParams are the parameters of callHierarchy/incomingCalls
type CallHierarchyIncomingCallsParams struct {
	Item CallHierarchyItem `json:"item"`
}

// Initialize handshake types

// DocumentSymbolClientCapabilities advertises document-symbol support
type DocumentSymbolClientCapabilities struct {
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport"`
}

// TextDocumentClientCapabilities advertises per-document capabilities
type TextDocumentClientCapabilities struct {
	DocumentSymbol *DocumentSymbolClientCapabilities `json:"documentSymbol,omitempty"`
}

// WorkspaceSymbolClientCapabilities advertises workspace-symbol support
type WorkspaceSymbolClientCapabilities struct{}

// WorkspaceClientCapabilities advertises workspace-level capabilities
type WorkspaceClientCapabilities struct {
	Symbol *WorkspaceSymbolClientCapabilities `json:"symbol,omitempty"`
}

// ClientCapabilities is the capability set sent on initialize
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
}

// InitializeParams are the parameters of the initialize request
type InitializeParams struct {
	ProcessID    *int               `json:"processId"`
	RootURI      string             `json:"rootUri,omitempty"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

// ProviderCapability models server capability fields typed as
// `boolean | options-object` in the protocol.
type ProviderCapability struct {
	raw json.RawMessage
}

// UnmarshalJSON keeps the raw form for later inspection
func (p *ProviderCapability) UnmarshalJSON(data []byte) error {
	p.raw = append(p.raw[:0], data...)
	return nil
}

// MarshalJSON re-emits the raw form
func (p ProviderCapability) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

// Enabled reports whether the capability is advertised: explicit true, or
// any options object. Absent, null, and explicit false are all disabled.
func (p ProviderCapability) Enabled() bool {
	trimmed := bytes.TrimSpace(p.raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	var b bool
	if err := json.Unmarshal(trimmed, &b); err == nil {
		return b
	}
	return true
}

// ServerCapabilities is the subset of the server's advertised capability
// set this pipeline depends on
type ServerCapabilities struct {
	WorkspaceSymbolProvider ProviderCapability `json:"workspaceSymbolProvider,omitempty"`
	DocumentSymbolProvider  ProviderCapability `json:"documentSymbolProvider,omitempty"`
	CallHierarchyProvider   ProviderCapability `json:"callHierarchyProvider,omitempty"`
}

// ServerInfo identifies the server implementation
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the result of the initialize request
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// FileURI converts an absolute filesystem path to a file:// URI
func FileURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}
