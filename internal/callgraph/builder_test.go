package callgraph

import (
	"context"
	"fmt"
	"io"
	"testing"

	"codedepth/internal/errors"
	"codedepth/internal/logging"
	"codedepth/internal/lsp"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
}

// fakeSymbolClient scripts document symbols per file and incoming calls
// per definition name
type fakeSymbolClient struct {
	symbols map[string]*lsp.DocumentSymbolResponse
	symErr  map[string]error
	calls   map[string][]lsp.CallHierarchyIncomingCall
	callErr map[string]error

	incomingQueries []lsp.CallHierarchyItem
}

func (f *fakeSymbolClient) DocumentSymbol(ctx context.Context, uri string) (*lsp.DocumentSymbolResponse, error) {
	if err, ok := f.symErr[uri]; ok {
		return nil, err
	}
	return f.symbols[uri], nil
}

func (f *fakeSymbolClient) CallHierarchyIncomingCalls(ctx context.Context, item lsp.CallHierarchyItem) ([]lsp.CallHierarchyIncomingCall, error) {
	f.incomingQueries = append(f.incomingQueries, item)
	if err, ok := f.callErr[item.Name]; ok {
		return nil, err
	}
	return f.calls[item.Name], nil
}

func fn(name string, line int) lsp.DocumentSymbol {
	return lsp.DocumentSymbol{
		Name: name,
		Kind: lsp.KindFunction,
		Range: lsp.Range{
			Start: lsp.Position{Line: line},
			End:   lsp.Position{Line: line + 3},
		},
		SelectionRange: lsp.Range{
			Start: lsp.Position{Line: line, Character: 3},
			End:   lsp.Position{Line: line, Character: 3 + len(name)},
		},
	}
}

func nested(parent lsp.DocumentSymbol, children ...lsp.DocumentSymbol) lsp.DocumentSymbol {
	parent.Children = children
	return parent
}

func caller(uri, name string, line int) lsp.CallHierarchyIncomingCall {
	return lsp.CallHierarchyIncomingCall{
		From: itemAt(uri, name, line),
	}
}

func TestBuildCollectsEdges(t *testing.T) {
	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{
			"file:///proj/a.rs": {Nested: []lsp.DocumentSymbol{fn("callee", 1)}},
		},
		calls: map[string][]lsp.CallHierarchyIncomingCall{
			"callee": {
				caller("file:///proj/b.rs", "inside", 5),
				caller("file:///usr/lib/ext.rs", "outside", 9),
			},
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	edges, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1 (external caller dropped)", len(edges))
	}
	if edges[0].Caller.Name != "inside" || edges[0].Callee.Name != "callee" {
		t.Errorf("edge = %s -> %s", edges[0].Caller.Name, edges[0].Callee.Name)
	}
	if edges[0].Callee.URI != "file:///proj/a.rs" {
		t.Errorf("callee URI = %q", edges[0].Callee.URI)
	}
}

func TestBuildFlattensNestedSymbolsByKind(t *testing.T) {
	method := fn("method", 4)
	method.Kind = lsp.KindMethod
	class := lsp.DocumentSymbol{Name: "Widget", Kind: 5, // class: not a definition itself
		SelectionRange: lsp.Range{Start: lsp.Position{Line: 3, Character: 7}}}

	tree := []lsp.DocumentSymbol{
		fn("top", 1),
		nested(class, method, nested(fn("inner", 8), fn("innermost", 9))),
	}

	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{
			"file:///proj/a.rs": {Nested: tree},
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	if _, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var names []string
	for _, q := range client.incomingQueries {
		names = append(names, q.Name)
	}
	want := []string{"top", "method", "inner", "innermost"}
	if len(names) != len(want) {
		t.Fatalf("queried definitions = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("definition[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	// Exact ranges must be preserved through flattening
	if client.incomingQueries[1].SelectionRange.Start.Line != 4 {
		t.Errorf("selection range lost in flattening: %+v", client.incomingQueries[1].SelectionRange)
	}
}

func TestBuildDeeplyNestedTree(t *testing.T) {
	// A pathological 5000-deep chain must not exhaust the stack
	leaf := fn("leaf", 5000)
	tree := leaf
	for i := 4999; i > 0; i-- {
		tree = nested(fn(fmt.Sprintf("wrap%d", i), i), tree)
	}

	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{
			"file:///proj/deep.rs": {Nested: []lsp.DocumentSymbol{tree}},
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	if _, err := b.Build(context.Background(), []string{"file:///proj/deep.rs"}, "file:///proj/"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := len(client.incomingQueries); got != 5000 {
		t.Errorf("definitions = %d, want 5000", got)
	}
}

func TestBuildFlatResponseIsFatal(t *testing.T) {
	flat := &lsp.DocumentSymbolResponse{}
	// Simulate the flat shape via JSON, the way a server would deliver it
	if err := flat.UnmarshalJSON([]byte(`[{"name":"f","kind":12,"location":{"uri":"file:///proj/a.rs","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}}}]`)); err != nil {
		t.Fatal(err)
	}

	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{
			"file:///proj/a.rs": flat,
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	_, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/")
	if err == nil {
		t.Fatal("expected fatal error for flat document symbols")
	}
	if !errors.HasCode(err, errors.UnsupportedShape) {
		t.Errorf("error code = %v, want UNSUPPORTED_SHAPE", errors.CodeOf(err))
	}
}

func TestBuildSkipsFailedDefinitions(t *testing.T) {
	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{
			"file:///proj/a.rs": {Nested: []lsp.DocumentSymbol{fn("broken", 1), fn("healthy", 10)}},
		},
		callErr: map[string]error{
			"broken": &lsp.RPCError{Code: -32603, Message: "resolution failed"},
		},
		calls: map[string][]lsp.CallHierarchyIncomingCall{
			"healthy": {caller("file:///proj/b.rs", "user", 2)},
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	edges, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/")
	if err != nil {
		t.Fatalf("Build should recover per-definition failures, got %v", err)
	}
	if len(edges) != 1 || edges[0].Callee.Name != "healthy" {
		t.Errorf("edges = %+v", edges)
	}
}

func TestBuildTransportErrorIsFatal(t *testing.T) {
	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{
			"file:///proj/a.rs": {Nested: []lsp.DocumentSymbol{fn("f", 1)}},
		},
		callErr: map[string]error{
			"f": lsp.ErrConnClosed, // not a server-side RPC error
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	_, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/")
	if err == nil {
		t.Fatal("expected transport failure to be fatal")
	}
}

func TestBuildDocumentSymbolErrorIsFatal(t *testing.T) {
	client := &fakeSymbolClient{
		symErr: map[string]error{
			"file:///proj/a.rs": &lsp.RPCError{Code: -32603, Message: "boom"},
		},
	}

	b := &Builder{Client: client, Logger: testLogger()}
	_, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/")
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !errors.HasCode(err, errors.ProtocolError) {
		t.Errorf("error code = %v, want PROTOCOL_ERROR", errors.CodeOf(err))
	}
}

func TestBuildNullSymbolsSkipsFile(t *testing.T) {
	client := &fakeSymbolClient{
		symbols: map[string]*lsp.DocumentSymbolResponse{}, // nil for every file
	}

	b := &Builder{Client: client, Logger: testLogger()}
	edges, err := b.Build(context.Background(), []string{"file:///proj/a.rs"}, "file:///proj/")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("edges = %+v, want none", edges)
	}
}
