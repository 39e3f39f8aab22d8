// Package callgraph turns per-file document symbols and call-hierarchy
// queries into the project's directed caller→callee edge set.
package callgraph

import (
	"context"
	stderrors "errors"
	"strings"

	"codedepth/internal/errors"
	"codedepth/internal/logging"
	"codedepth/internal/lsp"
)

// SymbolClient is the protocol surface the builder consumes
type SymbolClient interface {
	DocumentSymbol(ctx context.Context, uri string) (*lsp.DocumentSymbolResponse, error)
	CallHierarchyIncomingCalls(ctx context.Context, item lsp.CallHierarchyItem) ([]lsp.CallHierarchyIncomingCall, error)
}

// Builder produces the caller→callee edge set for a project
type Builder struct {
	Client SymbolClient
	Logger *logging.Logger
}

type definition struct {
	uri string
	sym lsp.DocumentSymbol
}

// Build fetches every file's document symbols, keeps function and method
// definitions with their exact ranges, and resolves each definition's
// incoming calls. Callers outside rootURI are discarded. A failed
// incoming-calls query skips that one definition (logged at debug);
// everything else is fatal.
func (b *Builder) Build(ctx context.Context, files []string, rootURI string) ([]Edge, error) {
	var defs []definition
	for _, file := range files {
		resp, err := b.Client.DocumentSymbol(ctx, file)
		if err != nil {
			return nil, errors.Newf(errors.ProtocolError, err, "document symbols for %s", trimRoot(file, rootURI))
		}
		if resp == nil {
			continue
		}
		if resp.IsFlat() {
			// Flat symbols lack the selection range that pins the name
			// token, and callers are matched by exact ranges.
			return nil, errors.Newf(errors.UnsupportedShape, nil,
				"server returned flat document symbols for %s; hierarchical symbols are required", trimRoot(file, rootURI))
		}

		for _, sym := range flatten(resp.Nested) {
			defs = append(defs, definition{uri: file, sym: sym})
		}
	}

	var edges []Edge
	for _, def := range defs {
		target := itemFromSymbol(def.uri, def.sym)

		calls, err := b.Client.CallHierarchyIncomingCalls(ctx, target)
		if err != nil {
			var rpcErr *lsp.RPCError
			if !stderrors.As(err, &rpcErr) {
				// Not a server-side error: the transport itself failed
				return nil, err
			}
			b.Logger.Debug("incoming calls query failed, skipping definition", map[string]interface{}{
				"file":    trimRoot(target.URI, rootURI),
				"name":    target.Name,
				"line":    target.SelectionRange.Start.Line,
				"char":    target.SelectionRange.Start.Character,
				"code":    rpcErr.Code,
				"message": rpcErr.Message,
			})
			continue
		}

		for _, call := range calls {
			// Calls from outside the project (libraries, dependencies)
			// are out of scope.
			if !strings.HasPrefix(call.From.URI, rootURI) {
				continue
			}
			edges = append(edges, Edge{Caller: call.From, Callee: target})
		}
	}

	b.Logger.Info("call graph built", map[string]interface{}{
		"definitions": len(defs),
		"edges":       len(edges),
	})

	return edges, nil
}

// flatten walks the symbol tree with an explicit stack (deep nesting must
// not grow the call stack) and keeps function and method definitions.
// Children are pushed in reverse so document order is preserved.
func flatten(symbols []lsp.DocumentSymbol) []lsp.DocumentSymbol {
	var out []lsp.DocumentSymbol

	stack := make([]lsp.DocumentSymbol, len(symbols))
	for i := range symbols {
		stack[len(symbols)-1-i] = symbols[i]
	}

	for len(stack) > 0 {
		sym := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if sym.Kind == lsp.KindFunction || sym.Kind == lsp.KindMethod {
			out = append(out, sym)
		}

		for i := len(sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, sym.Children[i])
		}
	}

	return out
}

func trimRoot(uri, rootURI string) string {
	return strings.TrimPrefix(uri, rootURI)
}
