package lsp

import (
	"context"
	"strings"

	"codedepth/internal/errors"
)

// requiredMethods are the three operations every downstream step depends
// on. A server missing any of them cannot feed the call-graph pipeline,
// so the handshake fails rather than degrading.
var requiredMethods = []string{
	MethodWorkspaceSymbol,
	MethodDocumentSymbol,
	MethodIncomingCalls,
}

// Handshake performs the initialize exchange for the project at rootURI,
// declaring hierarchical document-symbol support, and asserts the server
// advertises workspace-symbol search, document symbols, and
// call-hierarchy incoming calls. Any missing or disabled capability is a
// CAPABILITY_MISSING error and the run must not proceed.
func Handshake(ctx context.Context, client *Client, rootURI string) (*InitializeResult, error) {
	params := &InitializeParams{
		RootURI: rootURI,
		Capabilities: ClientCapabilities{
			TextDocument: &TextDocumentClientCapabilities{
				DocumentSymbol: &DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
			},
			Workspace: &WorkspaceClientCapabilities{
				Symbol: &WorkspaceSymbolClientCapabilities{},
			},
		},
	}

	result, err := client.Initialize(ctx, params)
	if err != nil {
		return nil, err
	}

	supported := map[string]bool{
		MethodWorkspaceSymbol: result.Capabilities.WorkspaceSymbolProvider.Enabled(),
		MethodDocumentSymbol:  result.Capabilities.DocumentSymbolProvider.Enabled(),
		MethodIncomingCalls:   result.Capabilities.CallHierarchyProvider.Enabled(),
	}

	var missing []string
	for _, method := range requiredMethods {
		if !supported[method] {
			missing = append(missing, method)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.CapabilityMissing, nil,
			"server does not support required methods: %s", strings.Join(missing, ", "))
	}

	if err := client.Initialized(); err != nil {
		return nil, err
	}

	return result, nil
}
