// Package indexer discovers the complete set of project files visible to
// the language server. Workspace-symbol search is query-driven rather than
// enumerable, so discovery unions several queries and keeps only files
// under the project root.
package indexer

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"codedepth/internal/errors"
	"codedepth/internal/logging"
	"codedepth/internal/lsp"
)

// DefaultRetryInterval is the delay between still-indexing retries
const DefaultRetryInterval = 100 * time.Millisecond

// SymbolSearcher is the one protocol operation the indexer needs
type SymbolSearcher interface {
	WorkspaceSymbol(ctx context.Context, query string) ([]lsp.SymbolInformation, error)
}

// Indexer enumerates in-project files via workspace-symbol queries
type Indexer struct {
	Client SymbolSearcher
	Logger *logging.Logger

	// RetryInterval overrides DefaultRetryInterval (tests use a short one)
	RetryInterval time.Duration
}

// queries returns the search strategies, in order: the '#' marker widens
// the search on rust-analyzer, then the empty query, then one query per
// lowercase letter. Best-effort completeness, not a guarantee.
func queries() []string {
	qs := []string{"#", ""}
	for ch := 'a'; ch <= 'z'; ch++ {
		qs = append(qs, string(ch))
	}
	return qs
}

// Files returns the deduplicated, sorted set of in-project file URIs.
// The first query is retried on the still-indexing error code at the
// configured interval; the retry budget is maxWait divided by the
// interval, and exhausting it is a terminal INDEXING_TIMEOUT. Any other
// server error is fatal immediately.
func (ix *Indexer) Files(ctx context.Context, rootURI string, maxWait time.Duration) ([]string, error) {
	interval := ix.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	qs := queries()

	symbols, err := ix.searchWithRetry(ctx, qs[0], maxWait, interval)
	if err != nil {
		return nil, err
	}

	// The server answered once, so the index is warm; later strategies
	// are additive and their failures only cost coverage.
	for _, q := range qs[1:] {
		more, err := ix.Client.WorkspaceSymbol(ctx, q)
		if err != nil {
			ix.Logger.Debug("workspace symbol query failed", map[string]interface{}{
				"query": q,
				"error": err.Error(),
			})
			continue
		}
		symbols = append(symbols, more...)
	}

	seen := make(map[string]struct{})
	var files []string
	for _, sym := range symbols {
		uri := sym.Location.URI
		if !strings.HasPrefix(uri, rootURI) {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		files = append(files, uri)
	}
	sort.Strings(files)

	ix.Logger.Info("workspace indexed", map[string]interface{}{
		"files":   len(files),
		"symbols": len(symbols),
	})

	return files, nil
}

// searchWithRetry issues the query, retrying only on CodeContentModified
func (ix *Indexer) searchWithRetry(ctx context.Context, query string, maxWait, interval time.Duration) ([]lsp.SymbolInformation, error) {
	retriesLeft := int(maxWait / interval)

	symbols, err := ix.Client.WorkspaceSymbol(ctx, query)
	for err != nil {
		var rpcErr *lsp.RPCError
		if !stderrors.As(err, &rpcErr) || rpcErr.Code != lsp.CodeContentModified {
			return nil, errors.New(errors.ProtocolError, "unexpected error from language server during indexing", err)
		}

		retriesLeft--
		if retriesLeft <= 0 {
			return nil, errors.Newf(errors.IndexingTimeout, err, "server still indexing after %s", maxWait)
		}

		ix.Logger.Debug("server still indexing, retrying", map[string]interface{}{
			"retriesLeft": retriesLeft,
		})

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		symbols, err = ix.Client.WorkspaceSymbol(ctx, query)
	}

	return symbols, nil
}
