package indexer

import (
	"context"
	"io"
	"testing"
	"time"

	"codedepth/internal/errors"
	"codedepth/internal/logging"
	"codedepth/internal/lsp"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
}

// fakeSearcher scripts workspace-symbol responses per query
type fakeSearcher struct {
	calls     []string
	responses func(call int, query string) ([]lsp.SymbolInformation, error)
}

func (f *fakeSearcher) WorkspaceSymbol(ctx context.Context, query string) ([]lsp.SymbolInformation, error) {
	call := len(f.calls)
	f.calls = append(f.calls, query)
	return f.responses(call, query)
}

func symAt(uri string) lsp.SymbolInformation {
	return lsp.SymbolInformation{
		Name:     "f",
		Kind:     lsp.KindFunction,
		Location: lsp.Location{URI: uri},
	}
}

func TestFilesUnionsStrategiesAndFiltersRoot(t *testing.T) {
	searcher := &fakeSearcher{
		responses: func(call int, query string) ([]lsp.SymbolInformation, error) {
			switch query {
			case "#":
				return []lsp.SymbolInformation{symAt("file:///proj/a.rs")}, nil
			case "":
				return []lsp.SymbolInformation{
					symAt("file:///proj/b.rs"),
					symAt("file:///usr/lib/std.rs"), // outside the project root
				}, nil
			case "c":
				return []lsp.SymbolInformation{symAt("file:///proj/a.rs")}, nil // duplicate
			}
			return nil, nil
		},
	}

	ix := &Indexer{Client: searcher, Logger: testLogger(), RetryInterval: time.Millisecond}
	files, err := ix.Files(context.Background(), "file:///proj/", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}

	want := []string{"file:///proj/a.rs", "file:///proj/b.rs"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	// All 28 strategies issued: '#', '', a..z
	if len(searcher.calls) != 28 {
		t.Errorf("query count = %d, want 28", len(searcher.calls))
	}
	if searcher.calls[0] != "#" || searcher.calls[1] != "" || searcher.calls[2] != "a" || searcher.calls[27] != "z" {
		t.Errorf("query order wrong: %v", searcher.calls[:3])
	}
}

func TestFilesRetryBound(t *testing.T) {
	stillIndexing := &lsp.RPCError{Code: lsp.CodeContentModified, Message: "content modified"}

	searcher := &fakeSearcher{
		responses: func(call int, query string) ([]lsp.SymbolInformation, error) {
			return nil, stillIndexing
		},
	}

	// 500ms budget at 100ms interval: exactly 5 attempts, then timeout.
	// The interval is scaled down so the test runs fast; the ratio is
	// what the retry budget derives from.
	ix := &Indexer{Client: searcher, Logger: testLogger(), RetryInterval: time.Millisecond}
	_, err := ix.Files(context.Background(), "file:///proj/", 5*time.Millisecond)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.HasCode(err, errors.IndexingTimeout) {
		t.Errorf("error code = %v, want INDEXING_TIMEOUT", errors.CodeOf(err))
	}
	if len(searcher.calls) != 5 {
		t.Errorf("attempts = %d, want exactly 5", len(searcher.calls))
	}
}

func TestFilesRecoversAfterIndexing(t *testing.T) {
	stillIndexing := &lsp.RPCError{Code: lsp.CodeContentModified, Message: "content modified"}

	searcher := &fakeSearcher{
		responses: func(call int, query string) ([]lsp.SymbolInformation, error) {
			if call < 2 {
				return nil, stillIndexing
			}
			if query == "#" {
				return []lsp.SymbolInformation{symAt("file:///proj/a.rs")}, nil
			}
			return nil, nil
		},
	}

	ix := &Indexer{Client: searcher, Logger: testLogger(), RetryInterval: time.Millisecond}
	files, err := ix.Files(context.Background(), "file:///proj/", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(files) != 1 || files[0] != "file:///proj/a.rs" {
		t.Errorf("files = %v", files)
	}
}

func TestFilesNonRetryableErrorIsFatal(t *testing.T) {
	searcher := &fakeSearcher{
		responses: func(call int, query string) ([]lsp.SymbolInformation, error) {
			return nil, &lsp.RPCError{Code: -32603, Message: "internal error"}
		},
	}

	ix := &Indexer{Client: searcher, Logger: testLogger(), RetryInterval: time.Millisecond}
	_, err := ix.Files(context.Background(), "file:///proj/", 100*time.Millisecond)

	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !errors.HasCode(err, errors.ProtocolError) {
		t.Errorf("error code = %v, want PROTOCOL_ERROR", errors.CodeOf(err))
	}
	if len(searcher.calls) != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on unexpected codes)", len(searcher.calls))
	}
}

func TestFilesLaterStrategyFailuresAreTolerated(t *testing.T) {
	searcher := &fakeSearcher{
		responses: func(call int, query string) ([]lsp.SymbolInformation, error) {
			if query == "#" {
				return []lsp.SymbolInformation{symAt("file:///proj/a.rs")}, nil
			}
			return nil, &lsp.RPCError{Code: -32603, Message: "flaky"}
		},
	}

	ix := &Indexer{Client: searcher, Logger: testLogger(), RetryInterval: time.Millisecond}
	files, err := ix.Files(context.Background(), "file:///proj/", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("files = %v", files)
	}
}

func TestFilesBoundaryPrefixExact(t *testing.T) {
	searcher := &fakeSearcher{
		responses: func(call int, query string) ([]lsp.SymbolInformation, error) {
			if query != "#" {
				return nil, nil
			}
			return []lsp.SymbolInformation{
				symAt("file:///proj/src/deep/x.rs"),
				symAt("file:///project-other/y.rs"),
				symAt("file:///other/z.rs"),
			}, nil
		},
	}

	ix := &Indexer{Client: searcher, Logger: testLogger(), RetryInterval: time.Millisecond}
	files, err := ix.Files(context.Background(), "file:///proj/", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(files) != 1 || files[0] != "file:///proj/src/deep/x.rs" {
		t.Errorf("files = %v, want only the in-root file", files)
	}
}
