package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"codedepth/internal/callgraph"
	"codedepth/internal/config"
	"codedepth/internal/depths"
	"codedepth/internal/history"
	"codedepth/internal/indexer"
	"codedepth/internal/logging"
	"codedepth/internal/lsp"
	"codedepth/internal/report"
)

var (
	projectPathFlag  string
	serverFlag       string
	ignoreReFlag     string
	indexTimeoutFlag time.Duration
	outFlag          string
	noHistoryFlag    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a project's call depths",
	Long: `Analyze launches the configured language server, collects the
project's call graph, and prints functions grouped into "ok" and
"problems" depending on whether their call depths are consistent.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&projectPathFlag, "project-path", "p", "",
		"Path to the project root (required)")
	analyzeCmd.Flags().StringVarP(&serverFlag, "server", "s", "",
		"Language server command line, e.g. 'rust-analyzer'")
	analyzeCmd.Flags().StringVar(&ignoreReFlag, "ignore-re", "",
		"Regex of short item names to exclude from the graph (default '.*test.*')")
	analyzeCmd.Flags().DurationVar(&indexTimeoutFlag, "index-timeout", 0,
		"How long to wait for the server's background indexing (default 5s)")
	analyzeCmd.Flags().StringVarP(&outFlag, "out", "o", "",
		"Write results to a file instead of stdout (.gz compresses)")
	analyzeCmd.Flags().BoolVar(&noHistoryFlag, "no-history", false,
		"Skip recording this run in the history database")

	_ = analyzeCmd.MarkFlagRequired("project-path")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	startedAt := time.Now().UTC()

	projectRoot, err := filepath.Abs(projectPathFlag)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(projectRoot); err == nil {
		projectRoot = resolved
	}
	if info, err := os.Stat(projectRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("project path is not a directory: %s", projectRoot)
	}

	cfg, err := config.LoadConfig(projectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := loggerFor(cfg)

	serverCommand := serverCommandLine(cfg)
	if serverCommand == "" {
		return fmt.Errorf("no language server configured: pass --server or set server.command in .codedepth/config.json")
	}

	ignoreSource := cfg.Analysis.IgnoreRe
	if cmd.Flags().Changed("ignore-re") {
		ignoreSource = ignoreReFlag
	}
	var ignore *regexp.Regexp
	if ignoreSource != "" {
		ignore, err = regexp.Compile(ignoreSource)
		if err != nil {
			return fmt.Errorf("invalid --ignore-re %q: %w", ignoreSource, err)
		}
	}

	indexTimeout := time.Duration(cfg.Analysis.IndexTimeoutMs) * time.Millisecond
	if cmd.Flags().Changed("index-timeout") {
		indexTimeout = indexTimeoutFlag
	}
	retryInterval := time.Duration(cfg.Analysis.RetryIntervalMs) * time.Millisecond

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rootURI := lsp.FileURI(projectRoot)

	client, err := lsp.Spawn(serverCommand, projectRoot, logger)
	if err != nil {
		return fmt.Errorf("spawn language server: %w", err)
	}
	defer client.Close()

	if _, err := lsp.Handshake(ctx, client, rootURI); err != nil {
		return fmt.Errorf("initialize language server: %w", err)
	}

	ix := &indexer.Indexer{Client: client, Logger: logger, RetryInterval: retryInterval}
	files, err := ix.Files(ctx, rootURI, indexTimeout)
	if err != nil {
		return fmt.Errorf("index workspace: %w", err)
	}

	builder := &callgraph.Builder{Client: client, Logger: logger}
	edges, err := builder.Build(ctx, files, rootURI)
	if err != nil {
		return fmt.Errorf("build call graph: %w", err)
	}

	edges = report.FilterEdges(edges, ignore, rootURI)
	roots := depths.Roots(edges)
	itemPaths := depths.PathsFromRoots(edges)
	result := report.Build(itemPaths, rootURI)

	if outFlag != "" {
		if err := report.WriteFile(outFlag, result); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	} else {
		if err := report.Write(os.Stdout, result); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}

	if cfg.History.Enabled && !noHistoryFlag {
		if err := recordRun(projectRoot, logger, history.Run{
			StartedAt:   startedAt,
			ProjectRoot: projectRoot,
			Files:       len(files),
			Edges:       len(edges),
			Roots:       len(roots),
			Problems:    len(result.Problems),
			ProblemKeys: sortedKeys(result.Problems),
		}); err != nil {
			// History is bookkeeping; a failed insert must not fail the run
			logger.Warn("failed to record run history", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return nil
}

func serverCommandLine(cfg *config.Config) string {
	if serverFlag != "" {
		return serverFlag
	}
	if cfg.Server.Command == "" {
		return ""
	}
	return strings.TrimSpace(cfg.Server.Command + " " + strings.Join(cfg.Server.Args, " "))
}

func recordRun(projectRoot string, logger *logging.Logger, run history.Run) error {
	store, err := history.Open(projectRoot, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Record(run)
	return err
}

func sortedKeys(m map[string][][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
