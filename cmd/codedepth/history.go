package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"codedepth/internal/config"
	"codedepth/internal/history"
)

var (
	historyProjectFlag string
	historyLimitFlag   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analysis runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyProjectFlag, "project-path", "p", "",
		"Path to the project root (required)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10,
		"How many runs to list")

	_ = historyCmd.MarkFlagRequired("project-path")
}

func runHistory(cmd *cobra.Command, args []string) error {
	projectRoot, err := filepath.Abs(historyProjectFlag)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	cfg, err := config.LoadConfig(projectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := loggerFor(cfg)

	store, err := history.Open(projectRoot, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	runs, err := store.Recent(historyLimitFlag)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tFILES\tEDGES\tROOTS\tPROBLEMS\tPROBLEM ITEMS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Files, run.Edges, run.Roots, run.Problems,
			strings.Join(run.ProblemKeys, ", "))
	}
	return w.Flush()
}
