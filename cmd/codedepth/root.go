package main

import (
	"github.com/spf13/cobra"

	"codedepth/internal/config"
	"codedepth/internal/logging"
	"codedepth/internal/version"
)

var (
	// verboseFlag is the CLI -v flag count
	verboseFlag int
)

var rootCmd = &cobra.Command{
	Use:   "codedepth",
	Short: "codedepth - call-depth consistency analyzer",
	Long: `codedepth drives a language server over stdio, builds the project's
call graph from call-hierarchy queries, and reports functions that are
reached from entry points at inconsistent depths via genuinely distinct
call chains.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("codedepth version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v",
		"Increase log verbosity (repeat for more: -v info, -vv debug)")
}

// loggerFor builds the command logger from the project's logging
// config and the -v count. Logs go to stderr; stdout is reserved for
// analysis results.
func loggerFor(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(loggerConfig(cfg, verboseFlag))
}

// loggerConfig merges the configured logging section with the -v
// count. Format always comes from config; the flag wins over the
// configured level when given. Unknown config values keep the
// defaults.
func loggerConfig(cfg *config.Config, verbose int) logging.Config {
	lc := logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
	}

	if cfg != nil {
		if logging.Format(cfg.Logging.Format) == logging.JSONFormat {
			lc.Format = logging.JSONFormat
		}
		switch level := logging.LogLevel(cfg.Logging.Level); level {
		case logging.DebugLevel, logging.InfoLevel, logging.WarnLevel, logging.ErrorLevel:
			lc.Level = level
		}
	}

	if verbose > 0 {
		lc.Level = logging.LevelFromVerbosity(verbose)
	}

	return lc
}
