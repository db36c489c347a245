package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/pkg/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type cliContextKey struct{}

// rootOptions holds global CLI flags.
type rootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
}

// cliContext carries initialized dependencies through the command tree.
type cliContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "pipeline",
		Short:   "Cluster regional indicators and map the clusters",
		Long:    "pipeline normalizes a CSV of per-region indicators, picks k by the Davies-Bouldin index,\nclusters the regions with k-means, flags their distinguishing features and renders them\non a choropleth map joined from a shapefile or GeoJSON.",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: env only)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")

	cmd.AddCommand(newRunCmd(), newEvaluateCmd(), newServeCmd())
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *rootOptions) error {
	switch opts.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format: %s (must be text or json)", opts.OutputFormat)
	}

	cfg, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	// Keep stdout for command output.
	if cfg.Log.OutputPaths == nil {
		cfg.Log.OutputPaths = []string{"stderr"}
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, &cliContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
	}))
	return nil
}

func getCLIContext(cmd *cobra.Command) (*cliContext, error) {
	c, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
	if !ok || c == nil {
		return nil, fmt.Errorf("CLI context not initialized")
	}
	return c, nil
}

// printJSON writes v indented.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes a tab-aligned table.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}
