package main

import (
	"github.com/spf13/cobra"

	"geo-cluster-pipeline/internal/pipeline"
)

func newEvaluateCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print SSW, SSB and DBI for each candidate k",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			spec, err := flags.spec()
			if err != nil {
				return err
			}
			report, err := pipeline.New(cli.Config, pipeline.Deps{Logger: cli.Logger}).Evaluate(cmd.Context(), spec)
			if err != nil {
				return err
			}
			if cli.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"table":    report.Table(),
					"best_k":   report.BestK,
					"best_dbi": report.BestDBI,
				})
			}
			return printEvaluation(cmd.OutOrStdout(), report)
		},
	}
	flags.register(cmd, false)
	return cmd
}
