package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"geo-cluster-pipeline/internal/api"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			if port != 0 {
				cli.Config.Server.Port = port
			}
			srv, err := api.NewServer(cli.Config, cli.Logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}
