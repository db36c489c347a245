package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"geo-cluster-pipeline/internal/api"
	"geo-cluster-pipeline/internal/config"
	"geo-cluster-pipeline/pkg/logging"
)

// @title Geo Cluster Pipeline API
// @version 1.0
// @description Normalizes regional indicators, selects k by Davies-Bouldin, clusters, interprets and renders the clusters on a map.
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", os.Getenv("GEOCLUSTER_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	srv, err := api.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize server", logging.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server stopped", logging.Err(err))
	}
	logger.Info("server exited")
}
