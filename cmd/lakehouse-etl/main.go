package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tunelake/lakehouse-etl/internal/config"
	"github.com/tunelake/lakehouse-etl/internal/etl"
	"github.com/tunelake/lakehouse-etl/internal/logging"
	"github.com/tunelake/lakehouse-etl/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logging.Setup(cfg.Logging)

	log := logging.Component("main")
	log.Info("lakehouse-etl starting", "version", etl.Version, "git_sha", etl.GitSHA)

	metrics.Init("")
	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics server listening", "address", cfg.Metrics.Address)
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	orch, err := etl.New(cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	log.Info("run initialized", "run_id", orch.RunID())
	return orch.Run(ctx)
}
