package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenderradar/internal/artifact"
	"tenderradar/internal/config"
	"tenderradar/internal/elasticsearch"
	"tenderradar/internal/logger"
)

func main() {
	log := logger.New("retention", false)
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var esClient *elasticsearch.Client
	if cfg.PruneES {
		esClient, err = elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
		slog.String("data_dir", cfg.DataDir),
	)

	runOnce(ctx, log, esClient, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, esClient, cfg)
		}
	}
}

// runOnce prunes aged CSV artifacts from all three artifact locations and,
// when enabled, the matching documents from the index. Failures are logged
// and retried on the next tick.
func runOnce(ctx context.Context, log *slog.Logger, esClient *elasticsearch.Client, cfg *config.Retention) {
	now := time.Now()
	removed := 0
	for _, dir := range []string{
		artifact.RawDir(cfg.DataDir),
		artifact.CleanDir(cfg.DataDir),
		cfg.DataDir,
	} {
		n, err := artifact.Prune(dir, cfg.MaxAge, now)
		removed += n
		if err != nil {
			log.Warn("artifact prune incomplete", slog.String("dir", dir), slog.Any("err", err))
		}
	}

	if removed > 0 {
		log.Info("artifacts pruned", slog.Int("removed", removed))
	} else {
		log.Debug("no aged artifacts found")
	}

	if esClient == nil {
		return
	}

	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := esClient.DeleteOlderThan(subCtx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("index prune failed (will retry on next interval)", slog.Any("err", err))
		return
	}
	if deleted > 0 {
		log.Info("index pruned", slog.Int64("deleted", deleted))
	}
}
