package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tenderradar/internal/artifact"
	"tenderradar/internal/config"
	"tenderradar/internal/elasticsearch"
	"tenderradar/internal/flatten"
	"tenderradar/internal/logger"
	"tenderradar/internal/mercadopublico"
	"tenderradar/internal/models"
)

func main() {
	date := flag.String("date", "", "fetch listings published on a ddmmyyyy date (exclusive with -status)")
	status := flag.String("status", "", "fetch the daily listing for a status such as activas (exclusive with -date)")
	ticket := flag.String("ticket", "", "API ticket, overrides MP_TICKET")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logger.New("fetch", *verbose)

	cfg, err := config.LoadFetch()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	if *ticket != "" {
		cfg.Ticket = *ticket
	}
	if cfg.Ticket == "" {
		log.Error("no API ticket: set MP_TICKET or pass -ticket")
		os.Exit(1)
	}

	sel, err := selector(*date, *status)
	if err != nil {
		log.Error("bad selection", slog.Any("err", err))
		os.Exit(2)
	}

	client, err := mercadopublico.New(mercadopublico.Options{
		BaseURL:    cfg.BaseURL,
		Ticket:     cfg.Ticket,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.Backoff,
		MaxPages:   cfg.MaxPages,
		Timeout:    cfg.Timeout,
	}, log)
	if err != nil {
		log.Error("init client", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runID := uuid.NewString()
	log = log.With(slog.String("run_id", runID))
	log.Info("fetch starting", slog.String("selector", sel.String()))

	raw, err := client.Fetch(ctx, sel)
	if err != nil {
		log.Error("fetch stage failed", slog.Any("err", err))
		os.Exit(1)
	}
	if len(raw) == 0 {
		log.Info("no tenders for the requested selection")
		return
	}

	if err := artifact.EnsureDirs(cfg.DataDir); err != nil {
		log.Error("prepare data dirs", slog.Any("err", err))
		os.Exit(1)
	}

	now := time.Now()
	token := artifact.DateToken(now)

	rawBatch := flatten.TopLevel(raw)
	rawPath := filepath.Join(artifact.RawDir(cfg.DataDir), artifact.FileName(sel.Prefix(), "raw", token))
	if err := artifact.WriteCSV(rawPath, rawBatch); err != nil {
		log.Error("write raw artifact", slog.Any("err", err))
		os.Exit(1)
	}

	cleanBatch := flatten.Records(raw)
	cleanPath := filepath.Join(artifact.CleanDir(cfg.DataDir), artifact.FileName(sel.Prefix(), "clean", token))
	if err := artifact.WriteCSV(cleanPath, cleanBatch); err != nil {
		log.Error("write clean artifact", slog.Any("err", err))
		os.Exit(1)
	}

	if cfg.IndexTenders {
		indexBatch(ctx, log, cfg, cleanBatch, sel.String(), runID, now)
	}

	log.Info("fetch done",
		slog.Int("rows", len(cleanBatch.Records)),
		slog.Int("fields", len(cleanBatch.Fields)),
		slog.String("raw", rawPath),
		slog.String("clean", cleanPath),
	)
}

// selector enforces the date-XOR-status contract before any request is made.
// With neither flag set the daily "activas" listing is fetched, matching the
// upstream default.
func selector(date, status string) (mercadopublico.Selector, error) {
	switch {
	case date != "" && status != "":
		return mercadopublico.Selector{}, fmt.Errorf("-date and -status are mutually exclusive")
	case date != "":
		return mercadopublico.ByDate(date)
	case status != "":
		return mercadopublico.ByStatus(status)
	default:
		return mercadopublico.ByStatus("activas")
	}
}

// indexBatch mirrors the batch into Elasticsearch. Index failures are logged
// and counted but never fail the run: the CSV artifacts are the output
// contract, the index is a side sink.
func indexBatch(ctx context.Context, log *slog.Logger, cfg *config.Fetch, batch flatten.Batch, selector, runID string, retrievedAt time.Time) {
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Warn("init elasticsearch, skipping index", slog.Any("err", err))
		return
	}

	indexed, failed := 0, 0
	for _, rec := range batch.Records {
		doc := models.FromRecord(rec, selector, runID, retrievedAt)
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if err := esClient.IndexTender(ctx, doc); err != nil {
			failed++
			log.Debug("index tender", slog.String("code", doc.Code), slog.Any("err", err))
			continue
		}
		indexed++
	}

	if failed > 0 {
		log.Warn("index incomplete", slog.Int("indexed", indexed), slog.Int("failed", failed))
		return
	}
	log.Info("batch indexed", slog.Int("indexed", indexed))
}
