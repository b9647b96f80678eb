package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"tenderradar/internal/artifact"
	"tenderradar/internal/config"
	"tenderradar/internal/flatten"
	"tenderradar/internal/logger"
	"tenderradar/internal/models"
	"tenderradar/internal/radar"
)

func main() {
	source := flag.String("source", "", "explicit CSV to filter instead of the newest artifact")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logger.New("filter", *verbose)

	cfg, err := config.LoadFilter()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	matcher, err := radar.NewMatcher(cfg.Keywords, cfg.PriorityColumns)
	if err != nil {
		log.Error("compile keywords", slog.Any("err", err))
		os.Exit(1)
	}

	src := *source
	if src == "" {
		src, err = artifact.Discover(cfg.DataDir)
		if err != nil {
			log.Error("filter stage failed: no source artifact", slog.Any("err", err))
			os.Exit(1)
		}
	}
	log.Info("filter starting", slog.String("source", src))

	batch, err := artifact.ReadCSV(src)
	if err != nil {
		log.Error("filter stage failed: unreadable source", slog.Any("err", err))
		os.Exit(1)
	}

	matched := matcher.Filter(batch.Records)
	dateCol := radar.DateColumn(batch.Fields)
	radar.SortByDate(matched, dateCol)

	out := flatten.Batch{Fields: batch.Fields, Records: matched}
	token := artifact.DateToken(time.Now())
	outCSV := filepath.Join(cfg.DataDir, fmt.Sprintf("%s_%s.csv", cfg.OutPrefix, token))
	if err := artifact.WriteCSV(outCSV, out); err != nil {
		log.Error("write filtered artifact", slog.Any("err", err))
		os.Exit(1)
	}

	if cfg.WriteXLSX && len(matched) > 0 {
		outXLSX := filepath.Join(cfg.DataDir, fmt.Sprintf("%s_%s.xlsx", cfg.OutPrefix, token))
		if err := artifact.WriteXLSX(outXLSX, "Tecnologia", out, "Comprador.NombreOrganismo"); err != nil {
			log.Warn("spreadsheet export skipped", slog.Any("err", err))
		} else {
			log.Info("spreadsheet written", slog.String("path", outXLSX))
		}
	}

	if len(cfg.KafkaBrokers) > 0 && len(matched) > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		announce(ctx, log, cfg, matched, filepath.Base(src))
	}

	log.Info("filter done",
		slog.Int("scanned", len(batch.Records)),
		slog.Int("matched", len(matched)),
		slog.String("sorted_by", dateCol),
		slog.String("out", outCSV),
	)
}

// announce publishes the matched tenders to the configured topic so
// downstream consumers see new technology-related listings without polling
// the CSVs. Delivery is best-effort: failures are logged, not fatal.
func announce(ctx context.Context, log *slog.Logger, cfg *config.Filter, matched []flatten.Record, sourceName string) {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		MaxAttempts: 3,
	})
	defer writer.Close()

	runID := uuid.NewString()
	now := time.Now()

	messages := make([]kafka.Message, 0, len(matched))
	for _, rec := range matched {
		doc := models.FromRecord(rec, "source="+sourceName, runID, now)
		payload, err := json.Marshal(doc)
		if err != nil {
			log.Warn("marshal match", slog.String("code", doc.Code), slog.Any("err", err))
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(doc.Code),
			Value: payload,
		})
	}
	if len(messages) == 0 {
		return
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := writer.WriteMessages(ctx, messages...)
		if err == nil {
			log.Info("matches announced",
				slog.Int("messages", len(messages)),
				slog.String("topic", cfg.KafkaTopic),
			)
			return
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("announce failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Warn("announce canceled")
			return
		}
	}

	log.Warn("announce exhausted retries, matches only available in the CSV",
		slog.Int("messages", len(messages)),
	)
}
