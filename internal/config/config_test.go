package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tenderradar/internal/config"
	"tenderradar/internal/radar"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadFetchDefaults(t *testing.T) {
	clearEnv(t, "DATA_DIR", "MP_BASE_URL", "MP_TICKET", "MP_TIMEOUT",
		"MP_MAX_RETRIES", "MP_BACKOFF_FACTOR", "MP_MAX_PAGES", "FETCH_INDEX_TENDERS")

	cfg, err := config.LoadFetch()
	require.NoError(t, err)

	require.Equal(t, "data", cfg.DataDir)
	require.Contains(t, cfg.BaseURL, "mercadopublico.cl")
	require.Equal(t, "", cfg.Ticket)
	require.Equal(t, 60*time.Second, cfg.Timeout)
	require.Equal(t, 6, cfg.MaxRetries)
	require.Equal(t, 2.0, cfg.Backoff)
	require.Equal(t, 1, cfg.MaxPages)
	require.False(t, cfg.IndexTenders)
}

func TestLoadFetchOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/tenders")
	t.Setenv("MP_BASE_URL", "http://localhost:9090/licitaciones.json")
	t.Setenv("MP_TICKET", "abc-123")
	t.Setenv("MP_TIMEOUT", "15s")
	t.Setenv("MP_MAX_RETRIES", "3")
	t.Setenv("MP_BACKOFF_FACTOR", "1.5")
	t.Setenv("MP_MAX_PAGES", "4")
	t.Setenv("FETCH_INDEX_TENDERS", "true")
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")

	cfg, err := config.LoadFetch()
	require.NoError(t, err)

	require.Equal(t, "/tmp/tenders", cfg.DataDir)
	require.Equal(t, "http://localhost:9090/licitaciones.json", cfg.BaseURL)
	require.Equal(t, "abc-123", cfg.Ticket)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 1.5, cfg.Backoff)
	require.Equal(t, 4, cfg.MaxPages)
	require.True(t, cfg.IndexTenders)
	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
}

func TestLoadFetchRejectsBadValues(t *testing.T) {
	t.Setenv("MP_MAX_RETRIES", "0")
	_, err := config.LoadFetch()
	require.Error(t, err)

	t.Setenv("MP_MAX_RETRIES", "6")
	t.Setenv("MP_BACKOFF_FACTOR", "0.5")
	_, err = config.LoadFetch()
	require.Error(t, err)
}

func TestLoadFilterDefaults(t *testing.T) {
	clearEnv(t, "DATA_DIR", "RADAR_KEYWORDS_FILE", "RADAR_PRIORITY_COLUMNS",
		"FILTER_OUT_PREFIX", "FILTER_XLSX", "KAFKA_BROKERS", "KAFKA_TOPIC")

	cfg, err := config.LoadFilter()
	require.NoError(t, err)

	require.Equal(t, radar.DefaultKeywords, cfg.Keywords)
	require.Equal(t, radar.DefaultPriorityColumns, cfg.PriorityColumns)
	require.Equal(t, "tecnologia", cfg.OutPrefix)
	require.True(t, cfg.WriteXLSX)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFilterKeywordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.txt")
	content := "# radar patterns\nsoftware\n\nred(es)?\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("RADAR_KEYWORDS_FILE", path)
	t.Setenv("RADAR_PRIORITY_COLUMNS", "Nombre, Descripcion")

	cfg, err := config.LoadFilter()
	require.NoError(t, err)

	require.Equal(t, []string{"software", "red(es)?"}, cfg.Keywords)
	require.Equal(t, []string{"Nombre", "Descripcion"}, cfg.PriorityColumns)
}

func TestLoadFilterRejectsMissingKeywordsFile(t *testing.T) {
	t.Setenv("RADAR_KEYWORDS_FILE", filepath.Join(t.TempDir(), "missing.txt"))
	_, err := config.LoadFilter()
	require.Error(t, err)
}

func TestLoadFilterKafka(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "radar_matches")

	cfg, err := config.LoadFilter()
	require.NoError(t, err)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "radar_matches", cfg.KafkaTopic)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadAPIRejectsInvertedPageSizes(t *testing.T) {
	t.Setenv("API_PAGE_SIZE", "50")
	t.Setenv("API_MAX_PAGE_SIZE", "10")
	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("RETENTION_INTERVAL", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")
	t.Setenv("RETENTION_PRUNE_INDEX", "false")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.False(t, cfg.PruneES)
}
