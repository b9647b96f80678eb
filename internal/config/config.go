package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tenderradar/internal/radar"
)

// Common holds fields shared by every binary.
type Common struct {
	DataDir            string
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Fetch configures the tender download job.
type Fetch struct {
	Common
	BaseURL      string
	Ticket       string
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	Backoff      float64
	MaxPages     int
	IndexTenders bool
}

// Filter configures the technology-radar filter job.
type Filter struct {
	Common
	Keywords        []string
	PriorityColumns []string
	OutPrefix       string
	WriteXLSX       bool
	KafkaBrokers    []string
	KafkaTopic      string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Retention configures the artifact and index cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
	PruneES   bool
}

func common() Common {
	return Common{
		DataDir:            getEnv("DATA_DIR", "data"),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "tenders"),
	}
}

// LoadFetch builds a Fetch config from environment variables. The ticket is
// deliberately not validated here beyond presence checks done by the caller:
// it is an opaque credential the API validates.
func LoadFetch() (*Fetch, error) {
	c := &Fetch{
		Common:       common(),
		BaseURL:      getEnv("MP_BASE_URL", "https://api.mercadopublico.cl/servicios/v1/publico/licitaciones.json"),
		Ticket:       getEnv("MP_TICKET", ""),
		UserAgent:    getEnv("MP_USER_AGENT", "tenderradar/1.0"),
		Timeout:      getDuration("MP_TIMEOUT", "60s"),
		MaxRetries:   getInt("MP_MAX_RETRIES", 6),
		Backoff:      getFloat("MP_BACKOFF_FACTOR", 2.0),
		MaxPages:     getInt("MP_MAX_PAGES", 1),
		IndexTenders: getBool("FETCH_INDEX_TENDERS", false),
	}

	if c.BaseURL == "" {
		return nil, fmt.Errorf("MP_BASE_URL cannot be empty")
	}
	if c.MaxRetries <= 0 {
		return nil, fmt.Errorf("MP_MAX_RETRIES must be positive")
	}
	if c.Backoff <= 1 {
		return nil, fmt.Errorf("MP_BACKOFF_FACTOR must be greater than 1")
	}
	if c.MaxPages <= 0 {
		return nil, fmt.Errorf("MP_MAX_PAGES must be positive")
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("MP_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadFilter builds a Filter config. Keyword patterns come from
// RADAR_KEYWORDS_FILE (one regular expression per line, # comments) or fall
// back to the built-in technology list.
func LoadFilter() (*Filter, error) {
	c := &Filter{
		Common:          common(),
		Keywords:        radar.DefaultKeywords,
		PriorityColumns: radar.DefaultPriorityColumns,
		OutPrefix:       getEnv("FILTER_OUT_PREFIX", "tecnologia"),
		WriteXLSX:       getBool("FILTER_XLSX", true),
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "tender_tech_matches"),
	}

	if path := getEnv("RADAR_KEYWORDS_FILE", ""); path != "" {
		keywords, err := readLines(path)
		if err != nil {
			return nil, fmt.Errorf("RADAR_KEYWORDS_FILE: %w", err)
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("RADAR_KEYWORDS_FILE %s has no patterns", path)
		}
		c.Keywords = keywords
	}
	if raw := getEnv("RADAR_PRIORITY_COLUMNS", ""); raw != "" {
		c.PriorityColumns = splitAndTrim(raw)
	}

	if c.OutPrefix == "" {
		return nil, fmt.Errorf("FILTER_OUT_PREFIX cannot be empty")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC cannot be empty when KAFKA_BROKERS is set")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:      common(),
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    common(),
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
		PruneES:   getBool("RETENTION_PRUNE_INDEX", true),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
