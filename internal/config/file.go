package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored and set variables are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// FileConfig is the optional YAML configuration file. Every field maps to an
// environment variable, and the environment wins when both are set.
type FileConfig struct {
	LogLevel   string `yaml:"log_level"`
	Tracing    *bool  `yaml:"tracing_enabled"`
	Collection string `yaml:"collection_name"`

	Catalog struct {
		BaseURL        string   `yaml:"base_url"`
		CollectionPath string   `yaml:"collection_path"`
		APIPath        string   `yaml:"api_path"`
		CategoryID     string   `yaml:"category_id"`
		Country        string   `yaml:"country"`
		Currency       string   `yaml:"currency"`
		FeedURL        string   `yaml:"feed_url"`
		MobileBaseURL  string   `yaml:"mobile_base_url"`
		UserAgent      string   `yaml:"user_agent"`
		RequestTimeout string   `yaml:"request_timeout"`
		PageSize       *int     `yaml:"page_size"`
		Strategies     []string `yaml:"strategies"`
		DetailSizes    *bool    `yaml:"detail_sizes"`
		DetailLimit    *int     `yaml:"detail_limit"`
		DetailInterval string   `yaml:"detail_interval"`
		DetailTTL      string   `yaml:"detail_ttl"`
	} `yaml:"catalog"`

	Classify struct {
		MenCategoryIDs   []string `yaml:"men_category_ids"`
		WomenCategoryIDs []string `yaml:"women_category_ids"`
		DefaultCategory  string   `yaml:"default_category"`
	} `yaml:"classify"`

	Poll struct {
		IntervalSeconds        *int   `yaml:"poll_interval_seconds"`
		SummaryIntervalSeconds *int   `yaml:"summary_interval_seconds"`
		SummaryCron            string `yaml:"summary_cron"`
		Timezone               string `yaml:"timezone"`
		GracePeriodCycles      *int   `yaml:"grace_period_cycles"`
		MenFirst               *bool  `yaml:"men_first"`
		MaxConsecutiveFailures *int   `yaml:"max_consecutive_failures_before_alert"`
		MaxAlertsPerCycle      *int   `yaml:"max_alerts_per_cycle"`
		JitterPercent          *int   `yaml:"jitter_percent"`
		FetchTimeout           string `yaml:"fetch_timeout"`
		DeliveryTimeout        string `yaml:"delivery_timeout"`
	} `yaml:"poll"`

	Storage struct {
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Port *int `yaml:"port"`
}

// ReadFile parses a YAML configuration file. Unknown keys are rejected.
func ReadFile(path string) (*FileConfig, error) {
	// #nosec G304 -- path comes from the operator's environment
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// Env flattens the file into environment variable assignments.
// Unset fields are left out.
func (fc *FileConfig) Env() map[string]string {
	env := map[string]string{}
	str := func(key, v string) {
		if v != "" {
			env[key] = v
		}
	}
	num := func(key string, v *int) {
		if v != nil {
			env[key] = strconv.Itoa(*v)
		}
	}
	flag := func(key string, v *bool) {
		if v != nil {
			env[key] = strconv.FormatBool(*v)
		}
	}
	list := func(key string, v []string) {
		if len(v) > 0 {
			env[key] = strings.Join(v, ",")
		}
	}

	str("LOG_LEVEL", fc.LogLevel)
	flag("TRACING_ENABLED", fc.Tracing)
	str("COLLECTION_NAME", fc.Collection)

	str("CATALOG_BASE_URL", fc.Catalog.BaseURL)
	str("CATALOG_COLLECTION_PATH", fc.Catalog.CollectionPath)
	str("CATALOG_API_PATH", fc.Catalog.APIPath)
	str("CATALOG_CATEGORY_ID", fc.Catalog.CategoryID)
	str("CATALOG_COUNTRY", fc.Catalog.Country)
	str("CATALOG_CURRENCY", fc.Catalog.Currency)
	str("CATALOG_FEED_URL", fc.Catalog.FeedURL)
	str("CATALOG_USER_AGENT", fc.Catalog.UserAgent)
	str("CATALOG_REQUEST_TIMEOUT", fc.Catalog.RequestTimeout)
	num("CATALOG_PAGE_SIZE", fc.Catalog.PageSize)
	list("CATALOG_STRATEGIES", fc.Catalog.Strategies)
	str("CATALOG_MOBILE_BASE_URL", fc.Catalog.MobileBaseURL)
	flag("CATALOG_DETAIL_SIZES", fc.Catalog.DetailSizes)
	num("CATALOG_DETAIL_LIMIT", fc.Catalog.DetailLimit)
	str("CATALOG_DETAIL_INTERVAL", fc.Catalog.DetailInterval)
	str("CATALOG_DETAIL_TTL", fc.Catalog.DetailTTL)

	list("MEN_CATEGORY_IDS", fc.Classify.MenCategoryIDs)
	list("WOMEN_CATEGORY_IDS", fc.Classify.WomenCategoryIDs)
	str("DEFAULT_CATEGORY", fc.Classify.DefaultCategory)

	num("POLL_INTERVAL_SECONDS", fc.Poll.IntervalSeconds)
	num("SUMMARY_INTERVAL_SECONDS", fc.Poll.SummaryIntervalSeconds)
	str("SUMMARY_CRON", fc.Poll.SummaryCron)
	str("WATCH_TIMEZONE", fc.Poll.Timezone)
	num("GRACE_PERIOD_CYCLES", fc.Poll.GracePeriodCycles)
	flag("MEN_FIRST", fc.Poll.MenFirst)
	num("MAX_CONSECUTIVE_FAILURES_BEFORE_ALERT", fc.Poll.MaxConsecutiveFailures)
	num("MAX_ALERTS_PER_CYCLE", fc.Poll.MaxAlertsPerCycle)
	num("POLL_JITTER_PERCENT", fc.Poll.JitterPercent)
	str("FETCH_TIMEOUT", fc.Poll.FetchTimeout)
	str("DELIVERY_TIMEOUT", fc.Poll.DeliveryTimeout)

	str("SNAPSHOT_STORE", fc.Storage.Backend)
	str("SNAPSHOT_SQLITE_PATH", fc.Storage.SQLitePath)

	num("PORT", fc.Port)
	return env
}

// ApplyFile reads path and exports its settings into the process environment
// for every variable that is unset or empty. It returns the keys it set.
// Secrets (bot token, webhook URLs, DATABASE_URL) are only read from the environment.
func ApplyFile(path string) ([]string, error) {
	fc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	var applied []string
	for key, value := range fc.Env() {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return applied, fmt.Errorf("set %s: %w", key, err)
		}
		applied = append(applied, key)
	}
	return applied, nil
}
