// Package config assembles the process configuration that the bot cannot
// run without: where the catalog lives, where alerts go and where the
// snapshot is stored. Poll tunables are loaded fail-open by the worker package.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/catalog"
	"shein-verse-bot/internal/infra/notifier"
	"shein-verse-bot/internal/usecase/normalize"
	env "shein-verse-bot/pkg/config"
)

// Storage backends for the snapshot.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the validated startup configuration.
type Config struct {
	LogLevel       string
	LogFormat      string
	TracingEnabled bool

	// Collection names the watched collection in messages.
	Collection string

	Catalog   catalog.Config
	Normalize normalize.Config

	Telegram notifier.TelegramConfig
	Discord  notifier.DiscordConfig
	Slack    notifier.SlackConfig

	// ConsoleAlerts logs every message instead of, or besides, sending it.
	ConsoleAlerts bool

	Storage StorageConfig
}

// StorageConfig selects where the snapshot is persisted.
type StorageConfig struct {
	Backend     string
	SQLitePath  string
	DatabaseURL string
}

// Load reads the configuration from the environment, after applying .env and
// the optional WATCH_CONFIG_FILE overlay. Every problem found is returned
// joined; each is an *entity.ConfigurationError.
func Load(logger *slog.Logger) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, &entity.ConfigurationError{Field: ".env", Message: err.Error()}
	}
	if path := env.GetEnvString("WATCH_CONFIG_FILE", ""); path != "" {
		applied, err := ApplyFile(path)
		if err != nil {
			return nil, &entity.ConfigurationError{Field: "WATCH_CONFIG_FILE", Message: err.Error()}
		}
		logger.Info("config file applied", slog.String("path", path), slog.Int("keys", len(applied)))
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		LogLevel:       strings.ToLower(env.GetEnvString("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(env.GetEnvString("LOG_FORMAT", "json")),
		TracingEnabled: p.boolean("TRACING_ENABLED", false),
		Collection:     env.GetEnvString("COLLECTION_NAME", "SHEIN Verse"),
	}

	cfg.Catalog = p.catalog()
	cfg.Normalize = classification(cfg.Catalog)
	cfg.Telegram = p.telegram()
	cfg.Discord = p.discord()
	cfg.Slack = p.slack()
	cfg.ConsoleAlerts = p.boolean("CONSOLE_ALERTS", false)
	cfg.Storage = StorageConfig{
		Backend:     strings.ToLower(env.GetEnvString("SNAPSHOT_STORE", StoreSQLite)),
		SQLitePath:  env.GetEnvString("SNAPSHOT_SQLITE_PATH", "shein_watch.db"),
		DatabaseURL: env.GetEnvString("DATABASE_URL", ""),
	}

	p.errs = append(p.errs, cfg.validate())
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCatalog reads only the catalog and classification settings, after
// applying .env. Diagnostic tools use it to run without channel credentials.
func LoadCatalog() (catalog.Config, normalize.Config, error) {
	if err := LoadDotEnv(); err != nil {
		return catalog.Config{}, normalize.Config{}, &entity.ConfigurationError{Field: ".env", Message: err.Error()}
	}
	p := &parser{}
	cat := p.catalog()
	if err := cat.Validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if err := errors.Join(p.errs...); err != nil {
		return catalog.Config{}, normalize.Config{}, err
	}
	return cat, classification(cat), nil
}

func classification(cat catalog.Config) normalize.Config {
	return normalize.Config{
		BaseURL:          cat.BaseURL,
		DefaultCurrency:  cat.Currency,
		MenCategoryIDs:   env.GetEnvStringList("MEN_CATEGORY_IDS", nonEmpty(cat.CategoryID)),
		WomenCategoryIDs: env.GetEnvStringList("WOMEN_CATEGORY_IDS", nil),
		DefaultCategory:  env.GetEnvString("DEFAULT_CATEGORY", entity.CategoryMen),
	}
}

// EnabledChannels lists the names of the enabled notification channels.
func (c *Config) EnabledChannels() []string {
	var names []string
	if c.Telegram.Enabled {
		names = append(names, "telegram")
	}
	if c.Discord.Enabled {
		names = append(names, "discord")
	}
	if c.Slack.Enabled {
		names = append(names, "slack")
	}
	if c.ConsoleAlerts {
		names = append(names, "console")
	}
	return names
}

func (c *Config) validate() error {
	var errs []error

	if err := c.Catalog.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &entity.ConfigurationError{Field: "LOG_LEVEL", Message: fmt.Sprintf("unknown level %q", c.LogLevel)})
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, &entity.ConfigurationError{Field: "LOG_FORMAT", Message: fmt.Sprintf("must be json or text, got %q", c.LogFormat)})
	}

	if len(c.EnabledChannels()) == 0 {
		errs = append(errs, &entity.ConfigurationError{
			Field:   "notification channels",
			Message: "enable Telegram, Discord, Slack or CONSOLE_ALERTS",
		})
	}

	switch c.Normalize.DefaultCategory {
	case "", entity.CategoryMen, entity.CategoryWomen:
	default:
		errs = append(errs, &entity.ConfigurationError{Field: "DEFAULT_CATEGORY", Message: "must be men, women or empty"})
	}

	switch c.Storage.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, &entity.ConfigurationError{Field: "SNAPSHOT_SQLITE_PATH", Message: "is required for the sqlite store"})
		}
	case StorePostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, &entity.ConfigurationError{Field: "DATABASE_URL", Message: "is required for the postgres store"})
		}
	default:
		errs = append(errs, &entity.ConfigurationError{
			Field:   "SNAPSHOT_STORE",
			Message: fmt.Sprintf("unknown backend %q (want sqlite, postgres or memory)", c.Storage.Backend),
		})
	}

	return errors.Join(errs...)
}

// parser collects malformed values as configuration errors.
type parser struct {
	errs []error
}

func (p *parser) fail(err error) {
	var envErr *env.EnvError
	if errors.As(err, &envErr) {
		p.errs = append(p.errs, &entity.ConfigurationError{Field: envErr.Key, Message: envErr.Err.Error()})
		return
	}
	p.errs = append(p.errs, err)
}

func (p *parser) boolean(key string, def bool) bool {
	v, err := env.GetEnvBool(key, def)
	if err != nil {
		p.fail(err)
	}
	return v
}

func (p *parser) catalog() catalog.Config {
	cfg := catalog.DefaultConfig()
	cfg.BaseURL = strings.TrimRight(env.GetEnvString("CATALOG_BASE_URL", "https://www.sheinindia.in"), "/")
	cfg.CollectionPath = env.GetEnvString("CATALOG_COLLECTION_PATH", "/c/sverse-5939-37961")
	cfg.APIPath = env.GetEnvString("CATALOG_API_PATH", cfg.APIPath)
	cfg.CategoryID = env.GetEnvString("CATALOG_CATEGORY_ID", "2513")
	cfg.Country = env.GetEnvString("CATALOG_COUNTRY", cfg.Country)
	cfg.Currency = strings.ToUpper(env.GetEnvString("CATALOG_CURRENCY", cfg.Currency))
	cfg.FeedURL = env.GetEnvString("CATALOG_FEED_URL", "")
	cfg.SessionCookies = env.GetEnvString("CATALOG_SESSION_COOKIES", "")
	cfg.UserAgent = env.GetEnvString("CATALOG_USER_AGENT", "")
	cfg.MobileBaseURL = strings.TrimRight(env.GetEnvString("CATALOG_MOBILE_BASE_URL", ""), "/")
	cfg.Proxies = env.GetEnvStringList("CATALOG_PROXIES", nil)
	cfg.DetailSizes = p.boolean("CATALOG_DETAIL_SIZES", false)

	var err error
	if cfg.RequestTimeout, err = env.GetEnvDuration("CATALOG_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		p.fail(err)
	}
	if cfg.PageSize, err = env.GetEnvInt("CATALOG_PAGE_SIZE", cfg.PageSize); err != nil {
		p.fail(err)
	}
	if cfg.DetailLimit, err = env.GetEnvInt("CATALOG_DETAIL_LIMIT", cfg.DetailLimit); err != nil {
		p.fail(err)
	}
	if cfg.DetailInterval, err = env.GetEnvDuration("CATALOG_DETAIL_INTERVAL", cfg.DetailInterval); err != nil {
		p.fail(err)
	}
	if cfg.DetailTTL, err = env.GetEnvDuration("CATALOG_DETAIL_TTL", cfg.DetailTTL); err != nil {
		p.fail(err)
	}

	cfg.Strategies = env.GetEnvStringList("CATALOG_STRATEGIES", nil)
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []string{catalog.StrategyAPI, catalog.StrategyHTML, catalog.StrategyMobile}
		if cfg.FeedURL != "" {
			cfg.Strategies = append(cfg.Strategies, catalog.StrategyFeed)
		}
	}
	return cfg
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
