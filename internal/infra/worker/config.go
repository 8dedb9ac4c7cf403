package worker

import (
	"fmt"
	"log/slog"
	"time"

	"shein-verse-bot/internal/pkg/config"
)

// MinPollInterval is the floor for PollInterval. Lower values are clamped.
const MinPollInterval = 10 * time.Second

// WorkerConfig holds the tunables of the polling loop.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Every field has a default and a validation rule, so an invalid value
// degrades to the default with a warning instead of stopping the bot.
type WorkerConfig struct {
	// PollInterval is the base sleep between cycles.
	// Env: POLL_INTERVAL_SECONDS. Floor: 10s. Default: 30s.
	PollInterval time.Duration

	// SummaryInterval is the cadence of the status summary.
	// Env: SUMMARY_INTERVAL_SECONDS. Range: 60s-7d. Default: 2h.
	SummaryInterval time.Duration

	// SummaryCron optionally replaces SummaryInterval with a cron expression
	// ("minute hour day month weekday") evaluated in Timezone.
	// Env: SUMMARY_CRON. Default: empty.
	SummaryCron string

	// Timezone is the IANA zone used for message timestamps and SummaryCron.
	// Env: WATCH_TIMEZONE. Default: "Asia/Kolkata".
	Timezone string

	// GracePeriodCycles is the number of successful cycles a product may be
	// missing from the catalog before it is reported as removed.
	// Env: GRACE_PERIOD_CYCLES. Range: 1-1000. Default: 3.
	GracePeriodCycles int

	// MenFirst orders men's products ahead of women's in each alert batch.
	// Env: MEN_FIRST. Default: true.
	MenFirst bool

	// MaxConsecutiveFailures is the number of failed cycles in a row that
	// triggers the degraded-health alert.
	// Env: MAX_CONSECUTIVE_FAILURES_BEFORE_ALERT. Range: 1-1000. Default: 3.
	MaxConsecutiveFailures int

	// MaxAlertsPerCycle caps immediate alerts per cycle; the rest go to the summary.
	// Env: MAX_ALERTS_PER_CYCLE. Range: 1-500. Default: 25.
	MaxAlertsPerCycle int

	// JitterPercent spreads every sleep by up to ±JitterPercent.
	// Env: POLL_JITTER_PERCENT. Range: 0-50. Default: 10.
	JitterPercent int

	// FetchTimeout bounds the catalog fetch of one cycle, retries included.
	// Env: FETCH_TIMEOUT. Range: 1s-5m. Default: 45s.
	FetchTimeout time.Duration

	// DeliveryTimeout bounds one delivery attempt across all channels.
	// Env: DELIVERY_TIMEOUT. Range: 1s-2m. Default: 15s.
	DeliveryTimeout time.Duration

	// NotifyMaxConcurrent is the number of channels called in parallel.
	// Env: NOTIFY_MAX_CONCURRENT. Range: 1-20. Default: 3.
	NotifyMaxConcurrent int

	// HealthPort is the port of the ops HTTP server.
	// Env: PORT. Range: 1024-65535. Default: 8080.
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with the default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:           30 * time.Second,
		SummaryInterval:        2 * time.Hour,
		SummaryCron:            "",
		Timezone:               "Asia/Kolkata",
		GracePeriodCycles:      3,
		MenFirst:               true,
		MaxConsecutiveFailures: 3,
		MaxAlertsPerCycle:      25,
		JitterPercent:          10,
		FetchTimeout:           45 * time.Second,
		DeliveryTimeout:        15 * time.Second,
		NotifyMaxConcurrent:    3,
		HealthPort:             8080,
	}
}

// JitterFraction returns JitterPercent as a fraction of one.
func (c WorkerConfig) JitterFraction() float64 {
	return float64(c.JitterPercent) / 100
}

// Location loads Timezone, falling back to UTC.
func (c WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks all fields and returns every violation in one error.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("poll interval %v is below the %v floor", c.PollInterval, MinPollInterval))
	}
	if err := config.ValidateDuration(c.SummaryInterval, time.Minute, 7*24*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("summary interval: %w", err))
	}
	if c.SummaryCron != "" {
		if err := config.ValidateCronSchedule(c.SummaryCron); err != nil {
			errs = append(errs, err)
		}
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, err)
	}
	if err := config.ValidateIntRange(c.GracePeriodCycles, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("grace period cycles: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxConsecutiveFailures, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("max consecutive failures: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxAlertsPerCycle, 1, 500); err != nil {
		errs = append(errs, fmt.Errorf("max alerts per cycle: %w", err))
	}
	if err := config.ValidateIntRange(c.JitterPercent, 0, 50); err != nil {
		errs = append(errs, fmt.Errorf("jitter percent: %w", err))
	}
	if err := config.ValidateDuration(c.FetchTimeout, time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("fetch timeout: %w", err))
	}
	if err := config.ValidateDuration(c.DeliveryTimeout, time.Second, 2*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("delivery timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 20); err != nil {
		errs = append(errs, fmt.Errorf("notify max concurrent: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("worker config validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the poll tunables from the environment.
//
// Loading is fail-open: an invalid value is replaced by its default, logged
// as a warning and counted in the config metrics. The only adjustment that is
// not a fallback is the poll interval floor, which clamps instead.
//
// The returned error is always nil; it is kept so callers treat loading as
// fallible.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	defaults := DefaultConfig()
	cfg := defaults
	fallbackApplied := false

	track := func(field string, applied bool, warning string) {
		if !applied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
	intField := func(field, key string, def, min, max int) int {
		r := config.LoadInt(key, def, config.IntRange(min, max))
		track(field, r.FallbackApplied, r.Warning)
		return r.Value
	}
	durationField := func(field, key string, def, min, max time.Duration) time.Duration {
		r := config.LoadDuration(key, def, config.DurationRange(min, max))
		track(field, r.FallbackApplied, r.Warning)
		return r.Value
	}

	pollSeconds := intField("poll_interval", "POLL_INTERVAL_SECONDS", int(defaults.PollInterval/time.Second), 1, 86400)
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second
	if cfg.PollInterval < MinPollInterval {
		logger.Warn("poll interval below floor, clamping",
			slog.Duration("requested", cfg.PollInterval),
			slog.Duration("floor", MinPollInterval))
		metrics.RecordFallback("poll_interval", "clamp")
		cfg.PollInterval = MinPollInterval
	}

	summarySeconds := intField("summary_interval", "SUMMARY_INTERVAL_SECONDS", int(defaults.SummaryInterval/time.Second), 60, 7*24*3600)
	cfg.SummaryInterval = time.Duration(summarySeconds) * time.Second

	cron := config.LoadString("SUMMARY_CRON", defaults.SummaryCron, config.ValidateCronSchedule)
	track("summary_cron", cron.FallbackApplied, cron.Warning)
	cfg.SummaryCron = cron.Value

	tz := config.LoadString("WATCH_TIMEZONE", defaults.Timezone, config.ValidateTimezone)
	track("timezone", tz.FallbackApplied, tz.Warning)
	cfg.Timezone = tz.Value

	cfg.GracePeriodCycles = intField("grace_period_cycles", "GRACE_PERIOD_CYCLES", defaults.GracePeriodCycles, 1, 1000)

	menFirst := config.LoadBool("MEN_FIRST", defaults.MenFirst)
	track("men_first", menFirst.FallbackApplied, menFirst.Warning)
	cfg.MenFirst = menFirst.Value

	cfg.MaxConsecutiveFailures = intField("max_consecutive_failures", "MAX_CONSECUTIVE_FAILURES_BEFORE_ALERT", defaults.MaxConsecutiveFailures, 1, 1000)
	cfg.MaxAlertsPerCycle = intField("max_alerts_per_cycle", "MAX_ALERTS_PER_CYCLE", defaults.MaxAlertsPerCycle, 1, 500)
	cfg.JitterPercent = intField("jitter_percent", "POLL_JITTER_PERCENT", defaults.JitterPercent, 0, 50)
	cfg.FetchTimeout = durationField("fetch_timeout", "FETCH_TIMEOUT", defaults.FetchTimeout, time.Second, 5*time.Minute)
	cfg.DeliveryTimeout = durationField("delivery_timeout", "DELIVERY_TIMEOUT", defaults.DeliveryTimeout, time.Second, 2*time.Minute)
	cfg.NotifyMaxConcurrent = intField("notify_max_concurrent", "NOTIFY_MAX_CONCURRENT", defaults.NotifyMaxConcurrent, 1, 20)
	cfg.HealthPort = intField("health_port", "PORT", defaults.HealthPort, 1024, 65535)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	logger.Info("worker configuration loaded",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("summary_interval", cfg.SummaryInterval),
		slog.String("summary_cron", cfg.SummaryCron),
		slog.String("timezone", cfg.Timezone),
		slog.Int("grace_period_cycles", cfg.GracePeriodCycles),
		slog.Bool("men_first", cfg.MenFirst),
		slog.Int("max_consecutive_failures", cfg.MaxConsecutiveFailures),
		slog.Int("max_alerts_per_cycle", cfg.MaxAlertsPerCycle),
		slog.Int("health_port", cfg.HealthPort),
		slog.Bool("fallback_applied", fallbackApplied))

	return &cfg, nil
}
