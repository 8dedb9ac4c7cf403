// Package poll drives the watch loop: fetch, normalize, detect, notify, sleep.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/observability/logging"
	"shein-verse-bot/internal/observability/metrics"
	"shein-verse-bot/internal/observability/slo"
	"shein-verse-bot/internal/observability/tracing"
	"shein-verse-bot/internal/repository"
	"shein-verse-bot/internal/resilience/retry"
	"shein-verse-bot/internal/usecase/detect"
	"shein-verse-bot/internal/usecase/normalize"
	"shein-verse-bot/internal/usecase/policy"
	"shein-verse-bot/internal/usecase/snapshot"
)

const (
	defaultPollInterval    = 30 * time.Second
	defaultSummaryInterval = 2 * time.Hour
	defaultFetchTimeout    = 45 * time.Second
	defaultMaxBackoff      = 8
)

// Source fetches one page set of raw catalog records.
// Failures are reported as *entity.FetchError.
type Source interface {
	Fetch(ctx context.Context) ([]entity.RawRecord, error)
}

// Recorder receives cycle-level metrics. worker.WorkerMetrics implements it.
type Recorder interface {
	RecordCycle(success bool, duration time.Duration)
	SetConsecutiveFailures(n int)
	RecordDegradedAlert()
}

// Config holds the loop tunables.
type Config struct {
	PollInterval time.Duration

	// JitterFraction spreads every sleep by ±fraction.
	JitterFraction float64

	// MaxBackoffMultiplier caps the failure backoff at PollInterval times this value.
	MaxBackoffMultiplier int

	GracePeriodCycles      int
	MaxConsecutiveFailures int
	FetchTimeout           time.Duration

	SummaryInterval time.Duration

	// SummarySchedule overrides SummaryInterval when set. See SummarySchedule.
	SummarySchedule cron.Schedule
}

// Deps are the collaborators of a Scheduler. Repo and Recorder are optional.
type Deps struct {
	Source     Source
	Normalizer *normalize.Normalizer
	Store      *snapshot.Store
	Repo       repository.SnapshotRepository
	Policy     *policy.Policy
	Recorder   Recorder
	Logger     *slog.Logger
}

// CycleReport describes one RunCycle call.
type CycleReport struct {
	CycleID string

	// Cycle is the successful-cycle number; failed cycles report the last one.
	Cycle int64
	OK    bool
	Err   error

	Fetched    int
	Malformed  int
	Duplicates int
	Checked    int
	Events     []entity.ChangeEvent
	Outcome    policy.Outcome

	SummarySent  bool
	DegradedSent bool
	Duration     time.Duration
}

// Scheduler runs the poll loop. RunCycle and Run must be called from a single
// goroutine; State and Status may be called from anywhere.
type Scheduler struct {
	cfg      Config
	source   Source
	norm     *normalize.Normalizer
	store    *snapshot.Store
	repo     repository.SnapshotRepository
	detector *detect.Detector
	policy   *policy.Policy
	recorder Recorder
	logger   *slog.Logger
	schedule cron.Schedule

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration, fraction float64) time.Duration

	state atomic.Int32

	mu           sync.RWMutex
	cycle        int64
	failures     int
	degradedSent bool
	lastErr      error
	startedAt    time.Time
	lastSuccess  time.Time
	lastAlert    time.Time
	nextSummary  time.Time
	nextWake     time.Time
	totalAlerts  int
	summary      *entity.CycleSummary

	cyclesRun       int
	cyclesOK        int
	alertsAttempted int
	alertsDelivered int
}

// SummarySchedule builds the summary schedule: a cron expression evaluated in
// loc when expr is set, otherwise a fixed interval.
func SummarySchedule(expr string, interval time.Duration, loc *time.Location) (cron.Schedule, error) {
	if expr == "" {
		if interval <= 0 {
			interval = defaultSummaryInterval
		}
		return cron.Every(interval), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), expr))
	if err != nil {
		return nil, fmt.Errorf("SummarySchedule: %w", err)
	}
	return sched, nil
}

// New creates a Scheduler in the IDLE state.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxBackoffMultiplier < 1 {
		cfg.MaxBackoffMultiplier = defaultMaxBackoff
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.SummaryInterval <= 0 {
		cfg.SummaryInterval = defaultSummaryInterval
	}
	if cfg.MaxConsecutiveFailures < 1 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.SummarySchedule == nil {
		cfg.SummarySchedule = cron.Every(cfg.SummaryInterval)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cfg:      cfg,
		source:   deps.Source,
		norm:     deps.Normalizer,
		store:    deps.Store,
		repo:     deps.Repo,
		detector: detect.NewDetector(deps.Store, cfg.GracePeriodCycles),
		policy:   deps.Policy,
		recorder: deps.Recorder,
		logger:   logger,
		schedule: cfg.SummarySchedule,
		now:      time.Now,
		sleep:    sleepContext,
		jitter:   retry.Spread,
	}
	s.reset(s.now())
	return s
}

// reset starts the uptime clock and the first summary window at now.
func (s *Scheduler) reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = now
	s.summary = entity.NewCycleSummary(now)
	s.nextSummary = s.schedule.Next(now)
}

// LoadSnapshot restores the snapshot from the repository and resumes the cycle
// counter from it. A failed load starts from an empty store and is only logged.
func (s *Scheduler) LoadSnapshot(ctx context.Context) {
	if err := s.store.Load(ctx, s.repo); err != nil {
		s.logger.Warn("snapshot load failed, starting with an empty snapshot", slog.Any("error", err))
	}
	s.mu.Lock()
	s.cycle = s.store.MaxCycle()
	s.mu.Unlock()
	metrics.UpdateSnapshotSize(s.store.Len())
	s.logger.Info("snapshot loaded",
		slog.Int("products", s.store.Len()),
		slog.Int64("cycle", s.cycle))
}

// State returns the current phase.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// Status returns a snapshot of the loop for the status endpoint.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:               s.State().String(),
		Cycle:               s.cycle,
		ConsecutiveFailures: s.failures,
		Degraded:            s.degradedSent,
		Tracked:             s.store.Len(),
		StartedAt:           s.startedAt,
		NextSummary:         s.nextSummary,
		AlertsSent:          s.totalAlerts,
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		st.LastSuccess = &t
	}
	if !s.lastAlert.IsZero() {
		t := s.lastAlert
		st.LastAlert = &t
	}
	if !s.nextWake.IsZero() && s.State() == StateSleeping {
		t := s.nextWake
		st.NextWake = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Run loops RunCycle and the inter-cycle sleep until ctx is canceled.
// Transient failures never end the loop; the returned error is always nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("poll loop started",
		slog.Duration("poll_interval", s.cfg.PollInterval),
		slog.Int("grace_period_cycles", s.cfg.GracePeriodCycles),
		slog.Time("next_summary", s.nextSummarySnapshot()))

	for {
		if ctx.Err() != nil {
			break
		}
		s.RunCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		d := s.NextSleep()
		s.mu.Lock()
		s.nextWake = s.now().Add(d)
		s.mu.Unlock()
		s.setState(StateSleeping)
		s.logger.Debug("sleeping until next cycle", slog.Duration("sleep", d))
		if err := s.sleep(ctx, d); err != nil {
			break
		}
	}

	s.setState(StateStopped)
	s.logger.Info("poll loop stopped")
	return nil
}

// NextSleep returns the sleep before the next cycle: the poll interval doubled
// per consecutive failure up to the backoff cap, then jittered.
func (s *Scheduler) NextSleep() time.Duration {
	s.mu.RLock()
	failures := s.failures
	s.mu.RUnlock()

	base := retry.Exponential(s.cfg.PollInterval, failures, s.cfg.MaxBackoffMultiplier)
	d := s.jitter(base, s.cfg.JitterFraction)
	if d <= 0 {
		d = base
	}
	return d
}

// RunCycle runs exactly one poll cycle. A fetch failure leaves the snapshot
// untouched and does not advance the cycle counter.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	start := s.now()
	report := CycleReport{CycleID: uuid.NewString()}

	s.mu.RLock()
	next := s.cycle + 1
	s.mu.RUnlock()

	logger := logging.WithCycle(s.logger, next, report.CycleID)
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.GetTracer().Start(ctx, "poll.cycle",
		trace.WithAttributes(
			attribute.String("cycle.id", report.CycleID),
			attribute.Int64("cycle.number", next),
		))
	defer span.End()

	records, err := s.fetch(ctx)
	report.Fetched = len(records)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a catalog failure.
			report.Err = ctx.Err()
			s.setState(StateIdle)
			return report
		}
		s.handleFailure(ctx, logger, err, start, &report)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return report
	}

	s.setState(StateProcessing)
	products, malformed := s.norm.NormalizeAll(records)
	report.Malformed = len(malformed)
	for _, merr := range malformed {
		logger.Debug("malformed record skipped", slog.Any("error", merr))
	}
	if len(malformed) > 0 {
		metrics.RecordMalformedRecords(len(malformed))
		logger.Warn("malformed records skipped",
			slog.Int("malformed", len(malformed)),
			slog.Int("fetched", len(records)))
	}
	if len(products) == 0 {
		// Nothing usable: treat like an empty page so the snapshot does not age.
		ferr := &entity.FetchError{Reason: entity.FetchReasonDecode, Err: errors.New("no record could be normalized")}
		s.mu.Lock()
		s.summary.Skipped += len(malformed)
		s.mu.Unlock()
		s.handleFailure(ctx, logger, ferr, start, &report)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, "no usable records")
		return report
	}

	s.mu.Lock()
	s.cycle = next
	s.mu.Unlock()
	report.Cycle = next

	_, detectSpan := tracing.GetTracer().Start(ctx, "poll.detect")
	res := s.detector.Detect(products, next, start)
	detectSpan.SetAttributes(
		attribute.Int("products.checked", res.Checked),
		attribute.Int("events", len(res.Events)))
	detectSpan.End()

	report.Checked = res.Checked
	report.Duplicates = res.Duplicates
	report.Events = res.Events

	metrics.RecordProductsChecked(res.Checked)
	metrics.UpdateSnapshotSize(s.store.Len())
	for _, ev := range res.Events {
		metrics.RecordChange(ev.Kind.String())
	}

	s.mu.Lock()
	s.summary.Cycles++
	s.summary.Checked += res.Checked
	s.summary.Unchanged += res.Unchanged
	s.summary.Skipped += len(malformed)
	for _, ev := range res.Events {
		s.summary.Count(ev.Kind, ev.Updated)
		switch ev.Kind {
		case entity.ChangeWentOutOfStock:
			s.summary.AddNotable(notable(start, ev, "sold out"))
		case entity.ChangeRemoved:
			s.summary.AddNotable(notable(start, ev, "no longer listed"))
		}
	}
	summaryDue := !start.Before(s.nextSummary)
	s.mu.Unlock()

	if res.Duplicates > 0 {
		logger.Debug("duplicate ids dropped", slog.Int("duplicates", res.Duplicates))
	}
	if summaryDue {
		s.setState(StateSummaryDue)
	}

	s.setState(StateNotifying)
	notifyCtx, notifySpan := tracing.GetTracer().Start(ctx, "poll.notify")
	outcome := s.policy.Apply(notifyCtx, res.Events)
	notifySpan.SetAttributes(
		attribute.Int("alerts.sent", len(outcome.Sent)),
		attribute.Int("alerts.failed", len(outcome.Failed)),
		attribute.Int("alerts.deferred", len(outcome.Deferred)))
	notifySpan.End()
	report.Outcome = outcome
	s.recordOutcome(start, res.Events, outcome)

	s.mu.Lock()
	wasDegraded := s.degradedSent
	s.failures = 0
	s.degradedSent = false
	s.lastErr = nil
	s.lastSuccess = start
	s.cyclesRun++
	s.cyclesOK++
	s.mu.Unlock()
	if wasDegraded {
		logger.Info("catalog reachable again, degraded alert re-armed")
	}

	if summaryDue {
		report.SummarySent = s.sendSummary(ctx, logger, start)
	}

	if err := s.store.Flush(ctx, s.repo); err != nil {
		logger.Warn("snapshot flush failed", slog.Any("error", err))
	}

	report.OK = true
	report.Duration = s.now().Sub(start)
	s.finishCycle(true, report.Duration)

	logger.Info("poll cycle completed",
		slog.Int("fetched", report.Fetched),
		slog.Int("checked", res.Checked),
		slog.Int("events", len(res.Events)),
		slog.Int("alerts_sent", len(outcome.Sent)),
		slog.Int("alerts_failed", len(outcome.Failed)),
		slog.Int("suppressed", outcome.Suppressed),
		slog.Int("tracked", s.store.Len()),
		slog.Duration("duration", report.Duration))

	s.setState(StateIdle)
	return report
}

// fetch calls the source under the fetch timeout, normalizing errors to
// *entity.FetchError.
func (s *Scheduler) fetch(ctx context.Context) ([]entity.RawRecord, error) {
	s.setState(StateFetching)

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	fetchCtx, span := tracing.GetTracer().Start(fetchCtx, "poll.fetch")
	defer span.End()

	records, err := s.source.Fetch(fetchCtx)
	if err == nil && len(records) == 0 {
		err = &entity.FetchError{Reason: entity.FetchReasonEmpty}
	}
	if err != nil {
		var ferr *entity.FetchError
		if !errors.As(err, &ferr) {
			reason := entity.FetchReasonTransport
			if errors.Is(err, context.DeadlineExceeded) {
				reason = entity.FetchReasonTimeout
			}
			err = &entity.FetchError{Reason: reason, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// handleFailure records a failed cycle and sends the degraded alert once the
// failure threshold is reached.
func (s *Scheduler) handleFailure(ctx context.Context, logger *slog.Logger, err error, start time.Time, report *CycleReport) {
	reason := entity.FetchReasonTransport
	var ferr *entity.FetchError
	if errors.As(err, &ferr) {
		reason = ferr.Reason
	}
	metrics.RecordFetchFailure(reason)

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.lastErr = err
	s.summary.FetchFailures++
	s.cyclesRun++
	sendDegraded := failures >= s.cfg.MaxConsecutiveFailures && !s.degradedSent
	if sendDegraded {
		s.degradedSent = true
	}
	summaryDue := !start.Before(s.nextSummary)
	report.Cycle = s.cycle
	s.mu.Unlock()

	report.Err = err
	logger.Warn("catalog fetch failed",
		slog.String("reason", reason),
		slog.Int("consecutive_failures", failures),
		slog.Any("error", err))

	if s.recorder != nil {
		s.recorder.SetConsecutiveFailures(failures)
	}

	if sendDegraded || summaryDue {
		s.setState(StateNotifying)
	}
	if sendDegraded {
		msg := s.policy.Formatter().Degraded(failures, err, s.NextSleep(), start)
		if serr := s.policy.Send(ctx, msg); serr != nil {
			logger.Error("degraded-health alert not delivered", slog.Any("error", serr))
		} else {
			logger.Warn("degraded-health alert sent", slog.Int("consecutive_failures", failures))
		}
		report.DegradedSent = true
		if s.recorder != nil {
			s.recorder.RecordDegradedAlert()
		}
	}
	if summaryDue {
		report.SummarySent = s.sendSummary(ctx, logger, start)
	}

	report.Duration = s.now().Sub(start)
	s.finishCycle(false, report.Duration)
	s.setState(StateIdle)
}

func (s *Scheduler) recordOutcome(now time.Time, events []entity.ChangeEvent, out policy.Outcome) {
	metrics.RecordAlerts("sent", len(out.Sent))
	metrics.RecordAlerts("failed", len(out.Failed))
	metrics.RecordAlerts("deferred", len(out.Deferred))
	metrics.RecordAlerts("suppressed", out.Suppressed)

	byID := make(map[string]entity.ChangeEvent, len(events))
	for _, ev := range events {
		byID[ev.ProductID] = ev
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.summary.AlertsSent += len(out.Sent)
	s.summary.FailedDeliveries += len(out.Failed)
	s.summary.Deferred += len(out.Deferred)
	s.totalAlerts += len(out.Sent)
	s.alertsAttempted += len(out.Sent) + len(out.Failed)
	s.alertsDelivered += len(out.Sent)
	if len(out.Sent) > 0 {
		s.lastAlert = now
		s.summary.LastAlertAt = now
	}
	for _, ev := range out.Deferred {
		s.summary.AddNotable(notable(now, ev, "alert deferred, cycle cap reached"))
	}
	for _, derr := range out.Failed {
		if ev, ok := byID[derr.ProductID]; ok {
			s.summary.AddNotable(notable(now, ev, "alert not delivered"))
		}
	}
}

// sendSummary renders and delivers the summary, then opens a new window.
// A failed delivery keeps the counters for the next summary.
func (s *Scheduler) sendSummary(ctx context.Context, logger *slog.Logger, now time.Time) bool {
	s.mu.Lock()
	lastAlert := s.lastAlert
	ref := lastAlert
	if ref.IsZero() {
		ref = s.startedAt
	}
	stale := now.Sub(ref) > s.cfg.SummaryInterval
	stats := policy.SummaryStats{
		Tracked:     s.store.Len(),
		Uptime:      now.Sub(s.startedAt),
		TotalAlerts: s.totalAlerts,
		Stale:       stale,
		StaleAfter:  s.cfg.SummaryInterval,
	}
	summary := *s.summary
	s.nextSummary = s.schedule.Next(now)
	s.mu.Unlock()

	if stale {
		logger.Warn("no alert delivered within the summary interval",
			slog.Duration("summary_interval", s.cfg.SummaryInterval),
			slog.Time("last_alert", lastAlert))
	}

	msg := s.policy.Formatter().Summary(summary, stats, now)
	if err := s.policy.Send(ctx, msg); err != nil {
		logger.Warn("summary not delivered", slog.Any("error", err))
		return false
	}

	s.mu.Lock()
	s.summary.Reset(now)
	s.mu.Unlock()
	logger.Info("summary sent", slog.Int("cycles", summary.Cycles))
	return true
}

func (s *Scheduler) finishCycle(ok bool, d time.Duration) {
	s.mu.RLock()
	lastSuccess, started := s.lastSuccess, s.startedAt
	cyclesOK, cyclesRun := s.cyclesOK, s.cyclesRun
	delivered, attempted := s.alertsDelivered, s.alertsAttempted
	failures := s.failures
	s.mu.RUnlock()

	slo.UpdateFreshness(lastSuccess, started, s.now())
	slo.UpdateCycleSuccess(cyclesOK, cyclesRun)
	slo.UpdateDeliverySuccess(delivered, attempted)

	if s.recorder != nil {
		s.recorder.RecordCycle(ok, d)
		s.recorder.SetConsecutiveFailures(failures)
	}
}

func (s *Scheduler) nextSummarySnapshot() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSummary
}

// SendStartup announces the bot on every enabled channel.
func (s *Scheduler) SendStartup(ctx context.Context, channels []string) {
	msg := s.policy.Formatter().Startup(s.cfg.PollInterval, channels, s.store.Len(), s.now())
	if err := s.policy.Send(ctx, msg); err != nil {
		s.logger.Warn("startup message not delivered", slog.Any("error", err))
	}
}

// SendShutdown reports uptime and alert totals. ctx should outlive the
// canceled run context.
func (s *Scheduler) SendShutdown(ctx context.Context) {
	s.mu.RLock()
	uptime := s.now().Sub(s.startedAt)
	alerts := s.totalAlerts
	s.mu.RUnlock()

	msg := s.policy.Formatter().Shutdown(uptime, alerts, s.now())
	if err := s.policy.Send(ctx, msg); err != nil {
		s.logger.Warn("shutdown message not delivered", slog.Any("error", err))
	}
}

func notable(at time.Time, ev entity.ChangeEvent, note string) entity.NotableEvent {
	return entity.NotableEvent{
		At:        at,
		Kind:      ev.Kind,
		ProductID: ev.ProductID,
		Name:      ev.Current.Name,
		Note:      note,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
