package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradewatch/gapsentry/internal/models"
	"github.com/tradewatch/gapsentry/internal/session"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// SchedulerConfig holds the scan cadence and cycle limits. BaseInterval is
// the premarket cadence; regular and afterhours sessions scan at their
// configured multiples of it.
type SchedulerConfig struct {
	BaseInterval         time.Duration
	RegularMultiplier    int
	AfterHoursMultiplier int
	CycleBudget          time.Duration
	CallTimeout          time.Duration
	MaxAlertsPerCycle    int
	DispatchRetries      int
	DispatchBackoffBase  time.Duration
	Universe             []string
}

// DefaultSchedulerConfig returns the stock cadence settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BaseInterval:         5 * time.Minute,
		RegularMultiplier:    2,
		AfterHoursMultiplier: 3,
		CycleBudget:          2 * time.Minute,
		CallTimeout:          20 * time.Second,
		MaxAlertsPerCycle:    5,
		DispatchRetries:      3,
		DispatchBackoffBase:  time.Second,
	}
}

// Interval returns the scan interval for the given session.
func (c SchedulerConfig) Interval(s session.Session) time.Duration {
	switch s {
	case session.Regular:
		if c.RegularMultiplier > 1 {
			return c.BaseInterval * time.Duration(c.RegularMultiplier)
		}
	case session.AfterHours:
		if c.AfterHoursMultiplier > 1 {
			return c.BaseInterval * time.Duration(c.AfterHoursMultiplier)
		}
	}
	return c.BaseInterval
}

// Stats is a snapshot of the scheduler's run counters.
type Stats struct {
	Cycles            uint64
	TimedOutCycles    uint64
	CandidatesSeen    uint64
	AlertsSent        uint64
	AlertsDropped     uint64
	LastCycleAt       time.Time
	LastCycleDuration time.Duration
}

// Options wires a scheduler's collaborators. Sessions, Scoring, Fetcher, and
// Dedup are required; Historical, Insight, and Dispatcher are optional
// collaborators the pipeline degrades without.
type Options struct {
	Config     SchedulerConfig
	Sessions   *session.Clock
	Filter     Thresholds
	Scoring    *Engine
	Fetcher    SnapshotFetcher
	Dedup      Deduplicator
	Historical HistoricalProvider
	Insight    InsightProvider
	Dispatcher Dispatcher
	Render     RenderFunc
	Tick       TickClock
}

// Scheduler drives the scan pipeline: one cooperative loop, at most one
// cycle in flight, interval chosen by the current trading session. All
// run-to-run state (dedup rollover date, counters) is owned by the instance.
type Scheduler struct {
	cfg        SchedulerConfig
	sessions   *session.Clock
	filter     Thresholds
	scoring    *Engine
	fetcher    SnapshotFetcher
	dedup      Deduplicator
	historical HistoricalProvider
	insight    InsightProvider
	dispatcher Dispatcher
	render     RenderFunc
	tick       TickClock

	state atomic.Int32

	mu              sync.Mutex
	stats           Stats
	lastSessionDate string
}

// New validates the options and builds a scheduler in the idle state.
func New(opts Options) (*Scheduler, error) {
	if opts.Sessions == nil {
		return nil, errors.New("scan: session clock is required")
	}
	if opts.Scoring == nil {
		return nil, errors.New("scan: scoring engine is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("scan: snapshot fetcher is required")
	}
	if opts.Dedup == nil {
		return nil, errors.New("scan: deduplicator is required")
	}
	if opts.Config.BaseInterval <= 0 {
		return nil, errors.New("scan: base interval must be positive")
	}
	if opts.Config.CycleBudget <= 0 {
		return nil, errors.New("scan: cycle budget must be positive")
	}
	if opts.Tick == nil {
		opts.Tick = realClock{}
	}
	if opts.Render == nil {
		opts.Render = PlainAlert
	}
	return &Scheduler{
		cfg:        opts.Config,
		sessions:   opts.Sessions,
		filter:     opts.Filter,
		scoring:    opts.Scoring,
		fetcher:    opts.Fetcher,
		dedup:      opts.Dedup,
		historical: opts.Historical,
		insight:    opts.Insight,
		dispatcher: opts.Dispatcher,
		render:     opts.Render,
		tick:       opts.Tick,
	}, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns a copy of the run counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run executes scan cycles until ctx is cancelled. A cancellation arriving
// mid-cycle lets the in-flight cycle finish; no new cycle starts after it.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("scan: scheduler already started (state %s)", s.State())
	}
	defer s.state.Store(int32(StateStopped))

	for {
		if ctx.Err() != nil {
			s.state.Store(int32(StateStopping))
			log.Info().Msg("stop signal received, scheduler shutting down")
			return nil
		}

		now := s.tick.Now()
		sess := s.sessions.Classify(now)

		var wait time.Duration
		if sess.Active() {
			s.runCycle(ctx, now, sess)
			wait = s.cfg.Interval(sess)
		} else {
			next := s.sessions.NextSessionStart(now)
			wait = next.Sub(now)
			log.Info().
				Str("session", sess.String()).
				Time("next_session", next).
				Dur("sleep", wait).
				Msg("market closed, sleeping until next session")
		}

		select {
		case <-ctx.Done():
			s.state.Store(int32(StateStopping))
			log.Info().Msg("stop signal received, scheduler shutting down")
			return nil
		case <-s.tick.After(wait):
		}
	}
}

// RunOnce executes at most one scan cycle and stops, for manual or
// diagnostic invocation. Outside an active session it only reports when the
// next session begins.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("scan: scheduler already started (state %s)", s.State())
	}
	defer s.state.Store(int32(StateStopped))

	now := s.tick.Now()
	sess := s.sessions.Classify(now)
	if !sess.Active() {
		log.Info().
			Str("session", sess.String()).
			Time("next_session", s.sessions.NextSessionStart(now)).
			Msg("market closed, nothing to scan")
		return nil
	}
	s.runCycle(ctx, now, sess)
	return nil
}

// runCycle executes one fetch→filter→score→dedup→dispatch pass under the
// cycle's aggregate time budget. The budget context deliberately does not
// inherit the parent's cancellation: stop requests take effect at cycle
// boundaries only.
func (s *Scheduler) runCycle(parent context.Context, now time.Time, sess session.Session) {
	start := s.tick.Now()
	logger := log.With().
		Str("cycle", uuid.NewString()[:8]).
		Str("session", sess.String()).
		Logger()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.CycleBudget)
	defer cancel()

	sessionDate := s.sessions.SessionDate(now)
	s.mu.Lock()
	prevDate := s.lastSessionDate
	s.lastSessionDate = sessionDate
	s.mu.Unlock()
	if prevDate != "" && prevDate != sessionDate {
		if err := s.dedup.PurgeBefore(ctx, sessionDate); err != nil {
			logger.Warn().Err(err).Msg("failed to purge stale dedup records")
		}
	}

	snapshots := s.fetchSnapshots(ctx, logger)
	candidates := FilterGaps(snapshots, s.filter)
	logger.Info().
		Int("snapshots", len(snapshots)).
		Int("candidates", len(candidates)).
		Msg("scan cycle filtered")

	var sent, dropped uint64
	timedOut := false
	for _, cand := range candidates {
		if ctx.Err() != nil {
			timedOut = true
			break
		}
		if s.cfg.MaxAlertsPerCycle > 0 && sent+dropped >= uint64(s.cfg.MaxAlertsPerCycle) {
			logger.Debug().Int("cap", s.cfg.MaxAlertsPerCycle).Msg("per-cycle alert cap reached")
			break
		}

		edge := s.gapStats(ctx, cand.Symbol, logger)
		insight := s.analyze(ctx, cand, edge, logger)
		bd := s.scoring.Score(cand, edge, insight)

		ok, err := s.dedup.ShouldAlert(ctx, cand.Symbol, sessionDate, bd.Total, s.tick.Now())
		if err != nil {
			logger.Warn().Err(err).Str("symbol", cand.Symbol).Msg("dedup check failed, skipping alert")
			continue
		}
		if !ok {
			logger.Debug().Str("symbol", cand.Symbol).Msg("already alerted this session")
			continue
		}

		logger.Info().
			Str("symbol", cand.Symbol).
			Float64("gap_percent", cand.GapPercent).
			Float64("score", bd.Total).
			Msg("alerting gap candidate")

		if s.dispatch(ctx, s.render(cand, bd), logger) {
			sent++
		} else {
			dropped++
		}
	}

	if !timedOut && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		timedOut = true
	}
	if timedOut {
		logger.Error().Err(ErrCycleTimeout).Dur("budget", s.cfg.CycleBudget).Msg("scan cycle abandoned")
	}

	duration := s.tick.Now().Sub(start)
	s.mu.Lock()
	s.stats.Cycles++
	if timedOut {
		s.stats.TimedOutCycles++
	}
	s.stats.CandidatesSeen += uint64(len(candidates))
	s.stats.AlertsSent += sent
	s.stats.AlertsDropped += dropped
	s.stats.LastCycleAt = start
	s.stats.LastCycleDuration = duration
	s.mu.Unlock()

	logger.Info().
		Uint64("alerts_sent", sent).
		Uint64("alerts_dropped", dropped).
		Dur("duration", duration).
		Msg("scan cycle completed")
}

// fetchSnapshots calls the fetcher with a per-call timeout. Fetch failures
// are transient: whatever partial data arrived is used and the cycle goes on.
func (s *Scheduler) fetchSnapshots(ctx context.Context, logger zerolog.Logger) []models.RawSnapshot {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	snapshots, err := s.fetcher.FetchSnapshots(fctx, s.cfg.Universe)
	if err != nil {
		logger.Warn().Err(err).Int("received", len(snapshots)).
			Msg("snapshot fetch failed or partial, continuing with what arrived")
	}
	return snapshots
}

// gapStats fetches the optional historical edge; unavailable data degrades
// that sub-score to zero.
func (s *Scheduler) gapStats(ctx context.Context, symbol string, logger zerolog.Logger) *models.HistoricalEdge {
	if s.historical == nil {
		return nil
	}
	hctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	edge, err := s.historical.GapStats(hctx, symbol)
	if err != nil {
		logger.Debug().Err(err).Str("symbol", symbol).Msg("historical edge unavailable")
		return nil
	}
	return edge
}

// analyze fetches the optional AI insight.
func (s *Scheduler) analyze(ctx context.Context, cand models.GapCandidate, edge *models.HistoricalEdge, logger zerolog.Logger) *models.Insight {
	if s.insight == nil {
		return nil
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	insight, err := s.insight.Analyze(actx, cand, edge)
	if err != nil {
		logger.Debug().Err(err).Str("symbol", cand.Symbol).Msg("ai insight unavailable")
		return nil
	}
	return insight
}

// dispatch delivers one alert with bounded retry and increasing backoff.
// After the last attempt fails the alert is dropped for good: market
// relevance decays faster than a re-send would be useful, and the dedup
// record already committed keeps the next cycle from re-alerting.
func (s *Scheduler) dispatch(ctx context.Context, message string, logger zerolog.Logger) bool {
	if s.dispatcher == nil {
		logger.Info().Msg("dispatcher disabled, alert logged only")
		return true
	}

	attempts := s.cfg.DispatchRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.dispatcher.Send(ctx, message); err == nil {
			return true
		} else {
			lastErr = err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				logger.Error().Err(ctx.Err()).Msg("alert dropped, cycle budget exhausted during dispatch")
				return false
			case <-s.tick.After(s.cfg.DispatchBackoffBase * time.Duration(i+1)):
			}
		}
	}
	logger.Error().Err(lastErr).Int("attempts", attempts).Msg("alert dropped after dispatch retries")
	return false
}

// PlainAlert is the fallback renderer used when no dispatcher formatting is
// configured.
func PlainAlert(cand models.GapCandidate, bd models.ScoreBreakdown) string {
	return fmt.Sprintf("%s gap %s %.1f%% $%.2f -> $%.2f vol %d score %.0f",
		cand.Symbol, cand.Direction(), math.Abs(cand.GapPercent), cand.PrevClose, cand.Price,
		cand.Volume, bd.Total)
}
