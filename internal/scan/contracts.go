package scan

import (
	"context"
	"errors"
	"time"

	"github.com/tradewatch/gapsentry/internal/models"
)

// ErrCycleTimeout marks a scan cycle abandoned after exceeding its aggregate
// wall-clock budget. Alerts already dispatched stand; remaining work is
// dropped and the next tick proceeds on schedule.
var ErrCycleTimeout = errors.New("scan cycle exceeded its time budget")

// SnapshotFetcher supplies raw price/volume snapshots for the universe.
// Best-effort: symbols the provider cannot answer are absent from the result.
// A partial result alongside a non-nil error is still consumed.
type SnapshotFetcher interface {
	FetchSnapshots(ctx context.Context, universe []string) ([]models.RawSnapshot, error)
}

// HistoricalProvider returns per-symbol gap statistics, or an error wrapping
// the provider's unavailable sentinel when the data cannot be had in time.
type HistoricalProvider interface {
	GapStats(ctx context.Context, symbol string) (*models.HistoricalEdge, error)
}

// InsightProvider returns an AI read on a candidate's setup.
type InsightProvider interface {
	Analyze(ctx context.Context, cand models.GapCandidate, edge *models.HistoricalEdge) (*models.Insight, error)
}

// Dispatcher delivers one rendered alert message. A single delivery attempt;
// retry policy is owned by the scheduler.
type Dispatcher interface {
	Send(ctx context.Context, message string) error
}

// Deduplicator is the per-session novelty gate. ShouldAlert returns true at
// most once per (symbol, sessionDate); check-and-record is a single atomic
// operation in the backing store.
type Deduplicator interface {
	ShouldAlert(ctx context.Context, symbol, sessionDate string, score float64, at time.Time) (bool, error)
	PurgeBefore(ctx context.Context, sessionDate string) error
}

// RenderFunc formats a scored candidate into the outgoing alert message.
type RenderFunc func(cand models.GapCandidate, bd models.ScoreBreakdown) string

// TickClock abstracts time for the scheduler so tests can advance virtual
// time instead of waiting on real timers.
type TickClock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
