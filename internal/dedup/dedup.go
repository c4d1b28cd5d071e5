// Package dedup implements the per-session alert novelty gate over a
// persisted checkpoint store.
package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tradewatch/gapsentry/internal/models"
)

// CheckpointStore is the persistence contract for dedup records. The store
// must make CheckAndRecord atomic even when accessed from more than one
// process, e.g. a manual run-once invocation racing the service.
type CheckpointStore interface {
	// CheckAndRecord inserts the record if no entry exists for its
	// (symbol, sessionDate) key, reporting whether the insert happened.
	CheckAndRecord(ctx context.Context, rec models.AlertRecord) (bool, error)
	// DeleteBefore evicts records whose session date precedes the given one,
	// returning how many were removed.
	DeleteBefore(ctx context.Context, sessionDate string) (int64, error)
}

// Deduplicator gates alerts to at most one per (symbol, sessionDate).
type Deduplicator struct {
	store CheckpointStore
}

// New creates a deduplicator over the given checkpoint store.
func New(store CheckpointStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// ShouldAlert reports whether this (symbol, sessionDate) pair has not been
// alerted yet, recording the checkpoint in the same atomic operation so no
// second caller can also get true. The record is committed before dispatch:
// an alert that later fails to deliver is still considered spent.
func (d *Deduplicator) ShouldAlert(ctx context.Context, symbol, sessionDate string, score float64, at time.Time) (bool, error) {
	return d.store.CheckAndRecord(ctx, models.AlertRecord{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		SessionDate:  sessionDate,
		Score:        score,
		DispatchedAt: at,
	})
}

// PurgeBefore lazily evicts checkpoint entries from earlier session dates.
// Called opportunistically on session rollover, not on a timer.
func (d *Deduplicator) PurgeBefore(ctx context.Context, sessionDate string) error {
	n, err := d.store.DeleteBefore(ctx, sessionDate)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug().Int64("evicted", n).Str("session_date", sessionDate).
			Msg("purged stale dedup checkpoints")
	}
	return nil
}
