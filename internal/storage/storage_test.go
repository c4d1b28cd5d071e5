package storage

import (
	"context"
	"testing"
	"time"

	"github.com/tradewatch/gapsentry/internal/models"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(symbol, sessionDate string, score float64) models.AlertRecord {
	return models.AlertRecord{
		ID:           symbol + "-" + sessionDate,
		Symbol:       symbol,
		SessionDate:  sessionDate,
		Score:        score,
		DispatchedAt: time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC),
	}
}

func TestCheckAndRecord_FirstClaimWins(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	ok, err := s.CheckAndRecord(ctx, record("KLTO", "2026-01-05", 72))
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if !ok {
		t.Fatal("first claim should succeed")
	}

	ok, err = s.CheckAndRecord(ctx, record("KLTO", "2026-01-05", 85))
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if ok {
		t.Error("second claim for same symbol/date should be rejected")
	}
}

func TestCheckAndRecord_KeyIsSymbolAndDate(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	if _, err := s.CheckAndRecord(ctx, record("KLTO", "2026-01-05", 72)); err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}

	// Same symbol on a new session date is a fresh claim.
	ok, err := s.CheckAndRecord(ctx, record("KLTO", "2026-01-06", 64))
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if !ok {
		t.Error("new session date should be claimable")
	}

	// Different symbol on the same date too.
	ok, err = s.CheckAndRecord(ctx, record("MEGA", "2026-01-05", 91))
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if !ok {
		t.Error("different symbol should be claimable")
	}
}

func TestDeleteBefore(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	for _, rec := range []models.AlertRecord{
		record("KLTO", "2026-01-02", 70),
		record("MEGA", "2026-01-02", 80),
		record("KLTO", "2026-01-05", 72),
	} {
		if _, err := s.CheckAndRecord(ctx, rec); err != nil {
			t.Fatalf("CheckAndRecord: %v", err)
		}
	}

	n, err := s.DeleteBefore(ctx, "2026-01-05")
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	// The current date's checkpoint survives, so the claim stays spent.
	ok, err := s.CheckAndRecord(ctx, record("KLTO", "2026-01-05", 72))
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if ok {
		t.Error("current-date checkpoint should have survived the purge")
	}
}

func TestAlertsForDate(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	early := record("KLTO", "2026-01-05", 72)
	early.DispatchedAt = time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	late := record("MEGA", "2026-01-05", 91)
	late.DispatchedAt = time.Date(2026, time.January, 5, 9, 15, 0, 0, time.UTC)
	other := record("ZETA", "2026-01-06", 55)

	for _, rec := range []models.AlertRecord{early, late, other} {
		if _, err := s.CheckAndRecord(ctx, rec); err != nil {
			t.Fatalf("CheckAndRecord: %v", err)
		}
	}

	got, err := s.AlertsForDate(ctx, "2026-01-05")
	if err != nil {
		t.Fatalf("AlertsForDate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Symbol != "MEGA" || got[1].Symbol != "KLTO" {
		t.Errorf("order = [%s %s], want newest first [MEGA KLTO]", got[0].Symbol, got[1].Symbol)
	}
	if !got[0].DispatchedAt.Equal(late.DispatchedAt) {
		t.Errorf("dispatched at = %v, want %v", got[0].DispatchedAt, late.DispatchedAt)
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir + "/nested/data.db")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := s.CheckAndRecord(context.Background(), record("KLTO", "2026-01-05", 72)); err != nil {
		t.Errorf("CheckAndRecord on fresh file-backed db: %v", err)
	}
}
