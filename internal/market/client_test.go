package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, "key", "secret", 5*time.Second, 100, 10)
}

func snapshotJSON(symbol string, price, prevClose float64) string {
	return fmt.Sprintf(
		`{"symbol":%q,"price":%g,"prev_close":%g,"volume":2500000,"avg_volume":500000,"float_shares":8300000,"timestamp":1767618000}`,
		symbol, price, prevClose)
}

func TestFetchSnapshots(t *testing.T) {
	var gotPath, gotSymbols, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbols = r.URL.Query().Get("symbols")
		gotKey = r.Header.Get("X-API-Key")
		fmt.Fprintf(w, "[%s,%s]",
			snapshotJSON("KLTO", 2.85, 2.47),
			snapshotJSON("MEGA", 3.00, 2.00))
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).FetchSnapshots(context.Background(), []string{"KLTO", "MEGA"})
	if err != nil {
		t.Fatalf("FetchSnapshots: %v", err)
	}

	if gotPath != "/v1/snapshots" {
		t.Errorf("path = %q", gotPath)
	}
	if gotSymbols != "KLTO,MEGA" {
		t.Errorf("symbols query = %q", gotSymbols)
	}
	if gotKey != "key" {
		t.Errorf("api key header = %q", gotKey)
	}

	if len(got) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(got))
	}
	first := got[0]
	if first.Symbol != "KLTO" || first.Price != 2.85 || first.PrevClose != 2.47 {
		t.Errorf("snapshot = %+v", first)
	}
	if first.Volume != 2_500_000 || first.AvgVolume != 500_000 {
		t.Errorf("volume fields = %d/%d", first.Volume, first.AvgVolume)
	}
	if first.Timestamp.Unix() != 1767618000 {
		t.Errorf("timestamp = %v", first.Timestamp)
	}
}

func TestFetchSnapshots_SkipsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing symbol and a non-positive price are provider glitches the
		// client drops without failing the batch.
		fmt.Fprintf(w, `[%s,{"symbol":"","price":2.85},{"symbol":"BAD","price":0},%s]`,
			snapshotJSON("KLTO", 2.85, 2.47),
			snapshotJSON("MEGA", 3.00, 2.00))
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).FetchSnapshots(context.Background(), []string{"KLTO", "MEGA"})
	if err != nil {
		t.Fatalf("FetchSnapshots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d snapshots, want 2 valid ones", len(got))
	}
	if got[0].Symbol != "KLTO" || got[1].Symbol != "MEGA" {
		t.Errorf("symbols = %s, %s", got[0].Symbol, got[1].Symbol)
	}
}

func TestFetchSnapshots_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).FetchSnapshots(context.Background(), []string{"KLTO"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if len(got) != 0 {
		t.Errorf("got %d snapshots from a failed batch", len(got))
	}
}

func TestFetchSnapshots_PartialBatchFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "[%s]", snapshotJSON("ZZZZ", 3.00, 2.00))
	}))
	defer srv.Close()

	// 150 symbols split into two batches of 100 and 50; the first fails.
	universe := make([]string, 150)
	for i := range universe {
		universe[i] = fmt.Sprintf("SYM%03d", i)
	}

	got, err := testClient(srv.URL).FetchSnapshots(context.Background(), universe)
	if err == nil {
		t.Fatal("expected a wrapped error for the failed batch")
	}
	if len(got) != 1 {
		t.Fatalf("got %d snapshots, want the surviving batch's 1", len(got))
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 batches", calls)
	}
}

func TestFetchSnapshots_EmptyUniverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty universe")
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).FetchSnapshots(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchSnapshots: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d snapshots, want 0", len(got))
	}
}
