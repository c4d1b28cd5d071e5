package session

import (
	"testing"
	"time"
)

func testWindows(t *testing.T) Windows {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	mustParse := func(s string) ClockTime {
		ct, err := ParseClockTime(s)
		if err != nil {
			t.Fatalf("ParseClockTime(%q): %v", s, err)
		}
		return ct
	}
	return Windows{
		Location:         loc,
		PremarketStart:   mustParse("04:00"),
		PremarketEnd:     mustParse("09:30"),
		MarketOpen:       mustParse("09:30"),
		MarketClose:      mustParse("16:00"),
		AfterHoursEnd:    mustParse("20:00"),
		EnablePremarket:  true,
		EnableAfterHours: true,
		WeekendPause:     true,
	}
}

// 2026-01-05 is a Monday.
func nyTime(t *testing.T, hour, minute, sec int) time.Time {
	t.Helper()
	loc, _ := time.LoadLocation("America/New_York")
	return time.Date(2026, time.January, 5, hour, minute, sec, 0, loc)
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		input   string
		want    ClockTime
		wantErr bool
	}{
		{"04:00", 240, false},
		{"09:30", 570, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"garbage", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClockTime(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClockTime(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClockTime(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseClockTime(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestClassify_Sessions(t *testing.T) {
	clock := NewClock(testWindows(t))

	tests := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"premarket start boundary", nyTime(t, 4, 0, 0), Premarket},
		{"mid premarket", nyTime(t, 7, 15, 0), Premarket},
		{"last premarket minute", nyTime(t, 9, 29, 59), Premarket},
		{"market open boundary", nyTime(t, 9, 30, 0), Regular},
		{"midday", nyTime(t, 12, 0, 0), Regular},
		{"market close boundary", nyTime(t, 16, 0, 0), AfterHours},
		{"late afterhours", nyTime(t, 19, 59, 0), AfterHours},
		{"afterhours end boundary", nyTime(t, 20, 0, 0), Closed},
		{"midnight", nyTime(t, 0, 0, 0), Closed},
		{"before premarket", nyTime(t, 3, 59, 0), Closed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clock.Classify(tt.at); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestClassify_DisabledWindowsDegradeToClosed(t *testing.T) {
	win := testWindows(t)
	win.EnablePremarket = false
	win.EnableAfterHours = false
	clock := NewClock(win)

	if got := clock.Classify(nyTime(t, 7, 0, 0)); got != Closed {
		t.Errorf("disabled premarket instant = %v, want Closed", got)
	}
	if got := clock.Classify(nyTime(t, 17, 0, 0)); got != Closed {
		t.Errorf("disabled afterhours instant = %v, want Closed", got)
	}
	// Regular hours are unaffected by the enable flags.
	if got := clock.Classify(nyTime(t, 12, 0, 0)); got != Regular {
		t.Errorf("regular instant = %v, want Regular", got)
	}
}

func TestClassify_Weekend(t *testing.T) {
	clock := NewClock(testWindows(t))
	loc, _ := time.LoadLocation("America/New_York")

	// 2026-01-03 is a Saturday; weekend overrides every time-of-day window.
	for _, hour := range []int{0, 7, 12, 17, 23} {
		at := time.Date(2026, time.January, 3, hour, 0, 0, 0, loc)
		if got := clock.Classify(at); got != Weekend {
			t.Errorf("Classify(Sat %02d:00) = %v, want Weekend", hour, got)
		}
	}

	win := testWindows(t)
	win.WeekendPause = false
	noPause := NewClock(win)
	at := time.Date(2026, time.January, 3, 12, 0, 0, 0, loc)
	if got := noPause.Classify(at); got != Regular {
		t.Errorf("Classify(Sat noon, pause off) = %v, want Regular", got)
	}
}

func TestNextSessionStart_MidnightToPremarket(t *testing.T) {
	clock := NewClock(testWindows(t))

	midnight := nyTime(t, 0, 0, 0)
	next := clock.NextSessionStart(midnight)

	want := nyTime(t, 4, 0, 0)
	if !next.Equal(want) {
		t.Fatalf("NextSessionStart(midnight) = %v, want %v", next, want)
	}
	if got := next.Sub(midnight); got != 4*time.Hour {
		t.Errorf("sleep duration = %v, want exactly %v", got, 4*time.Hour)
	}
}

func TestNextSessionStart_SkipsWeekend(t *testing.T) {
	clock := NewClock(testWindows(t))
	loc, _ := time.LoadLocation("America/New_York")

	// Friday 2026-01-02 21:00, past afterhours end: next start is Monday premarket.
	friday := time.Date(2026, time.January, 2, 21, 0, 0, 0, loc)
	next := clock.NextSessionStart(friday)
	want := time.Date(2026, time.January, 5, 4, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextSessionStart(Friday night) = %v, want %v", next, want)
	}
}

func TestNextSessionStart_PremarketDisabled(t *testing.T) {
	win := testWindows(t)
	win.EnablePremarket = false
	clock := NewClock(win)

	midnight := nyTime(t, 0, 0, 0)
	next := clock.NextSessionStart(midnight)
	want := nyTime(t, 9, 30, 0)
	if !next.Equal(want) {
		t.Errorf("NextSessionStart(midnight, no premarket) = %v, want %v", next, want)
	}
}

func TestSessionDate(t *testing.T) {
	clock := NewClock(testWindows(t))
	if got := clock.SessionDate(nyTime(t, 7, 0, 0)); got != "2026-01-05" {
		t.Errorf("SessionDate = %q, want 2026-01-05", got)
	}
}
