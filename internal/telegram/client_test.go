package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/tradewatch/gapsentry/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// Chat ID parsing happens before any network call, so this exercises the
	// error path without a live bot token.
	_, err := NewClient("", "not-a-number")
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func alertCandidate(gapPercent float64) models.GapCandidate {
	return models.GapCandidate{
		Symbol:      "KLTO",
		GapPercent:  gapPercent,
		Price:       2.85,
		PrevClose:   2.47,
		Volume:      2_500_000,
		AvgVolume:   500_000,
		FloatShares: 8.3e6,
		Timestamp:   time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC),
	}
}

func TestFormatAlert_Tiers(t *testing.T) {
	bd := models.ScoreBreakdown{Total: 72}

	tests := []struct {
		name       string
		gapPercent float64
		wantHeader string
	}{
		{"mega at 20", 20.0, "MEGA GAP"},
		{"hot at 10", 12.5, "HOT GAP"},
		{"standard below 10", 6.0, "Gap Alert"},
		{"mega gap down", -22.0, "MEGA GAP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatAlert(alertCandidate(tt.gapPercent), bd)
			if !strings.Contains(msg, tt.wantHeader) {
				t.Errorf("alert for %.1f%% missing header %q:\n%s", tt.gapPercent, tt.wantHeader, msg)
			}
		})
	}
}

func TestFormatAlert_Content(t *testing.T) {
	bd := models.ScoreBreakdown{
		Total:     72,
		Rationale: []string{"gap UP 15.4% vs prior close"},
	}
	msg := FormatAlert(alertCandidate(15.4), bd)

	for _, want := range []string{
		"$KLTO",
		"UP 15\\.4%",
		"$2\\.47",
		"$2\\.85",
		"2\\.5M",
		"72/100",
		"prior close",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatAlert_TargetStopOnlyForHotUpGaps(t *testing.T) {
	bd := models.ScoreBreakdown{Total: 72}

	hot := FormatAlert(alertCandidate(15.4), bd)
	if !strings.Contains(hot, "Target") || !strings.Contains(hot, "Stop") {
		t.Errorf("hot up-gap should carry target/stop lines:\n%s", hot)
	}
	// +5% target and -3% stop off the current price.
	if !strings.Contains(hot, "2\\.99") {
		t.Errorf("target price missing:\n%s", hot)
	}
	if !strings.Contains(hot, "2\\.76") {
		t.Errorf("stop price missing:\n%s", hot)
	}

	small := FormatAlert(alertCandidate(6.0), bd)
	if strings.Contains(small, "Target") {
		t.Errorf("small gap should not carry a setup section:\n%s", small)
	}

	down := FormatAlert(alertCandidate(-15.4), bd)
	if strings.Contains(down, "Target") {
		t.Errorf("gap down should not carry a long setup:\n%s", down)
	}
	if !strings.Contains(down, "DOWN 15\\.4%") {
		t.Errorf("gap down should render magnitude with DOWN direction:\n%s", down)
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{2_500_000, "2.5M"},
		{850_000, "850.0K"},
		{999, "999"},
	}
	for _, tt := range tests {
		if got := formatVolume(tt.in); got != tt.want {
			t.Errorf("formatVolume(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
