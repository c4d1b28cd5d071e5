package models

import "time"

// ScoreBreakdown is the weighted multi-factor score for one gap candidate.
// Each sub-score lies in [0, its configured maximum]; Total is the clamped sum.
type ScoreBreakdown struct {
	GapScore        float64  `json:"gap_score"`
	VolumeScore     float64  `json:"volume_score"`
	FloatScore      float64  `json:"float_score"`
	HistoricalScore float64  `json:"historical_score"`
	AIScore         float64  `json:"ai_score"`
	Total           float64  `json:"total"`
	Rationale       []string `json:"rationale"`
}

// AlertRecord is the persisted dedup checkpoint entry. At most one record
// exists per (Symbol, SessionDate); entries from earlier session dates are
// evicted lazily.
type AlertRecord struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	SessionDate  string    `json:"session_date"`
	Score        float64   `json:"score"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// HistoricalEdge carries per-symbol gap statistics from the historical
// statistics provider. All rates are percentages in [0, 100].
type HistoricalEdge struct {
	Symbol           string  `json:"symbol"`
	ContinuationRate float64 `json:"continuation_rate"`
	GapFillRate      float64 `json:"gap_fill_rate"`
	VolumeFactor     float64 `json:"volume_factor"`
	EdgeScore        float64 `json:"edge_score"`
}

// Insight is the AI provider's read on a candidate's setup.
// PatternQuality lies in [0, 1].
type Insight struct {
	Symbol         string  `json:"symbol"`
	PatternQuality float64 `json:"pattern_quality"`
	Summary        string  `json:"summary"`
}
