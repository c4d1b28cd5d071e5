// Package models defines the core domain entities: price snapshots, gap
// candidates, score breakdowns, and alert records.
package models

import (
	"errors"
	"time"
)

// RawSnapshot is a single symbol's price/volume state as reported by the
// market-data provider. One snapshot per symbol per scan cycle; never stored.
type RawSnapshot struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	PrevClose   float64   `json:"prev_close"`
	Volume      int64     `json:"volume"`
	AvgVolume   int64     `json:"avg_volume"`
	FloatShares float64   `json:"float_shares"`
	Timestamp   time.Time `json:"timestamp"`
}

// Validate checks snapshot field constraints.
func (s *RawSnapshot) Validate() error {
	if s.Symbol == "" {
		return errors.New("symbol must not be empty")
	}
	if s.Price <= 0 {
		return errors.New("price must be positive")
	}
	if s.PrevClose <= 0 {
		return errors.New("previous close must be positive")
	}
	if s.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if s.FloatShares < 0 {
		return errors.New("float shares must not be negative")
	}
	return nil
}

// GapPercent returns the percentage difference between the last price and the
// previous session's close. Zero when the previous close is unknown.
func (s *RawSnapshot) GapPercent() float64 {
	if s.PrevClose == 0 {
		return 0
	}
	return (s.Price - s.PrevClose) / s.PrevClose * 100
}

// GapCandidate is a snapshot that passed every configured gap threshold.
// PrevClose is retained so a candidate can be re-screened losslessly.
type GapCandidate struct {
	Symbol      string    `json:"symbol"`
	GapPercent  float64   `json:"gap_percent"`
	Price       float64   `json:"price"`
	PrevClose   float64   `json:"prev_close"`
	Volume      int64     `json:"volume"`
	AvgVolume   int64     `json:"avg_volume"`
	FloatShares float64   `json:"float_shares"`
	Timestamp   time.Time `json:"timestamp"`
}

// Direction reports which way the gap points.
func (c GapCandidate) Direction() string {
	if c.GapPercent < 0 {
		return "DOWN"
	}
	return "UP"
}

// FloatMillions returns the public float in millions of shares.
func (c GapCandidate) FloatMillions() float64 {
	return c.FloatShares / 1e6
}

// Snapshot converts the candidate back into the snapshot it was derived from.
func (c GapCandidate) Snapshot() RawSnapshot {
	return RawSnapshot{
		Symbol:      c.Symbol,
		Price:       c.Price,
		PrevClose:   c.PrevClose,
		Volume:      c.Volume,
		AvgVolume:   c.AvgVolume,
		FloatShares: c.FloatShares,
		Timestamp:   c.Timestamp,
	}
}
