// Package scan implements the gap-detection pipeline: threshold filtering,
// multi-factor scoring, and the session-aware scheduler that drives one scan
// cycle at a time.
package scan

import (
	"sort"

	"github.com/tradewatch/gapsentry/internal/models"
)

// Thresholds are the configured gap/price/float gates a snapshot must clear
// to become a candidate.
type Thresholds struct {
	MinGapPercent    float64
	MinPrice         float64
	MaxPrice         float64
	MaxFloatMillions float64
}

// FilterGaps computes the gap for each snapshot and keeps those clearing
// every threshold. The result is ordered by gap percent descending, ties
// broken by symbol ascending, so repeated runs over the same input produce
// the same list. Filtering the output again with the same thresholds is a
// no-op.
func FilterGaps(snapshots []models.RawSnapshot, th Thresholds) []models.GapCandidate {
	var candidates []models.GapCandidate
	for i := range snapshots {
		snap := &snapshots[i]
		if snap.PrevClose <= 0 || snap.Price <= 0 {
			continue
		}
		gap := snap.GapPercent()
		if gap < th.MinGapPercent {
			continue
		}
		if snap.Price < th.MinPrice || snap.Price > th.MaxPrice {
			continue
		}
		if th.MaxFloatMillions > 0 && snap.FloatShares > th.MaxFloatMillions*1e6 {
			continue
		}
		candidates = append(candidates, models.GapCandidate{
			Symbol:      snap.Symbol,
			GapPercent:  gap,
			Price:       snap.Price,
			PrevClose:   snap.PrevClose,
			Volume:      snap.Volume,
			AvgVolume:   snap.AvgVolume,
			FloatShares: snap.FloatShares,
			Timestamp:   snap.Timestamp,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].GapPercent != candidates[j].GapPercent {
			return candidates[i].GapPercent > candidates[j].GapPercent
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	return candidates
}
