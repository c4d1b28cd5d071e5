package scan

import (
	"fmt"
	"math"

	"github.com/tradewatch/gapsentry/internal/models"
)

// ScoreConfig holds the per-factor maxima and saturation points for the
// scoring engine. The documented factor maxima (25+20+15+40+10) sum past the
// 0-100 scale; Total is clamped to MaxScale rather than renormalized, so a
// candidate strong on every factor pins the scale.
type ScoreConfig struct {
	MaxScale              float64
	GapMax                float64
	VolumeMax             float64
	FloatMax              float64
	HistoricalMax         float64
	AIMax                 float64
	GapSaturationPercent  float64
	VolumeSaturationRatio float64
	MaxFloatMillions      float64
}

// DefaultScoreConfig returns the documented scoring weights.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		MaxScale:              100,
		GapMax:                25,
		VolumeMax:             20,
		FloatMax:              15,
		HistoricalMax:         40,
		AIMax:                 10,
		GapSaturationPercent:  25,
		VolumeSaturationRatio: 5,
		MaxFloatMillions:      50,
	}
}

// Engine computes score breakdowns for gap candidates. Stateless: no
// candidate influences another's score.
type Engine struct {
	cfg ScoreConfig
}

// NewEngine creates a scoring engine with the given configuration.
func NewEngine(cfg ScoreConfig) *Engine {
	return &Engine{cfg: cfg}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Score computes the weighted breakdown for one candidate. The historical
// edge and AI insight are optional; when nil their sub-scores are zero and
// scoring proceeds normally.
func (e *Engine) Score(cand models.GapCandidate, edge *models.HistoricalEdge, insight *models.Insight) models.ScoreBreakdown {
	var bd models.ScoreBreakdown

	gapSize := math.Abs(cand.GapPercent)
	bd.GapScore = e.cfg.GapMax * clamp01(gapSize/e.cfg.GapSaturationPercent)
	if bd.GapScore > 0 {
		bd.Rationale = append(bd.Rationale,
			fmt.Sprintf("gap %s %.1f%%", cand.Direction(), gapSize))
	}

	if cand.AvgVolume > 0 {
		ratio := float64(cand.Volume) / float64(cand.AvgVolume)
		bd.VolumeScore = e.cfg.VolumeMax * clamp01(ratio/e.cfg.VolumeSaturationRatio)
		if bd.VolumeScore > 0 {
			bd.Rationale = append(bd.Rationale,
				fmt.Sprintf("volume %.1fx average", ratio))
		}
	}

	if cand.FloatShares > 0 && e.cfg.MaxFloatMillions > 0 {
		bd.FloatScore = e.cfg.FloatMax * clamp01(1-cand.FloatMillions()/e.cfg.MaxFloatMillions)
		if bd.FloatScore > 0 {
			bd.Rationale = append(bd.Rationale,
				fmt.Sprintf("float %.1fM shares", cand.FloatMillions()))
		}
	}

	if edge != nil {
		quality := 0.7*clamp01(edge.EdgeScore/100) + 0.3*clamp01(edge.ContinuationRate/100)
		bd.HistoricalScore = e.cfg.HistoricalMax * quality
		if bd.HistoricalScore > 0 {
			bd.Rationale = append(bd.Rationale,
				fmt.Sprintf("historical edge %.0f/100, continuation %.0f%%",
					edge.EdgeScore, edge.ContinuationRate))
		}
	}

	if insight != nil {
		bd.AIScore = e.cfg.AIMax * clamp01(insight.PatternQuality)
		if bd.AIScore > 0 && insight.Summary != "" {
			bd.Rationale = append(bd.Rationale, insight.Summary)
		}
	}

	sum := bd.GapScore + bd.VolumeScore + bd.FloatScore + bd.HistoricalScore + bd.AIScore
	bd.Total = math.Max(0, math.Min(e.cfg.MaxScale, sum))
	return bd
}
