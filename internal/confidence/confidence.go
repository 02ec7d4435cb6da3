package confidence

import (
	"math"

	"github.com/stayguard/stayguard/internal/models"
)

// TierScores maps a per-tier occurrence count onto a score. One and Two cover
// exactly one and two sources; TwoPlus covers three or more.
type TierScores struct {
	One     float64 `yaml:"one"`
	Two     float64 `yaml:"two"`
	TwoPlus float64 `yaml:"two_plus"`
}

// TierTable holds the scoring table for every credibility tier. Tables are
// immutable once constructed and injected into the Scorer, so tests and
// per-market deployments can substitute alternates.
type TierTable map[models.CredibilityTier]TierScores

// DefaultTierTable returns the standard scoring constants.
func DefaultTierTable() TierTable {
	return TierTable{
		models.TierOfficial:  {One: 0.8, Two: 0.9, TwoPlus: 1.0},
		models.TierMajorNews: {One: 0.7, Two: 0.8, TwoPlus: 0.9},
		models.TierOtherNews: {One: 0.5, Two: 0.6, TwoPlus: 0.7},
		models.TierSocial:    {One: 0.3, Two: 0.3, TwoPlus: 0.4},
	}
}

// Result is the outcome of scoring a source list.
type Result struct {
	Score       float64                        `json:"score"`
	SourceCount int                            `json:"source_count"`
	Breakdown   map[models.CredibilityTier]int `json:"breakdown"`
}

// Scorer aggregates source credibility tiers into a 0-1 confidence score.
type Scorer struct {
	table TierTable
}

// New creates a Scorer backed by the given table. A nil table uses the
// defaults.
func New(table TierTable) *Scorer {
	if table == nil {
		table = DefaultTierTable()
	}
	return &Scorer{table: table}
}

// Score computes the confidence for the full accumulated source list.
// Sources are grouped by tier; each tier contributes its table score for the
// observed count, and the final value is the count-weighted mean rounded to
// two decimals. Zero sources score 0.
//
// Callers merging new sources into an existing alert must deduplicate by
// (source, url) and re-invoke Score on the whole list. Confidence is always
// recomputed from scratch, never incrementally averaged, so rounding can
// never compound.
func (s *Scorer) Score(sources []models.ConfidenceSource) Result {
	breakdown := make(map[models.CredibilityTier]int)
	for _, src := range sources {
		breakdown[src.CredibilityTier]++
	}

	if len(sources) == 0 {
		return Result{Score: 0, SourceCount: 0, Breakdown: breakdown}
	}

	var weightedSum float64
	var totalCount int
	for tier, count := range breakdown {
		scores, ok := s.table[tier]
		if !ok {
			// Unknown tier scores as social, the floor.
			scores = s.table[models.TierSocial]
		}
		weightedSum += scores.forCount(count) * float64(count)
		totalCount += count
	}

	score := weightedSum / float64(totalCount)
	score = math.Round(score*100) / 100
	score = clamp01(score)

	return Result{Score: score, SourceCount: len(sources), Breakdown: breakdown}
}

// SourceValue returns the credibility value a single source of the given
// tier contributes on its own. Callers stamp this onto each
// ConfidenceSource as it is attached to an alert.
func (s *Scorer) SourceValue(tier models.CredibilityTier) float64 {
	scores, ok := s.table[tier]
	if !ok {
		scores = s.table[models.TierSocial]
	}
	return scores.One
}

func (t TierScores) forCount(count int) float64 {
	switch {
	case count <= 1:
		return t.One
	case count == 2:
		return t.Two
	default:
		return t.TwoPlus
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
