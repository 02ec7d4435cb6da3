package impact

import (
	"math"
	"time"

	apperrors "github.com/stayguard/stayguard/internal/errors"
	"github.com/stayguard/stayguard/internal/models"
)

// IncentiveBoost is the recovery-rate uplift per incentive signal: one for
// having a programme at all plus one per extra incentive offered.
const IncentiveBoost = 0.05

// maxRiskShare caps nights at risk at half a hotel's rooms regardless of
// occupancy or disruption type.
const maxRiskShare = 0.5

// Tables holds the per-type constants driving the impact formulas. Injected
// at construction so markets and tests can substitute their own rates.
type Tables struct {
	// DisruptionPercent is the share of occupied rooms assumed at risk per
	// disruption type. The standard table is a flat 0.25 for every type,
	// an intentional modelling simplification.
	DisruptionPercent map[models.MainType]float64

	// BaseRecoveryRate is the fraction of at-risk nights a hotel retains
	// before incentive uplifts, per disruption type.
	BaseRecoveryRate map[models.MainType]float64
}

// DefaultTables returns the standard rate constants.
func DefaultTables() Tables {
	return Tables{
		DisruptionPercent: map[models.MainType]float64{
			models.MainTypeStrike:    0.25,
			models.MainTypeWeather:   0.25,
			models.MainTypeProtest:   0.25,
			models.MainTypeEvent:     0.25,
			models.MainTypeTransport: 0.25,
			models.MainTypeOther:     0.25,
		},
		BaseRecoveryRate: map[models.MainType]float64{
			models.MainTypeStrike:    0.70,
			models.MainTypeWeather:   0.65,
			models.MainTypeProtest:   0.60,
			models.MainTypeEvent:     0.60,
			models.MainTypeTransport: 0.65,
			models.MainTypeOther:     0.55,
		},
	}
}

// Disruption is the slice of an alert the calculator needs.
type Disruption struct {
	MainType  models.MainType `json:"main_type"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
}

// Calculator turns a hotel profile and a disruption into a revenue-risk
// estimate. Stateless and safe for concurrent use.
type Calculator struct {
	tables Tables
}

// New creates a Calculator backed by the given tables. Zero-value tables use
// the defaults.
func New(tables Tables) *Calculator {
	if tables.DisruptionPercent == nil || tables.BaseRecoveryRate == nil {
		tables = DefaultTables()
	}
	return &Calculator{tables: tables}
}

// Calculate computes rooms and revenue at risk plus the expected recovery for
// one (hotel, disruption) pair. It returns a zeroed result and
// ErrUnknownSizeCategory when the hotel's size category is outside the
// recognised set.
//
// Nights at risk are capped at floor(roomCount*0.5); the recovery rate is
// clamped to [0,1] so nightsSaved.Max can never exceed NightsAtRisk, and the
// saved-nights bracket is [floor(exact), min(floor(exact)+1, nightsAtRisk)].
func (c *Calculator) Calculate(hotel models.HotelProfile, d Disruption, hasIncentive bool, extraIncentives int) (models.ImpactResult, error) {
	if _, ok := models.ParseSizeCategory(string(hotel.SizeCategory)); !ok {
		return models.ImpactResult{}, apperrors.ErrUnknownSizeCategory
	}

	percent, ok := c.tables.DisruptionPercent[d.MainType]
	if !ok {
		percent = c.tables.DisruptionPercent[models.MainTypeOther]
	}

	nightsAtRisk := int(math.Round(float64(hotel.RoomCount) * hotel.OccupancyRate * percent))
	riskCap := int(math.Floor(float64(hotel.RoomCount) * maxRiskShare))
	if nightsAtRisk > riskCap {
		nightsAtRisk = riskCap
	}

	poundsAtRisk := float64(nightsAtRisk) * hotel.AvgNightlyRate

	base, ok := c.tables.BaseRecoveryRate[d.MainType]
	if !ok {
		base = c.tables.BaseRecoveryRate[models.MainTypeOther]
	}

	recoveryRate := base
	if hasIncentive {
		recoveryRate += IncentiveBoost
	}
	recoveryRate += float64(extraIncentives) * IncentiveBoost
	recoveryRate = clamp01(recoveryRate)

	nightsSavedExact := math.Round(float64(nightsAtRisk)*recoveryRate*100) / 100
	minNights := int(math.Floor(nightsSavedExact))
	maxNights := minNights + 1
	if maxNights > nightsAtRisk {
		maxNights = nightsAtRisk
	}

	return models.ImpactResult{
		NightsAtRisk: nightsAtRisk,
		PoundsAtRisk: poundsAtRisk,
		RecoveryRate: recoveryRate,
		NightsSaved: models.NightsSaved{
			Exact: nightsSavedExact,
			Min:   minNights,
			Max:   maxNights,
		},
		PoundsSaved: models.PoundsSaved{
			Min: float64(minNights) * hotel.AvgNightlyRate,
			Max: float64(maxNights) * hotel.AvgNightlyRate,
		},
	}, nil
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
