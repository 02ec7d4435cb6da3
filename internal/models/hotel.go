package models

import "strings"

// SizeCategory buckets hotels by room count for impact modelling.
type SizeCategory string

const (
	SizeMicro  SizeCategory = "micro"
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
)

// ParseSizeCategory maps a raw string onto the recognised size categories.
// The second return is false for anything outside the closed set; impact
// calculation refuses such profiles rather than guessing.
func ParseSizeCategory(s string) (SizeCategory, bool) {
	switch SizeCategory(strings.ToLower(strings.TrimSpace(s))) {
	case SizeMicro:
		return SizeMicro, true
	case SizeSmall:
		return SizeSmall, true
	case SizeMedium:
		return SizeMedium, true
	default:
		return "", false
	}
}

// HotelProfile is the caller-owned description of a hotel; read-only input
// to the impact calculator.
type HotelProfile struct {
	SizeCategory        SizeCategory `json:"size_category"`
	RoomCount           int          `json:"room_count"`
	OccupancyRate       float64      `json:"occupancy_rate"`
	AvgNightlyRate      float64      `json:"avg_nightly_rate"`
	HasIncentiveProgram bool         `json:"has_incentive_program"`
	IncentiveCount      int          `json:"incentive_count"`
}

// NightsSaved carries the exact expected value plus the integer bracket the
// dashboards display.
type NightsSaved struct {
	Exact float64 `json:"exact"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
}

// PoundsSaved is the revenue bracket corresponding to NightsSaved.
type PoundsSaved struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ImpactResult is the quantified revenue risk for one (hotel, alert) pair.
// Computed fresh on every call and never persisted by the engine.
type ImpactResult struct {
	NightsAtRisk int         `json:"nights_at_risk"`
	PoundsAtRisk float64     `json:"pounds_at_risk"`
	RecoveryRate float64     `json:"recovery_rate"`
	NightsSaved  NightsSaved `json:"nights_saved"`
	PoundsSaved  PoundsSaved `json:"pounds_saved"`
}
