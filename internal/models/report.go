package models

import (
	"strings"
	"time"

	apperrors "github.com/stayguard/stayguard/internal/errors"
)

// MainType is the closed set of disruption categories the engine understands.
// Free-form feed text is mapped onto one of these; anything unrecognised
// becomes MainTypeOther rather than leaking an arbitrary string downstream.
type MainType string

const (
	MainTypeStrike    MainType = "strike"
	MainTypeWeather   MainType = "weather"
	MainTypeProtest   MainType = "protest"
	MainTypeEvent     MainType = "event"
	MainTypeTransport MainType = "transport"
	MainTypeOther     MainType = "other"
)

// MainTypes lists every recognised disruption category.
var MainTypes = []MainType{
	MainTypeStrike,
	MainTypeWeather,
	MainTypeProtest,
	MainTypeEvent,
	MainTypeTransport,
	MainTypeOther,
}

// ParseMainType maps a raw string onto the closed MainType set.
// Unknown values fall through to MainTypeOther.
func ParseMainType(s string) MainType {
	switch MainType(strings.ToLower(strings.TrimSpace(s))) {
	case MainTypeStrike:
		return MainTypeStrike
	case MainTypeWeather:
		return MainTypeWeather
	case MainTypeProtest:
		return MainTypeProtest
	case MainTypeEvent:
		return MainTypeEvent
	case MainTypeTransport:
		return MainTypeTransport
	default:
		return MainTypeOther
	}
}

// CredibilityTier ranks how trustworthy a report's source is.
type CredibilityTier string

const (
	TierOfficial  CredibilityTier = "official"
	TierMajorNews CredibilityTier = "major_news"
	TierOtherNews CredibilityTier = "other_news"
	TierSocial    CredibilityTier = "social"
)

// ParseCredibilityTier maps a raw string onto the tier set.
// Unknown values are treated as social, the lowest tier.
func ParseCredibilityTier(s string) CredibilityTier {
	switch CredibilityTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierOfficial:
		return TierOfficial
	case TierMajorNews:
		return TierMajorNews
	case TierOtherNews:
		return TierOtherNews
	default:
		return TierSocial
	}
}

// DisruptionReport is a single raw sighting of a travel disruption, as
// delivered by the LLM scout or a news feed. Immutable once received.
type DisruptionReport struct {
	ID                string          `json:"id" db:"id"`
	City              string          `json:"city" db:"city"`
	MainType          MainType        `json:"main_type" db:"main_type"`
	SubType           string          `json:"sub_type" db:"sub_type"`
	Title             string          `json:"title" db:"title"`
	Summary           string          `json:"summary" db:"summary"`
	StartDate         time.Time       `json:"start_date" db:"start_date"`
	EndDate           time.Time       `json:"end_date" db:"end_date"`
	Source            string          `json:"source" db:"source"`
	URL               string          `json:"url" db:"url"`
	SourceCredibility CredibilityTier `json:"source_credibility" db:"source_credibility"`
	DetectedAt        time.Time       `json:"detected_at" db:"detected_at"`
}

// Validate checks the fields the engine cannot work without.
func (r DisruptionReport) Validate() error {
	if strings.TrimSpace(r.City) == "" {
		return apperrors.ValidationError{Field: "city", Message: "required"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return apperrors.ValidationError{Field: "title", Message: "required"}
	}
	if r.MainType == "" {
		return apperrors.ValidationError{Field: "main_type", Message: "required"}
	}
	if strings.TrimSpace(r.Source) == "" {
		return apperrors.ValidationError{Field: "source", Message: "required"}
	}
	if !r.EndDate.IsZero() && !r.StartDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return apperrors.ValidationError{Field: "end_date", Message: "before start_date"}
	}
	return nil
}
