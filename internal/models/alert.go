package models

import "time"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusPending  AlertStatus = "pending"
	StatusApproved AlertStatus = "approved"
	StatusExpired  AlertStatus = "expired"
)

// Tone summarises how established an alert's story is. Produced by the
// enrichment collaborator; "Developing" is the fallback when enrichment fails.
type Tone string

const (
	ToneEarly      Tone = "Early"
	ToneDeveloping Tone = "Developing"
	ToneConfirmed  Tone = "Confirmed"
)

// ConfidenceSource is one corroborating source attached to an alert.
// The list is append-only and deduplicated by (Source, URL).
type ConfidenceSource struct {
	Source          string          `json:"source" db:"source"`
	CredibilityTier CredibilityTier `json:"credibility_tier" db:"credibility_tier"`
	ConfidenceValue float64         `json:"confidence_value" db:"confidence_value"`
	URL             string          `json:"url" db:"url"`
	Title           string          `json:"title" db:"title"`
	PublishedAt     time.Time       `json:"published_at" db:"published_at"`
}

// Alert is the durable, user-facing record derived from one or more
// disruption reports describing the same event.
type Alert struct {
	ID                string             `json:"id" db:"id"`
	City              string             `json:"city" db:"city"`
	MainType          MainType           `json:"main_type" db:"main_type"`
	SubType           string             `json:"sub_type" db:"sub_type"`
	Title             string             `json:"title" db:"title"`
	Summary           string             `json:"summary" db:"summary"`
	StartDate         time.Time          `json:"start_date" db:"start_date"`
	EndDate           time.Time          `json:"end_date" db:"end_date"`
	Status            AlertStatus        `json:"status" db:"status"`
	Confidence        float64            `json:"confidence" db:"confidence"`
	ConfidenceSources []ConfidenceSource `json:"confidence_sources" db:"confidence_sources"`
	Sectors           []string           `json:"sectors" db:"sectors"`
	RecoveryExpected  bool               `json:"recovery_expected" db:"recovery_expected"`
	Tone              Tone               `json:"tone,omitempty" db:"tone"`
	Header            string             `json:"header,omitempty" db:"header"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// HasSource reports whether a source with the same (source, url) pair is
// already attached.
func (a Alert) HasSource(source, url string) bool {
	for _, s := range a.ConfidenceSources {
		if s.Source == source && s.URL == url {
			return true
		}
	}
	return false
}

// Active reports whether the alert's date range is still current at t.
func (a Alert) Active(t time.Time) bool {
	return a.EndDate.IsZero() || !a.EndDate.Before(t)
}

// AlertQuery represents query parameters for filtering alerts.
type AlertQuery struct {
	IDs       []string      `json:"ids"`
	Cities    []string      `json:"cities"`
	MainTypes []MainType    `json:"main_types"`
	Statuses  []AlertStatus `json:"statuses"`
	Since     time.Time     `json:"since"`
	Until     time.Time     `json:"until"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// Matches checks if an alert matches the query criteria.
func (q AlertQuery) Matches(alert Alert) bool {
	if len(q.IDs) > 0 && !containsString(q.IDs, alert.ID) {
		return false
	}
	if len(q.Cities) > 0 && !containsString(q.Cities, alert.City) {
		return false
	}
	if len(q.MainTypes) > 0 && !containsMainType(q.MainTypes, alert.MainType) {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, alert.Status) {
		return false
	}
	if !q.Since.IsZero() && alert.StartDate.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && alert.StartDate.After(q.Until) {
		return false
	}
	return true
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func containsMainType(slice []MainType, item MainType) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func containsStatus(slice []AlertStatus, item AlertStatus) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
