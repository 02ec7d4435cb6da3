package enrich

import (
	"context"
	"fmt"

	"github.com/stayguard/stayguard/internal/models"
)

// StaticEnricher produces deterministic tone and header text. It is the
// default when no LLM credentials are configured.
type StaticEnricher struct{}

// NewStaticEnricher creates a StaticEnricher.
func NewStaticEnricher() *StaticEnricher {
	return &StaticEnricher{}
}

// Tone maps source count to an editorial tone: a single source is an
// early signal, two is a developing story, three or more is confirmed.
func (e *StaticEnricher) Tone(ctx context.Context, title string, sources []models.ConfidenceSource) (models.Tone, error) {
	switch {
	case len(sources) <= 1:
		return models.ToneEarly, nil
	case len(sources) == 2:
		return models.ToneDeveloping, nil
	default:
		return models.ToneConfirmed, nil
	}
}

func (e *StaticEnricher) Header(ctx context.Context, mainType models.MainType, nightsAtRisk int, poundsAtRisk float64, whenText string) (string, error) {
	label := typeLabel(mainType)
	if whenText == "" {
		return fmt.Sprintf("%s: up to %d room nights (£%.0f) at risk", label, nightsAtRisk, poundsAtRisk), nil
	}
	return fmt.Sprintf("%s %s: up to %d room nights (£%.0f) at risk", label, whenText, nightsAtRisk, poundsAtRisk), nil
}

func typeLabel(mainType models.MainType) string {
	switch mainType {
	case models.MainTypeStrike:
		return "Strike disruption"
	case models.MainTypeWeather:
		return "Severe weather"
	case models.MainTypeProtest:
		return "Protest activity"
	case models.MainTypeEvent:
		return "Major event"
	case models.MainTypeTransport:
		return "Transport disruption"
	default:
		return "Travel disruption"
	}
}
