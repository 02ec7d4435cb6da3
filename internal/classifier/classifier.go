package classifier

import (
	"strings"

	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/pkg/utils"
)

// Classifier fills in fields feed items arrive without: disruption type,
// sub-type, and the hospitality sectors an alert touches.
type Classifier struct{}

// New creates a new classifier instance
func New() *Classifier {
	return &Classifier{}
}

// Classify analyses a report's text and fills MainType and SubType when
// the source did not provide them.
func (c *Classifier) Classify(report *models.DisruptionReport) {
	text := strings.ToLower(report.Title + " " + report.Summary)

	if report.MainType == "" || report.MainType == models.MainTypeOther {
		if inferred := models.ParseMainType(utils.InferDisruptionType(text)); inferred != models.MainTypeOther {
			report.MainType = inferred
		} else if report.MainType == "" {
			report.MainType = models.MainTypeOther
		}
	}

	if report.SubType == "" {
		report.SubType = c.classifySubType(report.MainType, text)
	}
}

// Sectors labels the hospitality sectors affected by a disruption.
func (c *Classifier) Sectors(mainType models.MainType, text string) []string {
	text = strings.ToLower(text)
	sectors := []string{"hotels"}

	if utils.ContainsAny(text, []string{"flight", "airport", "airline", "pilot", "cabin crew"}) {
		sectors = append(sectors, "airlines")
	}
	if utils.ContainsAny(text, []string{"rail", "train", "bus", "tram", "ferry", "metro"}) {
		sectors = append(sectors, "ground_transport")
	}
	if utils.ContainsAny(text, []string{"festival", "conference", "concert", "match", "stadium"}) {
		sectors = append(sectors, "events")
	}
	if utils.ContainsAny(text, []string{"restaurant", "hospitality", "catering"}) {
		sectors = append(sectors, "food_service")
	}

	return sectors
}

// classifySubType picks a finer-grained label within a disruption type.
func (c *Classifier) classifySubType(mainType models.MainType, text string) string {
	switch mainType {
	case models.MainTypeStrike:
		switch {
		case utils.ContainsAny(text, []string{"pilot", "cabin crew", "airline", "airport"}):
			return "aviation_strike"
		case utils.ContainsAny(text, []string{"rail", "train"}):
			return "rail_strike"
		case utils.ContainsAny(text, []string{"bus", "tram", "metro"}):
			return "local_transit_strike"
		}
		return "general_strike"
	case models.MainTypeWeather:
		switch {
		case utils.ContainsAny(text, []string{"snow", "blizzard", "ice"}):
			return "winter_weather"
		case utils.ContainsAny(text, []string{"storm", "hurricane", "wind", "gale"}):
			return "storm"
		case utils.ContainsAny(text, []string{"flood", "rain"}):
			return "flooding"
		}
		return "severe_weather"
	case models.MainTypeProtest:
		return "protest"
	case models.MainTypeEvent:
		return "major_event"
	case models.MainTypeTransport:
		switch {
		case utils.ContainsAny(text, []string{"flight", "airport", "airline"}):
			return "aviation"
		case utils.ContainsAny(text, []string{"rail", "train"}):
			return "rail"
		}
		return "transport"
	}
	return ""
}
