package geocoder

import (
	"regexp"
	"strings"

	"github.com/stayguard/stayguard/internal/models"
)

// Geocoder resolves which monitored city a piece of feed text refers to.
// Reports without a recognised city are dropped upstream, so matching is
// restricted to the configured city list rather than open-ended NER.
type Geocoder struct {
	cities   []string
	patterns map[string]*regexp.Regexp
}

// New creates a geocoder for the given monitored cities.
func New(cities []string) *Geocoder {
	g := &Geocoder{
		cities:   cities,
		patterns: make(map[string]*regexp.Regexp, len(cities)),
	}
	for _, city := range cities {
		// Word-bounded, case-insensitive. "Edinburgh" must not match
		// inside another token.
		g.patterns[city] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(city) + `\b`)
	}
	return g
}

// Geocode fills the report's City from its text when the source did not
// set one. Returns false when no monitored city is mentioned.
func (g *Geocoder) Geocode(report *models.DisruptionReport) bool {
	if report.City != "" {
		return g.isMonitored(report.City)
	}

	text := report.Title + " " + report.Summary
	for _, city := range g.cities {
		if g.patterns[city].MatchString(text) {
			report.City = city
			return true
		}
	}
	return false
}

// Cities returns the monitored city list.
func (g *Geocoder) Cities() []string {
	return g.cities
}

func (g *Geocoder) isMonitored(city string) bool {
	for _, c := range g.cities {
		if strings.EqualFold(c, city) {
			return true
		}
	}
	return false
}
