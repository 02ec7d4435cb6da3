package utils

import "strings"

// ContainsAny checks if the text contains any of the given keywords
func ContainsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// InferDisruptionType infers a disruption category from free text. Feed items
// rarely carry a structured type, so this keyword pass supplies one; anything
// unmatched is "other".
func InferDisruptionType(text string) string {
	text = strings.ToLower(text)
	switch {
	case ContainsAny(text, []string{"strike", "walkout", "industrial action", "picket"}):
		return "strike"
	case ContainsAny(text, []string{"storm", "snow", "flood", "heatwave", "weather", "hurricane", "fog"}):
		return "weather"
	case ContainsAny(text, []string{"protest", "march", "demonstration", "rally"}):
		return "protest"
	case ContainsAny(text, []string{"festival", "concert", "summit", "conference", "match day"}):
		return "event"
	case ContainsAny(text, []string{"rail", "train", "flight", "airport", "tram", "ferry", "road closure"}):
		return "transport"
	default:
		return "other"
	}
}
