package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/stayguard/stayguard/internal/logger"
	"github.com/stayguard/stayguard/internal/models"
)

// scoutHorizon caps how far ahead the scout may report. Anything beyond
// it is discarded as speculation.
const scoutHorizon = 30 * 24 * time.Hour

// ScoutSource implements Source using an LLM to scout upcoming
// disruptions per monitored city.
type ScoutSource struct {
	client   *genai.Client
	model    string
	cities   []string
	interval time.Duration
}

// NewScoutSource creates an LLM scout over the given cities.
func NewScoutSource(ctx context.Context, apiKey, model string, cities []string) (*ScoutSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("scout requires an api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &ScoutSource{
		client:   client,
		model:    model,
		cities:   cities,
		interval: 6 * time.Hour,
	}, nil
}

// Name returns the source name
func (s *ScoutSource) Name() string {
	return "llm-scout"
}

// Interval returns the polling interval
func (s *ScoutSource) Interval() time.Duration {
	return s.interval
}

// Fetch asks the model for upcoming disruptions in each monitored city.
// A failing city is skipped; partial results are still worth processing.
func (s *ScoutSource) Fetch(ctx context.Context) ([]models.DisruptionReport, error) {
	var allReports []models.DisruptionReport

	for _, city := range s.cities {
		reports, err := s.scoutCity(ctx, city)
		if err != nil {
			logger.Warn("City scout failed", "city", city, "error", err)
			continue
		}
		allReports = append(allReports, reports...)
	}

	return allReports, nil
}

// scoutReport is the JSON shape the model is instructed to emit.
type scoutReport struct {
	City      string `json:"city"`
	MainType  string `json:"main_type"`
	SubType   string `json:"sub_type"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	SourceURL string `json:"source_url"`
}

func (s *ScoutSource) scoutCity(ctx context.Context, city string) ([]models.DisruptionReport, error) {
	prompt := fmt.Sprintf(
		"List travel disruptions (strikes, severe weather, protests, major events, "+
			"transport problems) expected in %s within the next 30 days. Respond with a "+
			"JSON array only, no prose. Each element: {\"city\", \"main_type\" (one of "+
			"strike|weather|protest|event|transport|other), \"sub_type\", \"title\", "+
			"\"summary\", \"start_date\" (YYYY-MM-DD), \"end_date\" (YYYY-MM-DD or empty), "+
			"\"source_url\"}. Return [] if nothing is known.",
		city,
	)

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, []*genai.Content{content}, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	return parseScoutResponse(city, text.String(), time.Now().UTC())
}

// parseScoutResponse turns model output into reports, dropping anything
// outside the monitored city or the scouting horizon.
func parseScoutResponse(city, text string, now time.Time) ([]models.DisruptionReport, error) {
	raw := stripCodeFence(text)

	var items []scoutReport
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse scout response: %w", err)
	}

	var reports []models.DisruptionReport
	for _, item := range items {
		if item.Title == "" {
			continue
		}
		if item.City != "" && !strings.EqualFold(item.City, city) {
			continue
		}

		start, err := time.Parse("2006-01-02", item.StartDate)
		if err != nil {
			continue
		}
		if start.After(now.Add(scoutHorizon)) {
			continue
		}

		report := models.DisruptionReport{
			City:              city,
			MainType:          models.ParseMainType(item.MainType),
			SubType:           item.SubType,
			Title:             item.Title,
			Summary:           item.Summary,
			StartDate:         start,
			URL:               item.SourceURL,
			SourceCredibility: models.TierOtherNews,
			DetectedAt:        now,
		}
		if item.EndDate != "" {
			if end, err := time.Parse("2006-01-02", item.EndDate); err == nil && !end.Before(start) {
				report.EndDate = end
			}
		}

		reports = append(reports, report)
	}

	return reports, nil
}

// stripCodeFence unwraps ```json fenced blocks the model sometimes emits.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
