package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/stayguard/stayguard/internal/models"
)

// Enricher produces the editorial fields of an approved alert. Both
// methods must be safe for concurrent use.
type Enricher interface {
	// Tone classifies how established the alert's story is.
	Tone(ctx context.Context, title string, sources []models.ConfidenceSource) (models.Tone, error)
	// Header produces a one-line guest-facing summary of the impact.
	Header(ctx context.Context, mainType models.MainType, nightsAtRisk int, poundsAtRisk float64, whenText string) (string, error)
}

// GenAIEnricher generates tone and header text via the Gemini API.
type GenAIEnricher struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAIEnricher creates an enricher backed by the Gemini API.
func NewGenAIEnricher(ctx context.Context, apiKey, model string, timeout time.Duration) (*GenAIEnricher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GenAIEnricher{client: client, model: model, timeout: timeout}, nil
}

func (e *GenAIEnricher) Tone(ctx context.Context, title string, sources []models.ConfidenceSource) (models.Tone, error) {
	var sb strings.Builder
	sb.WriteString("You classify travel disruption coverage. Given an alert title and its sources, ")
	sb.WriteString("answer with exactly one word: Early, Developing, or Confirmed.\n\n")
	sb.WriteString("Title: " + title + "\n")
	sb.WriteString("Sources:\n")
	for _, s := range sources {
		fmt.Fprintf(&sb, "- [%s] %s\n", s.CredibilityTier, s.Title)
	}

	text, err := e.generate(ctx, sb.String())
	if err != nil {
		return "", err
	}
	return parseTone(text)
}

func (e *GenAIEnricher) Header(ctx context.Context, mainType models.MainType, nightsAtRisk int, poundsAtRisk float64, whenText string) (string, error) {
	prompt := fmt.Sprintf(
		"Write one short headline (no quotes, under 120 characters) warning a hotel "+
			"about a %s disruption %s that puts up to %d room nights (around £%.0f) at risk. "+
			"Plain factual tone, no exclamation marks.",
		mainType, whenText, nightsAtRisk, poundsAtRisk,
	)

	text, err := e.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	header := sanitizeHeader(text)
	if header == "" {
		return "", fmt.Errorf("empty header from model")
	}
	return header, nil
}

func (e *GenAIEnricher) generate(ctx context.Context, prompt string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := e.client.Models.GenerateContent(ctx, e.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.WriteString(part.Text)
		}
	}
	return out.String(), nil
}

func parseTone(text string) (models.Tone, error) {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"'.`))
	switch strings.ToLower(cleaned) {
	case "early":
		return models.ToneEarly, nil
	case "developing":
		return models.ToneDeveloping, nil
	case "confirmed":
		return models.ToneConfirmed, nil
	}
	return "", fmt.Errorf("unrecognised tone %q", text)
}

func sanitizeHeader(text string) string {
	// Models occasionally wrap output in quotes or add trailing newlines.
	header := strings.TrimSpace(text)
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}
	header = strings.Trim(header, `"'`)
	return strings.TrimSpace(header)
}
