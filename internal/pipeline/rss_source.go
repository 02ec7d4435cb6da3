package pipeline

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/stayguard/stayguard/internal/logger"
	"github.com/stayguard/stayguard/internal/models"
)

// Feed is one RSS feed with the credibility tier its items inherit.
type Feed struct {
	Name string
	URL  string
	Tier models.CredibilityTier
}

// RSSSource implements Source for RSS news feeds
type RSSSource struct {
	name     string
	feeds    []Feed
	interval time.Duration
	client   *http.Client
}

// NewRSSSource creates a new RSS source
func NewRSSSource(name string, feeds []Feed) *RSSSource {
	return &RSSSource{
		name:     name,
		feeds:    feeds,
		interval: 15 * time.Minute, // Default polling interval
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the source name
func (r *RSSSource) Name() string {
	return r.name
}

// Interval returns the polling interval
func (r *RSSSource) Interval() time.Duration {
	return r.interval
}

// Fetch fetches disruption reports from all feeds. A failing feed is
// skipped so one broken publisher never blanks the whole source.
func (r *RSSSource) Fetch(ctx context.Context) ([]models.DisruptionReport, error) {
	var allReports []models.DisruptionReport

	for _, feed := range r.feeds {
		reports, err := r.fetchFeed(ctx, feed)
		if err != nil {
			logger.Warn("Feed fetch failed", "feed", feed.Name, "url", feed.URL, "error", err)
			continue
		}
		allReports = append(allReports, reports...)
	}

	return allReports, nil
}

// fetchFeed fetches and parses RSS from a single feed
func (r *RSSSource) fetchFeed(ctx context.Context, feed Feed) ([]models.DisruptionReport, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "StayGuard-Monitor/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch RSS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var rss RSS
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, fmt.Errorf("parse RSS: %w", err)
	}

	return r.convertToReports(feed, rss), nil
}

// convertToReports converts RSS items to DisruptionReport models
func (r *RSSSource) convertToReports(feed Feed, rss RSS) []models.DisruptionReport {
	var reports []models.DisruptionReport

	for _, item := range rss.Channel.Items {
		report := models.DisruptionReport{
			Source:            feed.Name,
			Title:             item.Title,
			Summary:           item.Description,
			URL:               item.Link,
			SourceCredibility: feed.Tier,
			DetectedAt:        time.Now().UTC(),
		}

		// News items rarely state disruption dates; the publish date is
		// the best available start, with the end left open.
		if pubDate, ok := parsePubDate(item.PubDate); ok {
			report.StartDate = pubDate
		} else {
			report.StartDate = report.DetectedAt
		}

		reports = append(reports, report)
	}

	return reports
}

func parsePubDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RSS represents the RSS feed structure
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the RSS channel
type Channel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	Items       []Item `xml:"item"`
}

// Item represents an RSS item
type Item struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}
