package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/stayguard/stayguard/internal/cluster"
	"github.com/stayguard/stayguard/internal/confidence"
	"github.com/stayguard/stayguard/internal/enrich"
	apperrors "github.com/stayguard/stayguard/internal/errors"
	"github.com/stayguard/stayguard/internal/impact"
	"github.com/stayguard/stayguard/internal/lock"
	"github.com/stayguard/stayguard/internal/logger"
	"github.com/stayguard/stayguard/internal/metrics"
	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/internal/similarity"
	"github.com/stayguard/stayguard/internal/store"
)

const (
	// DefaultMatchThreshold is the title similarity an incoming cluster
	// must exceed against an existing alert to merge instead of create.
	// Deliberately stricter than the clustering threshold: loose grouping
	// of new reports, tight matching against durable alerts.
	DefaultMatchThreshold = 0.7

	// DefaultApprovalThreshold is the confidence at which an alert is
	// approved.
	DefaultApprovalThreshold = 0.6

	// DefaultWindowPadding widens the candidate date-overlap window so
	// reports about the same event with slightly different dates still
	// find each other.
	DefaultWindowPadding = 72 * time.Hour

	// DefaultMaxConcurrentClusters caps parallel cluster processing.
	DefaultMaxConcurrentClusters = 8

	// openEndedHorizon bounds the candidate search window for clusters
	// with no end date. Sources report at most 30 days out.
	openEndedHorizon = 30 * 24 * time.Hour
)

// SectorTagger labels an alert with the hospitality sectors it touches.
type SectorTagger interface {
	Sectors(mainType models.MainType, text string) []string
}

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	MatchThreshold        float64
	ApprovalThreshold     float64
	WindowPadding         time.Duration
	MaxConcurrentClusters int64
	// ReferenceHotel frames the headline impact figures. Header text needs
	// concrete numbers; per-hotel figures are computed separately by the
	// impact endpoint.
	ReferenceHotel models.HotelProfile
}

// Orchestrator owns the alert lifecycle: it clusters incoming reports,
// scores them, and decides per cluster whether to create a new alert or
// merge into an existing one.
type Orchestrator struct {
	repo      store.Repository
	enricher  enrich.Enricher
	clusterer *cluster.Clusterer
	scorer    *confidence.Scorer
	calc      *impact.Calculator
	tagger    SectorTagger
	locks     lock.KeyLock
	sem       *semaphore.Weighted

	matchThreshold    float64
	approvalThreshold float64
	windowPadding     time.Duration
	referenceHotel    models.HotelProfile
}

// New creates an orchestrator.
func New(repo store.Repository, enricher enrich.Enricher, clusterer *cluster.Clusterer, scorer *confidence.Scorer, calc *impact.Calculator, tagger SectorTagger, locks lock.KeyLock, cfg Config) *Orchestrator {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.ApprovalThreshold == 0 {
		cfg.ApprovalThreshold = DefaultApprovalThreshold
	}
	if cfg.WindowPadding == 0 {
		cfg.WindowPadding = DefaultWindowPadding
	}
	if cfg.MaxConcurrentClusters == 0 {
		cfg.MaxConcurrentClusters = DefaultMaxConcurrentClusters
	}
	if cfg.ReferenceHotel.RoomCount == 0 {
		cfg.ReferenceHotel = models.HotelProfile{
			SizeCategory:   models.SizeSmall,
			RoomCount:      80,
			OccupancyRate:  0.70,
			AvgNightlyRate: 160,
		}
	}

	return &Orchestrator{
		repo:              repo,
		enricher:          enricher,
		clusterer:         clusterer,
		scorer:            scorer,
		calc:              calc,
		tagger:            tagger,
		locks:             locks,
		sem:               semaphore.NewWeighted(cfg.MaxConcurrentClusters),
		matchThreshold:    cfg.MatchThreshold,
		approvalThreshold: cfg.ApprovalThreshold,
		windowPadding:     cfg.WindowPadding,
		referenceHotel:    cfg.ReferenceHotel,
	}
}

// Process runs one pass over a batch of reports: cluster, then per
// cluster either merge into an existing alert or create a new one.
// Clusters run in parallel up to the configured cap. A failing cluster is
// logged and skipped; the batch never aborts, so the returned slice holds
// every alert that did get created or updated.
func (o *Orchestrator) Process(ctx context.Context, reports []models.DisruptionReport) ([]models.Alert, error) {
	valid := reports[:0:0]
	for _, r := range reports {
		if err := r.Validate(); err != nil {
			logger.Warn("Skipping malformed report", "report_id", r.ID, "error", err)
			metrics.RecordReportIngested(r.Source, "invalid")
			continue
		}
		metrics.RecordReportIngested(r.Source, "accepted")
		valid = append(valid, r)
	}

	clusters := o.clusterer.Cluster(valid)
	if len(clusters) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		alerts []models.Alert
		wg     sync.WaitGroup
	)

	for _, c := range clusters {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			// In-flight goroutines still append to alerts; the read below
			// must not run until they finish.
			wg.Wait()
			return alerts, err
		}
		wg.Add(1)
		go func(c cluster.Cluster) {
			defer wg.Done()
			defer o.sem.Release(1)

			alert, err := o.processCluster(ctx, c)
			if err != nil {
				rep := c.Representative()
				logger.Error("Cluster processing failed",
					"city", rep.City, "main_type", string(rep.MainType), "error", err)
				metrics.RecordClusterProcessed("failed")
				return
			}
			metrics.RecordClusterProcessed("ok")

			mu.Lock()
			alerts = append(alerts, alert)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	return alerts, nil
}

// processCluster decides merge-or-create for one cluster. The find+write
// section is a critical section per alert identity so two concurrent
// passes cannot create duplicate alerts for the same event.
func (o *Orchestrator) processCluster(ctx context.Context, c cluster.Cluster) (models.Alert, error) {
	rep := c.Representative()

	release, err := o.locks.Acquire(ctx, lockKey(rep.City, rep.MainType))
	if err != nil {
		return models.Alert{}, apperrors.ClusterError{City: rep.City, MainType: string(rep.MainType), Stage: "lock", Err: err}
	}
	defer release()

	start, end := clusterWindow(c)
	if end.IsZero() {
		end = start.Add(openEndedHorizon)
	}
	windowStart := start.Add(-o.windowPadding)
	windowEnd := end.Add(o.windowPadding)

	candidates, err := o.repo.FindCandidates(ctx, rep.City, rep.MainType, windowStart, windowEnd)
	if err != nil {
		return models.Alert{}, apperrors.ClusterError{City: rep.City, MainType: string(rep.MainType), Stage: "find", Err: err}
	}

	for _, candidate := range candidates {
		if similarity.Jaccard(candidate.Title, rep.Title) > o.matchThreshold {
			merged, err := o.MergeIntoExisting(ctx, candidate, c.Reports)
			if err != nil {
				return models.Alert{}, apperrors.ClusterError{City: rep.City, MainType: string(rep.MainType), Stage: "merge", Err: err}
			}
			return merged, nil
		}
	}

	created, err := o.createAlert(ctx, c)
	if err != nil {
		return models.Alert{}, apperrors.ClusterError{City: rep.City, MainType: string(rep.MainType), Stage: "create", Err: err}
	}
	return created, nil
}

// MergeIntoExisting folds new reports into an alert: sources are appended
// with (source, url) dedup, confidence is recomputed from the full list,
// and the date range widens to cover the new reports. A pending alert
// that crosses the approval threshold flips to approved and is enriched.
func (o *Orchestrator) MergeIntoExisting(ctx context.Context, alert models.Alert, newReports []models.DisruptionReport) (models.Alert, error) {
	wasPending := alert.Status == models.StatusPending

	for _, r := range newReports {
		if alert.HasSource(r.Source, r.URL) {
			continue
		}
		alert.ConfidenceSources = append(alert.ConfidenceSources, o.sourceFromReport(r))
		if !r.StartDate.IsZero() && r.StartDate.Before(alert.StartDate) {
			alert.StartDate = r.StartDate
		}
		if !r.EndDate.IsZero() && r.EndDate.After(alert.EndDate) {
			alert.EndDate = r.EndDate
		}
	}

	res := o.scorer.Score(alert.ConfidenceSources)
	alert.Confidence = res.Score

	if wasPending && alert.Confidence >= o.approvalThreshold {
		alert.Status = models.StatusApproved
		metrics.RecordAlertTransition("approved")
		o.enrichAlert(ctx, &alert)
	}

	if err := o.repo.Update(ctx, alert); err != nil {
		return models.Alert{}, fmt.Errorf("update alert %s: %w", alert.ID, err)
	}
	metrics.RecordAlertTransition("merged")
	return alert, nil
}

// ArchiveExpired flips alerts whose end date has passed to expired.
func (o *Orchestrator) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := o.repo.ArchiveExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("archive expired alerts: %w", err)
	}
	if n > 0 {
		logger.Info("Archived expired alerts", "count", n)
		for i := 0; i < n; i++ {
			metrics.RecordAlertTransition("expired")
		}
	}
	return n, nil
}

func (o *Orchestrator) createAlert(ctx context.Context, c cluster.Cluster) (models.Alert, error) {
	rep := c.Representative()

	var sources []models.ConfidenceSource
	seen := make(map[string]struct{}, len(c.Reports))
	for _, r := range c.Reports {
		key := r.Source + "|" + r.URL
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sources = append(sources, o.sourceFromReport(r))
	}

	res := o.scorer.Score(sources)
	start, end := clusterWindow(c)

	alert := models.Alert{
		ID:                uuid.NewString(),
		City:              rep.City,
		MainType:          rep.MainType,
		SubType:           rep.SubType,
		Title:             rep.Title,
		Summary:           rep.Summary,
		StartDate:         start,
		EndDate:           end,
		Status:            models.StatusPending,
		Confidence:        res.Score,
		ConfidenceSources: sources,
	}
	if o.tagger != nil {
		alert.Sectors = o.tagger.Sectors(rep.MainType, rep.Title+" "+rep.Summary)
	}

	refImpact, err := o.referenceImpact(alert)
	if err == nil {
		alert.RecoveryExpected = refImpact.RecoveryRate >= 0.5
	}

	if alert.Confidence >= o.approvalThreshold {
		alert.Status = models.StatusApproved
		metrics.RecordAlertTransition("approved")
		o.enrichAlert(ctx, &alert)
	}

	if err := o.repo.Save(ctx, alert); err != nil {
		return models.Alert{}, fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	metrics.RecordAlertTransition("created")
	return alert, nil
}

// enrichAlert fills tone and header on an approved alert. Enrichment is
// best-effort: a failed call degrades to tone "Developing" and keeps the
// title as the header, never blocking creation or approval.
func (o *Orchestrator) enrichAlert(ctx context.Context, alert *models.Alert) {
	tone, err := o.enricher.Tone(ctx, alert.Title, alert.ConfidenceSources)
	if err != nil {
		logger.Warn("Tone enrichment failed, using fallback", "alert_id", alert.ID, "error", err)
		metrics.RecordEnrichment("tone_fallback")
		tone = models.ToneDeveloping
	} else {
		metrics.RecordEnrichment("tone_ok")
	}
	alert.Tone = tone

	header := alert.Title
	if refImpact, err := o.referenceImpact(*alert); err == nil {
		h, err := o.enricher.Header(ctx, alert.MainType, refImpact.NightsAtRisk, refImpact.PoundsAtRisk, whenText(alert.StartDate, alert.EndDate))
		if err != nil {
			logger.Warn("Header enrichment failed, using title", "alert_id", alert.ID, "error", err)
			metrics.RecordEnrichment("header_fallback")
		} else {
			metrics.RecordEnrichment("header_ok")
			header = h
		}
	}
	alert.Header = header
}

func (o *Orchestrator) referenceImpact(alert models.Alert) (models.ImpactResult, error) {
	d := impact.Disruption{
		MainType:  alert.MainType,
		StartDate: alert.StartDate,
		EndDate:   alert.EndDate,
	}
	return o.calc.Calculate(o.referenceHotel, d, o.referenceHotel.HasIncentiveProgram, o.referenceHotel.IncentiveCount)
}

func (o *Orchestrator) sourceFromReport(r models.DisruptionReport) models.ConfidenceSource {
	return models.ConfidenceSource{
		Source:          r.Source,
		CredibilityTier: r.SourceCredibility,
		ConfidenceValue: o.scorer.SourceValue(r.SourceCredibility),
		URL:             r.URL,
		Title:           r.Title,
		PublishedAt:     r.DetectedAt,
	}
}

// clusterWindow returns the date span covered by a cluster's reports. A
// zero end means at least one report is open-ended, so the cluster is too.
func clusterWindow(c cluster.Cluster) (start, end time.Time) {
	openEnded := false
	for _, r := range c.Reports {
		if start.IsZero() || (!r.StartDate.IsZero() && r.StartDate.Before(start)) {
			start = r.StartDate
		}
		if r.EndDate.IsZero() {
			openEnded = true
			continue
		}
		if r.EndDate.After(end) {
			end = r.EndDate
		}
	}
	if openEnded {
		end = time.Time{}
	}
	return start, end
}

func lockKey(city string, mainType models.MainType) string {
	return city + "|" + string(mainType)
}

func whenText(start, end time.Time) string {
	if start.IsZero() {
		return ""
	}
	if end.IsZero() || end.Equal(start) {
		return "from " + start.Format("2 Jan")
	}
	return fmt.Sprintf("from %s to %s", start.Format("2 Jan"), end.Format("2 Jan"))
}
