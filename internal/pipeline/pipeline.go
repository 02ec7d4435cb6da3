package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/stayguard/stayguard/config"
	"github.com/stayguard/stayguard/internal/logger"
	"github.com/stayguard/stayguard/internal/metrics"
	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/pkg/utils"
)

// Source defines a pluggable report source implementation
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.DisruptionReport, error)
	Interval() time.Duration
}

// Classifier fills in type fields on raw reports
type Classifier interface {
	Classify(report *models.DisruptionReport)
}

// Geocoder resolves the monitored city a report refers to
type Geocoder interface {
	Geocode(report *models.DisruptionReport) bool
}

// Processor turns report batches into alerts. Satisfied by the
// orchestrator.
type Processor interface {
	Process(ctx context.Context, reports []models.DisruptionReport) ([]models.Alert, error)
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
}

// archiveInterval is how often past-end-date alerts get flipped to
// expired.
const archiveInterval = time.Hour

// Pipeline coordinates concurrent fetching, preparation, and processing
// of disruption reports.
type Pipeline struct {
	processor  Processor
	classifier Classifier
	geocoder   Geocoder
	limiter    *rate.Limiter
	sources    []Source
	cfg        config.PipelineConfig
	sem        *semaphore.Weighted
	mu         sync.RWMutex
	running    bool
}

// New creates a new pipeline instance
func New(processor Processor, classifier Classifier, geocoder Geocoder, sources []Source, cfg config.PipelineConfig) *Pipeline {
	p := &Pipeline{
		processor:  processor,
		classifier: classifier,
		geocoder:   geocoder,
		sources:    sources,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)),
		sem:        semaphore.NewWeighted(int64(cfg.WorkerCount)),
	}

	logger.Info("Pipeline initialized",
		"sources", len(p.sources),
		"rate_limit", cfg.RateLimit,
		"workers", cfg.WorkerCount,
	)

	return p
}

// Run starts the pipeline and runs until context is cancelled
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting pipeline")

	// Fan-out per-source pollers
	var wg sync.WaitGroup
	errChan := make(chan error, len(p.sources))

	for _, src := range p.sources {
		src := src
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.runSourcePoller(ctx, src); err != nil {
				select {
				case errChan <- fmt.Errorf("source %s: %w", src.Name(), err):
				case <-ctx.Done():
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runArchiver(ctx)
	}()

	// Wait for all pollers to finish
	go func() {
		wg.Wait()
		close(errChan)
	}()

	// Collect any errors
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
		logger.Error("Pipeline source error", "error", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("pipeline completed with %d errors", len(errs))
	}

	logger.Info("Pipeline stopped")
	return nil
}

// IsRunning reports whether the pipeline is currently running
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// runSourcePoller runs a single source poller
func (p *Pipeline) runSourcePoller(ctx context.Context, src Source) error {
	logger.Info("Starting source poller", "source", src.Name())

	ticker := time.NewTicker(src.Interval())
	defer ticker.Stop()

	// Initial immediate run
	if err := p.runOnce(ctx, src); err != nil {
		logger.Error("Initial source run failed", "source", src.Name(), "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Source poller stopping", "source", src.Name())
			return ctx.Err()
		case <-ticker.C:
			if err := p.runOnce(ctx, src); err != nil {
				logger.Error("Source run failed", "source", src.Name(), "error", err)

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.cfg.RetryDelay):
					// Continue after delay
				}
			}
		}
	}
}

// runArchiver periodically flips past-end-date alerts to expired.
func (p *Pipeline) runArchiver(ctx context.Context) {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.processor.ArchiveExpired(ctx, time.Now().UTC()); err != nil {
				logger.Error("Archiving expired alerts failed", "error", err)
			}
		}
	}
}

// runOnce executes a single pipeline run for a source
func (p *Pipeline) runOnce(ctx context.Context, src Source) error {
	start := time.Now()

	// Acquire semaphore to limit concurrent processing
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire semaphore: %w", err)
	}
	defer p.sem.Release(1)

	// Rate limiting
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	defer func() {
		duration := time.Since(start)
		metrics.RecordPipelineRun(src.Name(), duration)
		logger.Debug("Pipeline run completed",
			"source", src.Name(),
			"duration_ms", duration.Milliseconds(),
		)
	}()

	// Fetch reports with retry logic
	var reports []models.DisruptionReport
	var err error

	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.cfg.RetryDelay
			logger.Debug("Retrying fetch", "source", src.Name(), "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		reports, err = src.Fetch(ctx)
		if err == nil {
			break
		}

		logger.Warn("Fetch attempt failed",
			"source", src.Name(),
			"attempt", attempt+1,
			"error", err,
		)
	}

	if err != nil {
		metrics.RecordReportIngested(src.Name(), "fetch_error")
		return fmt.Errorf("%s fetch failed after %d attempts: %w", src.Name(), p.cfg.RetryAttempts+1, err)
	}

	reports = p.prepareReports(src.Name(), reports)
	if len(reports) == 0 {
		logger.Debug("No usable reports fetched", "source", src.Name())
		return nil
	}

	logger.Debug("Processing reports", "source", src.Name(), "count", len(reports))

	// Process reports in batches
	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(reports)
	}

	for i := 0; i < len(reports); i += batchSize {
		end := i + batchSize
		if end > len(reports) {
			end = len(reports)
		}

		batch := reports[i:end]
		alerts, err := p.processor.Process(ctx, batch)
		if err != nil {
			logger.Error("Batch processing failed",
				"source", src.Name(),
				"batch_start", i,
				"batch_size", len(batch),
				"error", err,
			)
			return err
		}
		logger.Debug("Batch processed", "source", src.Name(), "alerts", len(alerts))
	}

	logger.Info("Successfully processed reports",
		"source", src.Name(),
		"count", len(reports),
	)

	return nil
}

// prepareReports normalises raw reports: fills source, detection time,
// ID, inferred type fields, and the monitored city. Reports that cannot
// be tied to a monitored city are dropped.
func (p *Pipeline) prepareReports(sourceName string, reports []models.DisruptionReport) []models.DisruptionReport {
	prepared := reports[:0]

	for i := range reports {
		report := &reports[i]

		if report.Source == "" {
			report.Source = sourceName
		}
		if report.DetectedAt.IsZero() {
			report.DetectedAt = time.Now().UTC()
		}
		if report.ID == "" {
			report.ID = utils.HashString(report.URL + report.Title + report.StartDate.String())
		}

		p.classifier.Classify(report)

		if !p.geocoder.Geocode(report) {
			logger.Debug("Dropping report outside monitored cities",
				"report_id", report.ID,
				"title", report.Title,
			)
			metrics.RecordReportIngested(report.Source, "no_city")
			continue
		}

		prepared = append(prepared, *report)
	}

	return prepared
}
