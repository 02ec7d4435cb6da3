package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/stayguard/stayguard/internal/errors"
	"github.com/stayguard/stayguard/internal/metrics"
	"github.com/stayguard/stayguard/internal/models"
)

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]models.Alert
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		alerts: make(map[string]models.Alert),
	}
}

// FindCandidates returns non-expired alerts matching city and type whose
// date range overlaps the given window.
func (r *InMemoryRepository) FindCandidates(ctx context.Context, city string, mainType models.MainType, windowStart, windowEnd time.Time) ([]models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Alert
	for _, alert := range r.alerts {
		if alert.City != city || alert.MainType != mainType {
			continue
		}
		if alert.Status == models.StatusExpired {
			continue
		}
		if overlaps(alert.StartDate, alert.EndDate, windowStart, windowEnd) {
			result = append(result, alert)
		}
	}

	// Oldest first so merge targets are stable across passes.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	metrics.RecordRepositoryOp("find_candidates", "ok")
	return result, nil
}

// Save stores a new alert.
func (r *InMemoryRepository) Save(ctx context.Context, alert models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[alert.ID]; exists {
		metrics.RecordRepositoryOp("save", "error")
		return apperrors.ErrConflict
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = now
	}
	r.alerts[alert.ID] = alert
	metrics.RecordRepositoryOp("save", "ok")
	return nil
}

// Update replaces an existing alert.
func (r *InMemoryRepository) Update(ctx context.Context, alert models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.alerts[alert.ID]
	if !exists {
		metrics.RecordRepositoryOp("update", "error")
		return apperrors.ErrNotFound
	}
	alert.CreatedAt = existing.CreatedAt
	alert.UpdatedAt = time.Now().UTC()
	r.alerts[alert.ID] = alert
	metrics.RecordRepositoryOp("update", "ok")
	return nil
}

// Get retrieves a single alert by ID; nil when absent.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics.RecordRepositoryOp("get", "ok")
	if alert, exists := r.alerts[id]; exists {
		return &alert, nil
	}
	return nil, nil
}

// Query retrieves alerts matching the query parameters.
func (r *InMemoryRepository) Query(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Alert
	for _, alert := range r.alerts {
		if q.Matches(alert) {
			result = append(result, alert)
		}
	}

	// Sort by StartDate descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.After(result[j].StartDate)
	})

	// Apply limit and offset
	if q.Offset > 0 && q.Offset < len(result) {
		result = result[q.Offset:]
	} else if q.Offset >= len(result) && q.Offset > 0 {
		result = []models.Alert{}
	}

	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	metrics.RecordRepositoryOp("query", "ok")
	return result, nil
}

// ArchiveExpired flips past-end-date alerts to expired.
func (r *InMemoryRepository) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	archived := 0
	for id, alert := range r.alerts {
		if alert.Status == models.StatusExpired {
			continue
		}
		if !alert.EndDate.IsZero() && alert.EndDate.Before(now) {
			alert.Status = models.StatusExpired
			alert.UpdatedAt = now
			r.alerts[id] = alert
			archived++
		}
	}
	metrics.RecordRepositoryOp("archive_expired", "ok")
	return archived, nil
}

// Health always returns nil for the in-memory repository
func (r *InMemoryRepository) Health(ctx context.Context) error {
	return nil
}

// overlaps reports whether [aStart,aEnd] and [bStart,bEnd] intersect.
// Zero end dates are treated as open-ended.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.IsZero() && !bStart.IsZero() && aEnd.Before(bStart) {
		return false
	}
	if !bEnd.IsZero() && !aStart.IsZero() && bEnd.Before(aStart) {
		return false
	}
	return true
}
