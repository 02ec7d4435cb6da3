package store

import (
	"context"
	"time"

	"github.com/stayguard/stayguard/internal/models"
)

// Repository is the alert persistence surface the orchestrator works
// against. The engine dictates only these operations, not the schema
// behind them.
type Repository interface {
	// FindCandidates returns non-expired alerts for the city and type whose
	// date range overlaps [windowStart, windowEnd].
	FindCandidates(ctx context.Context, city string, mainType models.MainType, windowStart, windowEnd time.Time) ([]models.Alert, error)
	Save(ctx context.Context, alert models.Alert) error
	Update(ctx context.Context, alert models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	Query(ctx context.Context, q models.AlertQuery) ([]models.Alert, error)
	// ArchiveExpired flips alerts whose end date has passed to expired and
	// returns how many were archived.
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a repository backed by Postgres when the database is
// configured, falling back to in-memory storage otherwise.
func New(db Database) Repository {
	if db.IsConfigured() {
		return NewPostgresRepository(db)
	}
	return NewInMemoryRepository()
}
