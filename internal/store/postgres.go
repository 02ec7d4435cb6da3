package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stayguard/stayguard/internal/metrics"
	"github.com/stayguard/stayguard/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db Database
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const alertColumns = `
	id, city, main_type, sub_type, title, summary, start_date, end_date,
	status, confidence, confidence_sources, sectors, recovery_expected,
	tone, header, created_at, updated_at
`

// FindCandidates returns non-expired alerts for the city and type whose
// date range overlaps the window.
func (r *PostgresRepository) FindCandidates(ctx context.Context, city string, mainType models.MainType, windowStart, windowEnd time.Time) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE city = $1
		  AND main_type = $2
		  AND status != $3
		  AND (end_date IS NULL OR end_date >= $4)
		  AND start_date <= $5
		ORDER BY created_at ASC
	`

	rowsInterface, err := r.db.Query(ctx, query, city, string(mainType), string(models.StatusExpired), windowStart, windowEnd)
	if err != nil {
		metrics.RecordRepositoryOp("find_candidates", "error")
		return nil, fmt.Errorf("find candidate alerts: %w", err)
	}

	alerts, err := scanAlerts(rowsInterface)
	metrics.RecordRepositoryOp("find_candidates", opStatus(err))
	return alerts, err
}

// Save inserts a new alert.
func (r *PostgresRepository) Save(ctx context.Context, alert models.Alert) error {
	sources, err := json.Marshal(alert.ConfidenceSources)
	if err != nil {
		return fmt.Errorf("marshal confidence sources: %w", err)
	}

	query := `
		INSERT INTO alerts (
			id, city, main_type, sub_type, title, summary, start_date, end_date,
			status, confidence, confidence_sources, sectors, recovery_expected,
			tone, header
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	err = r.db.Exec(ctx, query,
		alert.ID, alert.City, string(alert.MainType), alert.SubType, alert.Title,
		alert.Summary, alert.StartDate, nullableTime(alert.EndDate),
		string(alert.Status), alert.Confidence, sources, alert.Sectors,
		alert.RecoveryExpected, string(alert.Tone), alert.Header,
	)
	metrics.RecordRepositoryOp("save", opStatus(err))
	if err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	return nil
}

// Update replaces the mutable fields of an existing alert.
func (r *PostgresRepository) Update(ctx context.Context, alert models.Alert) error {
	sources, err := json.Marshal(alert.ConfidenceSources)
	if err != nil {
		return fmt.Errorf("marshal confidence sources: %w", err)
	}

	query := `
		UPDATE alerts SET
			title = $2,
			summary = $3,
			start_date = $4,
			end_date = $5,
			status = $6,
			confidence = $7,
			confidence_sources = $8,
			sectors = $9,
			recovery_expected = $10,
			tone = $11,
			header = $12,
			updated_at = NOW()
		WHERE id = $1
	`

	err = r.db.Exec(ctx, query,
		alert.ID, alert.Title, alert.Summary, alert.StartDate,
		nullableTime(alert.EndDate), string(alert.Status), alert.Confidence,
		sources, alert.Sectors, alert.RecoveryExpected, string(alert.Tone),
		alert.Header,
	)
	metrics.RecordRepositoryOp("update", opStatus(err))
	if err != nil {
		return fmt.Errorf("update alert %s: %w", alert.ID, err)
	}
	return nil
}

// Get retrieves a single alert by ID
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	rowInterface := r.db.QueryRow(ctx, query, id)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return nil, fmt.Errorf("invalid row type")
	}

	alert, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			metrics.RecordRepositoryOp("get", "ok")
			return nil, nil
		}
		metrics.RecordRepositoryOp("get", "error")
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	metrics.RecordRepositoryOp("get", "ok")
	return alert, nil
}

// Query retrieves alerts based on query parameters
func (r *PostgresRepository) Query(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`

	var args []interface{}
	argIndex := 1

	if len(q.IDs) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d)", argIndex)
		args = append(args, q.IDs)
		argIndex++
	}
	if len(q.Cities) > 0 {
		query += fmt.Sprintf(" AND city = ANY($%d)", argIndex)
		args = append(args, q.Cities)
		argIndex++
	}
	if len(q.MainTypes) > 0 {
		types := make([]string, len(q.MainTypes))
		for i, mt := range q.MainTypes {
			types[i] = string(mt)
		}
		query += fmt.Sprintf(" AND main_type = ANY($%d)", argIndex)
		args = append(args, types)
		argIndex++
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argIndex)
		args = append(args, statuses)
		argIndex++
	}
	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND start_date >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}
	if !q.Until.IsZero() {
		query += fmt.Sprintf(" AND start_date <= $%d", argIndex)
		args = append(args, q.Until)
		argIndex++
	}

	query += " ORDER BY start_date DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rowsInterface, err := r.db.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordRepositoryOp("query", "error")
		return nil, fmt.Errorf("query alerts: %w", err)
	}

	alerts, err := scanAlerts(rowsInterface)
	metrics.RecordRepositoryOp("query", opStatus(err))
	return alerts, err
}

// ArchiveExpired flips past-end-date alerts to expired. The update returns
// the flipped IDs so the count is exact under concurrent writes.
func (r *PostgresRepository) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE alerts
		SET status = $1, updated_at = NOW()
		WHERE status != $1
		  AND end_date IS NOT NULL
		  AND end_date < $2
		RETURNING id
	`

	rowsInterface, err := r.db.Query(ctx, query, string(models.StatusExpired), now)
	if err != nil {
		metrics.RecordRepositoryOp("archive_expired", "error")
		return 0, fmt.Errorf("archive expired alerts: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		metrics.RecordRepositoryOp("archive_expired", "error")
		return 0, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			metrics.RecordRepositoryOp("archive_expired", "error")
			return 0, fmt.Errorf("scan archived alert id: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		metrics.RecordRepositoryOp("archive_expired", "error")
		return 0, fmt.Errorf("archive expired alerts: %w", err)
	}
	metrics.RecordRepositoryOp("archive_expired", "ok")
	return count, nil
}

// Health checks the database connection
func (r *PostgresRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func scanAlerts(rowsInterface interface{}) ([]models.Alert, error) {
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var alert models.Alert
	var mainType, status, tone string
	var endDate *time.Time
	var sources []byte

	err := row.Scan(
		&alert.ID, &alert.City, &mainType, &alert.SubType, &alert.Title,
		&alert.Summary, &alert.StartDate, &endDate, &status, &alert.Confidence,
		&sources, &alert.Sectors, &alert.RecoveryExpected, &tone, &alert.Header,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.MainType = models.MainType(mainType)
	alert.Status = models.AlertStatus(status)
	alert.Tone = models.Tone(tone)
	if endDate != nil {
		alert.EndDate = *endDate
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &alert.ConfidenceSources); err != nil {
			return nil, fmt.Errorf("unmarshal confidence sources: %w", err)
		}
	}

	return &alert, nil
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
