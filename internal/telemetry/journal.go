package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/wearsync/internal/infrastructure/database"
)

// timeLayout is fixed-width so recorded_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal persists outcomes in the delivery_outcomes table.
//
// The table is created by the embedded migrations; run db.Migrate before
// recording.
type Journal struct {
	db  *database.DB
	now func() time.Time
}

// NewJournal creates a journal over an open, migrated database.
func NewJournal(db *database.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record inserts o, assigning an ID and timestamp when they are unset.
func (j *Journal) Record(ctx context.Context, o Outcome) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.RecordedAt.IsZero() {
		o.RecordedAt = j.now()
	}

	var category sql.NullInt64
	if o.Kind == KindSensor {
		category = sql.NullInt64{Int64: int64(o.Category), Valid: true}
	}
	var errText sql.NullString
	if o.Err != "" {
		errText = sql.NullString{String: o.Err, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO delivery_outcomes (id, kind, path, category, status, error, latency_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		string(o.Kind),
		o.Path,
		category,
		string(o.Status),
		errText,
		o.Latency.Milliseconds(),
		o.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("journal: recording outcome %s: %w", o.ID, err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, path, category, status, error, latency_ms, recorded_at
		FROM delivery_outcomes
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var (
			o          Outcome
			kind       string
			status     string
			category   sql.NullInt64
			errText    sql.NullString
			latencyMS  int64
			recordedAt string
		)
		if err := rows.Scan(&o.ID, &kind, &o.Path, &category, &status, &errText, &latencyMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("journal: scanning outcome: %w", err)
		}

		o.Kind = Kind(kind)
		o.Status = Status(status)
		o.Category = int32(category.Int64) //nolint:gosec // written from an int32
		o.Err = errText.String
		o.Latency = time.Duration(latencyMS) * time.Millisecond
		if o.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("journal: parsing recorded_at of %s: %w", o.ID, err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// CountByStatus returns the number of journaled outcomes per status.
func (j *Journal) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM delivery_outcomes GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("journal: counting outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("journal: scanning count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating counts: %w", err)
	}
	return counts, nil
}

// Prune deletes outcomes recorded before cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM delivery_outcomes WHERE recorded_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: pruning outcomes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: pruning outcomes: %w", err)
	}
	return n, nil
}
