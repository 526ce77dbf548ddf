package report

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists fee snapshots in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes one snapshot row.
func (r *Repository) Insert(ctx context.Context, s Summary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fee_snapshots (id, taken_at, total_students, active_students, total_fees, amount_collected, outstanding)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, s.ID, s.TakenAt, s.TotalStudents, s.ActiveStudents, s.TotalFees, s.AmountCollected, s.Outstanding)
	return err
}

// Latest returns the most recent snapshot, or nil when none exists yet.
func (r *Repository) Latest(ctx context.Context) (*Summary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, taken_at, total_students, active_students, total_fees, amount_collected, outstanding
		FROM fee_snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`)
	var s Summary
	if err := row.Scan(&s.ID, &s.TakenAt, &s.TotalStudents, &s.ActiveStudents, &s.TotalFees, &s.AmountCollected, &s.Outstanding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Prune drops snapshots older than the retained count.
func (r *Repository) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM fee_snapshots
		WHERE id NOT IN (
			SELECT id FROM fee_snapshots ORDER BY taken_at DESC LIMIT $1
		)
	`, keep)
	return err
}
