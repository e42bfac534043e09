package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Maintenance handles the backup-then-repair flow for suspected store
// corruption. Repair is a table reindex; the backup copy is taken first so
// nothing is lost if the reindex makes things worse.
type Maintenance struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMaintenance(db *pgxpool.Pool, logger *zap.Logger) *Maintenance {
	return &Maintenance{db: db, logger: logger}
}

// Repair backs the table up and reindexes it.
func (m *Maintenance) Repair(ctx context.Context, table string) error {
	m.logger.Warn("attempting store repair", zap.String("table", table))

	backup := table + "_backup"
	if _, err := m.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, backup)); err != nil {
		return fmt.Errorf("drop stale backup of %s: %w", table, err)
	}
	if _, err := m.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s AS TABLE %s`, backup, table)); err != nil {
		return fmt.Errorf("backup %s: %w", table, err)
	}
	if _, err := m.db.Exec(ctx, fmt.Sprintf(`REINDEX TABLE %s`, table)); err != nil {
		return fmt.Errorf("reindex %s: %w", table, err)
	}

	m.logger.Info("store repair completed", zap.String("table", table))
	return nil
}

// OrphanedRatings counts feedback rows whose synergy no longer exists.
// Ratings are append-only and synergies churn across runs, so a nonzero
// count is expected drift rather than corruption.
func (m *Maintenance) OrphanedRatings(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM synergy_ratings r
		LEFT JOIN synergies s ON s.synergy_id = r.synergy_id
		WHERE s.id IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orphaned ratings: %w", err)
	}
	return n, nil
}

// WithRepair runs op, and if it fails with a corruption-shaped error,
// repairs the table and retries once. Any other error passes through.
func (m *Maintenance) WithRepair(ctx context.Context, table string, op func() error) error {
	err := op()
	if err == nil || !IsCorruption(err) {
		return err
	}

	m.logger.Error("store corruption detected", zap.String("table", table), zap.Error(err))
	if repairErr := m.Repair(ctx, table); repairErr != nil {
		return fmt.Errorf("repair after corruption: %w (original: %v)", repairErr, err)
	}
	return op()
}
