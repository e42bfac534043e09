package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hearthwise/hearthwise/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PatternStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPatternStore(db *pgxpool.Pool, logger *zap.Logger) *PatternStore {
	return &PatternStore{db: db, logger: logger}
}

// Upsert inserts or refreshes the row for (pattern_type, device_key).
// On conflict the stored confidence only ever rises, occurrences and
// metadata are replaced, last_seen advances, and the history counter
// increments.
func (s *PatternStore) Upsert(ctx context.Context, p *domain.Pattern) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal pattern metadata: %w", err)
	}
	if p.TrendDirection == "" {
		p.TrendDirection = domain.TrendStable
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO patterns (pattern_type, device_key, confidence, occurrences, metadata, first_seen, last_seen, trend_direction, trend_strength, confidence_history_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		 ON CONFLICT (pattern_type, device_key) DO UPDATE SET
		   confidence = GREATEST(patterns.confidence, EXCLUDED.confidence),
		   occurrences = EXCLUDED.occurrences,
		   metadata = EXCLUDED.metadata,
		   last_seen = EXCLUDED.last_seen,
		   trend_direction = EXCLUDED.trend_direction,
		   trend_strength = EXCLUDED.trend_strength,
		   confidence_history_count = patterns.confidence_history_count + 1,
		   updated_at = NOW()
		 RETURNING id, confidence, first_seen, confidence_history_count, created_at, updated_at`,
		p.PatternType, p.DeviceKey, p.Confidence, p.Occurrences, metadata,
		p.FirstSeen, p.LastSeen, p.TrendDirection, p.TrendStrength,
	).Scan(&p.ID, &p.Confidence, &p.FirstSeen, &p.ConfidenceHistoryCount, &p.CreatedAt, &p.UpdatedAt)
	return classify(err)
}

func (s *PatternStore) GetByKey(ctx context.Context, patternType domain.PatternType, deviceKey string) (*domain.Pattern, error) {
	p := &domain.Pattern{}
	var metadata []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, pattern_type, device_key, confidence, occurrences, metadata, first_seen, last_seen, trend_direction, trend_strength, confidence_history_count, created_at, updated_at
		 FROM patterns WHERE pattern_type = $1 AND device_key = $2`,
		patternType, deviceKey,
	).Scan(&p.ID, &p.PatternType, &p.DeviceKey, &p.Confidence, &p.Occurrences, &metadata,
		&p.FirstSeen, &p.LastSeen, &p.TrendDirection, &p.TrendStrength, &p.ConfidenceHistoryCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Metadata = s.decodeMetadata(metadata, p.DeviceKey)
	return p, nil
}

func (s *PatternStore) List(ctx context.Context, opts domain.ListPatternsOpts) ([]domain.Pattern, error) {
	var conditions []string
	var args []any

	if opts.PatternType != nil {
		conditions = append(conditions, fmt.Sprintf("pattern_type = $%d", len(args)+1))
		args = append(args, *opts.PatternType)
	}
	if opts.MinConfidence > 0 {
		conditions = append(conditions, fmt.Sprintf("confidence >= $%d", len(args)+1))
		args = append(args, opts.MinConfidence)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(
		`SELECT id, pattern_type, device_key, confidence, occurrences, metadata, first_seen, last_seen, trend_direction, trend_strength, confidence_history_count, created_at, updated_at
		 FROM patterns %s
		 ORDER BY confidence DESC, device_key ASC`,
		where,
	)
	// Limit 0 gets the default cap; a negative limit (domain.ListAll) reads
	// every row for the pipeline.
	limit := opts.Limit
	if limit == 0 {
		limit = 500
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		var metadata []byte
		if err := rows.Scan(&p.ID, &p.PatternType, &p.DeviceKey, &p.Confidence, &p.Occurrences, &metadata,
			&p.FirstSeen, &p.LastSeen, &p.TrendDirection, &p.TrendStrength, &p.ConfidenceHistoryCount,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}
		p.Metadata = s.decodeMetadata(metadata, p.DeviceKey)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (s *PatternStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&count)
	return count, err
}

// decodeMetadata tolerates malformed stored metadata: the read succeeds
// with an empty structure and a logged warning.
func (s *PatternStore) decodeMetadata(raw []byte, deviceKey string) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		s.logger.Warn("malformed pattern metadata, defaulting to empty",
			zap.String("device_key", deviceKey),
			zap.Error(err))
		return map[string]any{}
	}
	return m
}
