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

type SynergyStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSynergyStore(db *pgxpool.Pool, logger *zap.Logger) *SynergyStore {
	return &SynergyStore{db: db, logger: logger}
}

// Upsert inserts or refreshes the row keyed by synergy_id.
func (s *SynergyStore) Upsert(ctx context.Context, o *domain.SynergyOpportunity) error {
	if o.SynergyDepth != len(o.ChainDevices) {
		return fmt.Errorf("synergy depth %d does not match chain length %d", o.SynergyDepth, len(o.ChainDevices))
	}
	explanation, err := json.Marshal(o.Explanation)
	if err != nil {
		return fmt.Errorf("marshal synergy explanation: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO synergies (synergy_id, synergy_type, chain_devices, synergy_depth, impact_score, confidence, complexity, area, pattern_support_score, validated_by_patterns, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (synergy_id) DO UPDATE SET
		   impact_score = EXCLUDED.impact_score,
		   confidence = EXCLUDED.confidence,
		   complexity = EXCLUDED.complexity,
		   area = EXCLUDED.area,
		   pattern_support_score = EXCLUDED.pattern_support_score,
		   validated_by_patterns = EXCLUDED.validated_by_patterns,
		   explanation = EXCLUDED.explanation,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		o.SynergyID, o.SynergyType, o.ChainDevices, o.SynergyDepth, o.ImpactScore,
		o.Confidence, o.Complexity, nullable(o.Area), o.PatternSupportScore,
		o.ValidatedByPatterns, explanation,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return classify(err)
}

func (s *SynergyStore) GetBySynergyID(ctx context.Context, synergyID string) (*domain.SynergyOpportunity, error) {
	o := &domain.SynergyOpportunity{}
	var explanation []byte
	var area *string
	err := s.db.QueryRow(ctx,
		`SELECT id, synergy_id, synergy_type, chain_devices, synergy_depth, impact_score, confidence, complexity, area, pattern_support_score, validated_by_patterns, explanation, created_at, updated_at
		 FROM synergies WHERE synergy_id = $1`,
		synergyID,
	).Scan(&o.ID, &o.SynergyID, &o.SynergyType, &o.ChainDevices, &o.SynergyDepth, &o.ImpactScore,
		&o.Confidence, &o.Complexity, &area, &o.PatternSupportScore, &o.ValidatedByPatterns,
		&explanation, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if area != nil {
		o.Area = *area
	}
	o.Explanation = s.decodeExplanation(explanation, o.SynergyID)
	return o, nil
}

func (s *SynergyStore) List(ctx context.Context, opts domain.ListSynergiesOpts) ([]domain.SynergyOpportunity, error) {
	var conditions []string
	var args []any

	if opts.SynergyType != nil {
		conditions = append(conditions, fmt.Sprintf("synergy_type = $%d", len(args)+1))
		args = append(args, *opts.SynergyType)
	}
	if opts.MinImpact > 0 {
		conditions = append(conditions, fmt.Sprintf("impact_score >= $%d", len(args)+1))
		args = append(args, opts.MinImpact)
	}
	if opts.Depth > 0 {
		conditions = append(conditions, fmt.Sprintf("synergy_depth = $%d", len(args)+1))
		args = append(args, opts.Depth)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(
		`SELECT id, synergy_id, synergy_type, chain_devices, synergy_depth, impact_score, confidence, complexity, area, pattern_support_score, validated_by_patterns, explanation, created_at, updated_at
		 FROM synergies %s
		 ORDER BY impact_score DESC, synergy_id ASC`,
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
		return nil, fmt.Errorf("list synergies: %w", err)
	}
	defer rows.Close()

	var synergies []domain.SynergyOpportunity
	for rows.Next() {
		var o domain.SynergyOpportunity
		var explanation []byte
		var area *string
		if err := rows.Scan(&o.ID, &o.SynergyID, &o.SynergyType, &o.ChainDevices, &o.SynergyDepth,
			&o.ImpactScore, &o.Confidence, &o.Complexity, &area, &o.PatternSupportScore,
			&o.ValidatedByPatterns, &explanation, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan synergy row: %w", err)
		}
		if area != nil {
			o.Area = *area
		}
		o.Explanation = s.decodeExplanation(explanation, o.SynergyID)
		synergies = append(synergies, o)
	}
	return synergies, rows.Err()
}

func (s *SynergyStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM synergies`).Scan(&count)
	return count, err
}

func (s *SynergyStore) decodeExplanation(raw []byte, synergyID string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		s.logger.Warn("malformed synergy explanation, defaulting to empty",
			zap.String("synergy_id", synergyID),
			zap.Error(err))
		return map[string]any{}
	}
	return m
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
