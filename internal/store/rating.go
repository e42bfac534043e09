package store

import (
	"context"

	"github.com/hearthwise/hearthwise/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RatingStore is append-only: ratings are never updated or deleted by the
// core, only written by the API layer and read back for re-ranking.
type RatingStore struct {
	db *pgxpool.Pool
}

func NewRatingStore(db *pgxpool.Pool) *RatingStore {
	return &RatingStore{db: db}
}

func (s *RatingStore) Create(ctx context.Context, r *domain.SynergyRating) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO synergy_ratings (synergy_id, rating, comment)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		r.SynergyID, r.Rating, r.Comment,
	).Scan(&r.ID, &r.CreatedAt)
	return classify(err)
}

func (s *RatingStore) ListBySynergyID(ctx context.Context, synergyID string) ([]domain.SynergyRating, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, synergy_id, rating, comment, created_at
		 FROM synergy_ratings WHERE synergy_id = $1
		 ORDER BY created_at DESC`,
		synergyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []domain.SynergyRating
	for rows.Next() {
		var r domain.SynergyRating
		if err := rows.Scan(&r.ID, &r.SynergyID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}
