package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lifetime is a member's permanent progression record. It is never reset
// across seasons.
type Lifetime struct {
	UserID              string
	LifetimeXP          int64
	Level               int
	TotalSeasons        int
	SeasonsParticipated []string
	UpdatedAt           time.Time
}

type LifetimeStore struct {
	db *pgxpool.Pool
}

func NewLifetimeStore(db *pgxpool.Pool) *LifetimeStore {
	return &LifetimeStore{db: db}
}

func (s *LifetimeStore) Get(ctx context.Context, userID string) (*Lifetime, error) {
	l := &Lifetime{}
	err := s.db.QueryRow(ctx, `
		SELECT user_id, lifetime_xp, level, total_seasons, seasons_participated, updated_at
		FROM lifetime_progression WHERE user_id = $1
	`, userID).Scan(
		&l.UserID, &l.LifetimeXP, &l.Level, &l.TotalSeasons, &l.SeasonsParticipated, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// AddXP credits lifetime XP with an in-database increment and recomputes
// the level from the post-increment total. The record is created on first
// credit.
func (s *LifetimeStore) AddXP(ctx context.Context, userID string, delta, xpPerLevel int64) (*Lifetime, error) {
	l := &Lifetime{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO lifetime_progression (user_id, lifetime_xp, level)
		VALUES ($1, $2, $2 / $3 + 1)
		ON CONFLICT (user_id) DO UPDATE SET
			lifetime_xp = lifetime_progression.lifetime_xp + $2,
			level = (lifetime_progression.lifetime_xp + $2) / $3 + 1,
			updated_at = now()
		RETURNING user_id, lifetime_xp, level, total_seasons, seasons_participated, updated_at
	`, userID, delta, xpPerLevel).Scan(
		&l.UserID, &l.LifetimeXP, &l.Level, &l.TotalSeasons, &l.SeasonsParticipated, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
