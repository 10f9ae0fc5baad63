package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PointEvent is one row of the award ledger: who earned what, when, and
// for which action. The ledger is the audit trail behind every aggregate.
type PointEvent struct {
	ID         uuid.UUID
	UserID     string
	SeasonID   string
	Kind       string
	Points     int
	PolicyType *string
	CreatedAt  time.Time
}

type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Record(ctx context.Context, userID, seasonID, kind string, pts int, policyType *string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO point_events (id, user_id, season_id, kind, points, policy_type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, seasonID, kind, pts, policyType)
	return err
}

func (s *EventStore) UserHistory(ctx context.Context, userID string, limit int) ([]PointEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, season_id, kind, points, policy_type, created_at
		FROM point_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PointEvent
	for rows.Next() {
		var e PointEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.SeasonID, &e.Kind, &e.Points, &e.PolicyType, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
