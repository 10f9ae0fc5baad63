package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Team struct {
	ID          string
	Name        string
	MemberCount int
	CreatedAt   time.Time
}

type TeamStore struct {
	db *pgxpool.Pool
}

func NewTeamStore(db *pgxpool.Pool) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) Create(ctx context.Context, id, name string) (*Team, error) {
	t := &Team{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO teams (id, name) VALUES ($1, $2)
		RETURNING id, name, member_count, created_at
	`, id, name).Scan(&t.ID, &t.Name, &t.MemberCount, &t.CreatedAt)
	return t, err
}

func (s *TeamStore) Get(ctx context.Context, id string) (*Team, error) {
	t := &Team{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, member_count, created_at FROM teams WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.MemberCount, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TeamStanding aggregates a team's season performance across its roster.
type TeamStanding struct {
	Position     int
	TeamID       string
	Name         string
	Members      int
	AvgSR        float64
	SeasonPoints int64
}

// Standings ranks teams for a season by average member SR, ties broken by
// total season points then team id.
func (s *TeamStore) Standings(ctx context.Context, seasonID string, limit int) ([]TeamStanding, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.name, COUNT(r.user_id), AVG(r.current_sr), COALESCE(SUM(r.season_points), 0)
		FROM teams t
		JOIN members m ON m.team_id = t.id
		JOIN user_season_records r ON r.user_id = m.id AND r.season_id = $1
		GROUP BY t.id, t.name
		ORDER BY AVG(r.current_sr) DESC, SUM(r.season_points) DESC, t.id
		LIMIT $2
	`, seasonID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeamStanding
	for rows.Next() {
		var ts TeamStanding
		if err := rows.Scan(&ts.TeamID, &ts.Name, &ts.Members, &ts.AvgSR, &ts.SeasonPoints); err != nil {
			return nil, err
		}
		ts.Position = len(out) + 1
		out = append(out, ts)
	}
	return out, rows.Err()
}
