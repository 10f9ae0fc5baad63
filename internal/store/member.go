package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Member struct {
	ID                 string
	Name               string
	AvatarURL          string
	TeamID             *string
	LastSeasonRank     *string
	LastSeasonDivision *int
	LastSeasonPoints   *int64
	CreatedAt          time.Time
}

type MemberStore struct {
	db *pgxpool.Pool
}

func NewMemberStore(db *pgxpool.Pool) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) Upsert(ctx context.Context, id, name, avatarURL string, teamID *string) (*Member, error) {
	m := &Member{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO members (id, name, avatar_url, team_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url
		RETURNING id, name, avatar_url, team_id,
		          last_season_rank, last_season_division, last_season_points, created_at
	`, id, name, avatarURL, teamID).Scan(
		&m.ID, &m.Name, &m.AvatarURL, &m.TeamID,
		&m.LastSeasonRank, &m.LastSeasonDivision, &m.LastSeasonPoints, &m.CreatedAt,
	)
	return m, err
}

func (s *MemberStore) Get(ctx context.Context, id string) (*Member, error) {
	m := &Member{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, avatar_url, team_id,
		       last_season_rank, last_season_division, last_season_points, created_at
		FROM members WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Name, &m.AvatarURL, &m.TeamID,
		&m.LastSeasonRank, &m.LastSeasonDivision, &m.LastSeasonPoints, &m.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns every member; used by the season transition to compute
// placements for the whole roster.
func (s *MemberStore) List(ctx context.Context) ([]Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, avatar_url, team_id,
		       last_season_rank, last_season_division, last_season_points, created_at
		FROM members ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(
			&m.ID, &m.Name, &m.AvatarURL, &m.TeamID,
			&m.LastSeasonRank, &m.LastSeasonDivision, &m.LastSeasonPoints, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
