package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeasonStatus string

const (
	SeasonActive SeasonStatus = "active"
	SeasonEnding SeasonStatus = "ending"
	SeasonEnded  SeasonStatus = "ended"
)

type Season struct {
	ID           string
	SeasonNumber int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Status       SeasonStatus
	Participants int
	ProcessedAt  *time.Time
	CreatedAt    time.Time
}

type SeasonStore struct {
	db *pgxpool.Pool
}

func NewSeasonStore(db *pgxpool.Pool) *SeasonStore {
	return &SeasonStore{db: db}
}

const seasonCols = `id, season_number, name, start_date, end_date, status, participants, processed_at, created_at`

func scanSeason(row pgx.Row) (*Season, error) {
	se := &Season{}
	err := row.Scan(
		&se.ID, &se.SeasonNumber, &se.Name, &se.StartDate, &se.EndDate,
		&se.Status, &se.Participants, &se.ProcessedAt, &se.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return se, nil
}

func (s *SeasonStore) Get(ctx context.Context, id string) (*Season, error) {
	return scanSeason(s.db.QueryRow(ctx,
		`SELECT `+seasonCols+` FROM seasons WHERE id = $1`, id))
}

// Create inserts a season document. A concurrent insert of the same id is
// not an error: the already-present row is returned instead.
func (s *SeasonStore) Create(ctx context.Context, se *Season) (*Season, error) {
	created, err := scanSeason(s.db.QueryRow(ctx, `
		INSERT INTO seasons (id, season_number, name, start_date, end_date, status, participants)
		VALUES ($1, $2, $3, $4, $5, 'active', $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+seasonCols,
		se.ID, se.SeasonNumber, se.Name, se.StartDate, se.EndDate, se.Participants))
	if err != nil {
		return nil, err
	}
	if created == nil {
		return s.Get(ctx, se.ID)
	}
	return created, nil
}

func (s *SeasonStore) MaxSeasonNumber(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(season_number), 0) FROM seasons`).Scan(&n)
	return n, err
}

func (s *SeasonStore) SetParticipants(ctx context.Context, id string, n int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE seasons SET participants = $2 WHERE id = $1`, id, n)
	return err
}

// ActiveExpired returns active seasons whose end date has passed, oldest
// first. These are the seasons the lifecycle manager must close before a
// new one opens.
func (s *SeasonStore) ActiveExpired(ctx context.Context, now time.Time) ([]Season, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+seasonCols+` FROM seasons
		WHERE status = 'active' AND end_date <= $1
		ORDER BY season_number
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Season
	for rows.Next() {
		se, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *se)
	}
	return out, rows.Err()
}

// ClaimTransition flips a season from active to ending. Only one caller
// wins the claim; everyone else sees false and should back off and retry.
func (s *SeasonStore) ClaimTransition(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE seasons SET status = 'ending' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseTransition puts a claimed season back to active after a failed
// migration so a retry starts from a clean state.
func (s *SeasonStore) ReleaseTransition(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE seasons SET status = 'active' WHERE id = $1 AND status = 'ending'`, id)
	return err
}

// Rollover is one member's end-of-season settlement: the rank to stamp on
// the member record and the lifetime XP converted from season points.
type Rollover struct {
	UserID       string
	Rank         string
	Division     int
	SeasonPoints int64
	XPDelta      int64
}

// FinalizeSeason applies every member's rollover and marks the season
// ended, in a single transaction. A concurrent reader either sees the
// season still ending (and retries) or fully processed, never a partial
// migration. Re-running after a failure is safe: the lifetime credit is
// guarded by the seasons_participated membership check.
func (s *SeasonStore) FinalizeSeason(ctx context.Context, id string, rollovers []Rollover, xpPerLevel int64, processedAt time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rollovers {
		_, err = tx.Exec(ctx, `
			INSERT INTO lifetime_progression (user_id, lifetime_xp, level, total_seasons, seasons_participated)
			VALUES ($1, $2, $2 / $3 + 1, 1, ARRAY[$4])
			ON CONFLICT (user_id) DO UPDATE SET
				lifetime_xp = lifetime_progression.lifetime_xp + $2,
				level = (lifetime_progression.lifetime_xp + $2) / $3 + 1,
				total_seasons = lifetime_progression.total_seasons + 1,
				seasons_participated = array_append(lifetime_progression.seasons_participated, $4),
				updated_at = now()
			WHERE NOT lifetime_progression.seasons_participated @> ARRAY[$4::text]
		`, r.UserID, r.XPDelta, xpPerLevel, id)
		if err != nil {
			return fmt.Errorf("credit lifetime %s: %w", r.UserID, err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE members
			SET last_season_rank = $2, last_season_division = $3, last_season_points = $4
			WHERE id = $1
		`, r.UserID, r.Rank, r.Division, r.SeasonPoints)
		if err != nil {
			return fmt.Errorf("stamp member %s: %w", r.UserID, err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE seasons SET status = 'ended', processed_at = $2
		WHERE id = $1 AND status = 'ending'
	`, id, processedAt)
	if err != nil {
		return fmt.Errorf("mark ended: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("season %s not in ending state", id)
	}

	return tx.Commit(ctx)
}
