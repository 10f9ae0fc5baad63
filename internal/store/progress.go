package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Counter names the per-action tally bumped alongside an award. CounterNone
// is used for custom awards, which have no tally.
type Counter string

const (
	CounterNone       Counter = ""
	CounterLogins     Counter = "login_days"
	CounterIntentions Counter = "intentions_completed"
	CounterWraps      Counter = "wraps_completed"
	CounterPolicies   Counter = "policies_sold"
	CounterCheersSent Counter = "cheers_sent"
	CounterCheersRecv Counter = "cheers_received"
)

// Progress is one member's season-scoped aggregate record, keyed
// userID_seasonID.
type Progress struct {
	ID                  string
	UserID              string
	SeasonID            string
	CurrentRank         string
	CurrentDivision     int
	CurrentSR           int
	PlacementSR         int
	SeasonPoints        int64
	PlacementRank       string
	PlacementDivision   int
	PeakRank            string
	PeakDivision        int
	PeakTier            int
	DailyPoints         map[string]int64
	PoliciesSold        map[string]int64
	LoginDays           int
	IntentionsCompleted int
	WrapsCompleted      int
	CheersSent          int
	CheersReceived      int
	IndividualGoalBonus bool
	TeamGoalBonus       bool
	CreatedAt           time.Time
}

// ProgressKey builds the record identity for a (user, season) pair.
func ProgressKey(userID, seasonID string) string {
	return userID + "_" + seasonID
}

// RankState is the derived rank snapshot written back after an award.
type RankState struct {
	SR       int
	Rank     string
	Division int
	Tier     int
}

// AwardDelta describes the increments of a single award.
type AwardDelta struct {
	Points     int64
	Day        string // ISO date bucket in daily_points
	Counter    Counter
	PolicyType string // jsonb key when Counter is CounterPolicies
}

type ProgressStore struct {
	db *pgxpool.Pool
}

func NewProgressStore(db *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{db: db}
}

const progressCols = `id, user_id, season_id, current_rank, current_division, current_sr,
	placement_sr, season_points, placement_rank, placement_division,
	peak_rank, peak_division, peak_tier, daily_points, policies_sold,
	login_days, intentions_completed, wraps_completed, cheers_sent, cheers_received,
	individual_goal_bonus, team_goal_bonus, created_at`

func scanProgress(row pgx.Row) (*Progress, error) {
	p := &Progress{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.SeasonID, &p.CurrentRank, &p.CurrentDivision, &p.CurrentSR,
		&p.PlacementSR, &p.SeasonPoints, &p.PlacementRank, &p.PlacementDivision,
		&p.PeakRank, &p.PeakDivision, &p.PeakTier, &p.DailyPoints, &p.PoliciesSold,
		&p.LoginDays, &p.IntentionsCompleted, &p.WrapsCompleted, &p.CheersSent, &p.CheersReceived,
		&p.IndividualGoalBonus, &p.TeamGoalBonus, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProgressStore) Get(ctx context.Context, userID, seasonID string) (*Progress, error) {
	return scanProgress(s.db.QueryRow(ctx,
		`SELECT `+progressCols+` FROM user_season_records WHERE id = $1`,
		ProgressKey(userID, seasonID)))
}

// Create inserts a fresh placement record. Counters start zeroed and the
// peak is the placement rank. A concurrent insert is not an error: the
// existing record wins and is returned.
func (s *ProgressStore) Create(ctx context.Context, p *Progress) (*Progress, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_season_records
			(id, user_id, season_id, current_rank, current_division, current_sr,
			 placement_sr, season_points, placement_rank, placement_division,
			 peak_rank, peak_division, peak_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`, ProgressKey(p.UserID, p.SeasonID), p.UserID, p.SeasonID,
		p.CurrentRank, p.CurrentDivision, p.CurrentSR,
		p.PlacementSR, p.SeasonPoints, p.PlacementRank, p.PlacementDivision,
		p.PeakRank, p.PeakDivision, p.PeakTier)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, p.UserID, p.SeasonID)
}

// CreateBatch seeds placement records for a whole roster inside one
// transaction. Existing records are left untouched, so re-running a
// partially failed seeding is safe.
func (s *ProgressStore) CreateBatch(ctx context.Context, records []Progress) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range records {
		_, err = tx.Exec(ctx, `
			INSERT INTO user_season_records
				(id, user_id, season_id, current_rank, current_division, current_sr,
				 placement_sr, season_points, placement_rank, placement_division,
				 peak_rank, peak_division, peak_tier)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING
		`, ProgressKey(p.UserID, p.SeasonID), p.UserID, p.SeasonID,
			p.CurrentRank, p.CurrentDivision, p.CurrentSR,
			p.PlacementSR, p.SeasonPoints, p.PlacementRank, p.PlacementDivision,
			p.PeakRank, p.PeakDivision, p.PeakTier)
		if err != nil {
			return fmt.Errorf("seed %s: %w", p.UserID, err)
		}
	}
	return tx.Commit(ctx)
}

// ApplyAward performs one award as a single transaction: every counter is
// bumped with an in-database increment (never read-modify-write from the
// application), then the rank snapshot is recomputed from the
// post-increment season total via rankFor and written back. The peak only
// moves when the new tier exceeds it.
func (s *ProgressStore) ApplyAward(ctx context.Context, userID, seasonID string, d AwardDelta, rankFor func(seasonPoints int64, placementSR int) RankState) (*Progress, error) {
	key := ProgressKey(userID, seasonID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin award: %w", err)
	}
	defer tx.Rollback(ctx)

	counterSet := ""
	args := []any{key, d.Points, d.Day}
	switch d.Counter {
	case CounterNone:
	case CounterPolicies:
		counterSet = `, policies_sold = jsonb_set(policies_sold, ARRAY[$4],
			to_jsonb(COALESCE((policies_sold->>$4)::bigint, 0) + 1))`
		args = append(args, d.PolicyType)
	default:
		counterSet = fmt.Sprintf(`, %s = %s + 1`, d.Counter, d.Counter)
	}

	var seasonPoints int64
	var placementSR int
	err = tx.QueryRow(ctx, `
		UPDATE user_season_records SET
			season_points = season_points + $2,
			daily_points = jsonb_set(daily_points, ARRAY[$3],
				to_jsonb(COALESCE((daily_points->>$3)::bigint, 0) + $2))
			`+counterSet+`
		WHERE id = $1
		RETURNING season_points, placement_sr
	`, args...).Scan(&seasonPoints, &placementSR)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("no season record %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("apply increments: %w", err)
	}

	rs := rankFor(seasonPoints, placementSR)
	p, err := scanProgress(tx.QueryRow(ctx, `
		UPDATE user_season_records SET
			current_sr = $2,
			current_rank = $3,
			current_division = $4,
			peak_rank = CASE WHEN $5 > peak_tier THEN $3 ELSE peak_rank END,
			peak_division = CASE WHEN $5 > peak_tier THEN $4 ELSE peak_division END,
			peak_tier = GREATEST(peak_tier, $5)
		WHERE id = $1
		RETURNING `+progressCols,
		key, rs.SR, rs.Rank, rs.Division, rs.Tier))
	if err != nil {
		return nil, fmt.Errorf("write rank: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit award: %w", err)
	}
	return p, nil
}

// SetGoalBonus flips one of the bonus multiplier flags on the record.
func (s *ProgressStore) SetGoalBonus(ctx context.Context, userID, seasonID string, team bool) error {
	col := "individual_goal_bonus"
	if team {
		col = "team_goal_bonus"
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE user_season_records SET `+col+` = TRUE WHERE id = $1`,
		ProgressKey(userID, seasonID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("no season record %s", ProgressKey(userID, seasonID))
	}
	return nil
}

// Standing is one leaderboard row: the season record joined with member
// display fields.
type Standing struct {
	Position     int
	UserID       string
	Name         string
	AvatarURL    string
	TeamID       *string
	Rank         string
	Division     int
	SR           int
	SeasonPoints int64
}

// ListBySeason returns season standings ordered by SR descending. Ties
// break on season points, then user id, so the order is deterministic.
func (s *ProgressStore) ListBySeason(ctx context.Context, seasonID string, limit int) ([]Standing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.user_id, m.name, m.avatar_url, m.team_id,
		       r.current_rank, r.current_division, r.current_sr, r.season_points
		FROM user_season_records r
		JOIN members m ON m.id = r.user_id
		WHERE r.season_id = $1
		ORDER BY r.current_sr DESC, r.season_points DESC, r.user_id
		LIMIT $2
	`, seasonID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(
			&st.UserID, &st.Name, &st.AvatarURL, &st.TeamID,
			&st.Rank, &st.Division, &st.SR, &st.SeasonPoints,
		); err != nil {
			return nil, err
		}
		st.Position = len(out) + 1
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListAll returns every record for a season; the lifecycle manager walks
// this at season end.
func (s *ProgressStore) ListAll(ctx context.Context, seasonID string) ([]Progress, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+progressCols+` FROM user_season_records WHERE season_id = $1 ORDER BY user_id`,
		seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
