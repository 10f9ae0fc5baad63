package season

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/points"
	"github.com/kristian206/agent-ascend-server/internal/rank"
	"github.com/kristian206/agent-ascend-server/internal/store"
)

const (
	// XPPerLevel is the lifetime XP needed per level:
	// level = xp/XPPerLevel + 1.
	XPPerLevel int64 = 1000

	// seasonToXPDivisor fixes the season-point to lifetime-XP conversion
	// at 10:1. Awards mirror a tenth of their points immediately; the
	// season-end settlement converts the final total at the same rate.
	seasonToXPDivisor int64 = 10
)

// Service is the season & ranking engine: point awards, goal bonuses,
// season lifecycle, and leaderboard reads.
type Service struct {
	cfg      points.Config
	members  MemberRepo
	seasons  SeasonRepo
	progress ProgressRepo
	lifetime LifetimeRepo
	ledger   Ledger
	board    Board
	notifier Notifier
	logger   *slog.Logger

	// clock is injected so tests can simulate month rollover.
	clock func() time.Time
}

func NewService(cfg points.Config, members MemberRepo, seasons SeasonRepo, progress ProgressRepo, lifetime LifetimeRepo, ledger Ledger, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		members:  members,
		seasons:  seasons,
		progress: progress,
		lifetime: lifetime,
		ledger:   ledger,
		logger:   logger,
		clock:    time.Now,
	}
}

// SetBoard attaches the Redis SR mirror.
func (s *Service) SetBoard(b Board) { s.board = b }

// SetNotifier attaches the live award feed.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetClock overrides the wall clock; used by tests and the simulator.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// AwardResult reports what one award actually did.
type AwardResult struct {
	PointsAwarded int    `json:"points_awarded"`
	NewTotal      int64  `json:"new_total"`
	Rank          string `json:"rank"`
	Division      int    `json:"division"`
	SR            int    `json:"sr"`
	Capped        bool   `json:"capped,omitempty"`
}

// AwardEvent is the payload pushed to live feed subscribers.
type AwardEvent struct {
	UserID   string `json:"user_id"`
	SeasonID string `json:"season_id"`
	Kind     string `json:"kind"`
	Points   int    `json:"points"`
	SR       int    `json:"sr"`
	Rank     string `json:"rank"`
	Division int    `json:"division"`
}

// AwardPoints scores one action for a member. The member's season record
// is created on first contact (soft-reset placement from their previous
// season, bronze otherwise). Cheers past the daily cap are acknowledged
// with zero points and no counter movement. Storage failures propagate.
func (s *Service) AwardPoints(ctx context.Context, userID string, action points.Action) (*AwardResult, error) {
	if action == nil {
		return nil, ErrInvalidAction
	}
	if c, ok := action.(points.Custom); ok && c.Points <= 0 {
		return nil, fmt.Errorf("%w: custom award needs a positive amount", ErrInvalidAction)
	}

	se, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.ensureRecord(ctx, userID, se)
	if err != nil {
		return nil, err
	}

	if points.CapExceeded(action, s.cfg) {
		// Silent no-op, not an error: the caller can tell from Capped.
		return &AwardResult{
			PointsAwarded: 0,
			NewTotal:      rec.SeasonPoints,
			Rank:          rec.CurrentRank,
			Division:      rec.CurrentDivision,
			SR:            rec.CurrentSR,
			Capped:        true,
		}, nil
	}

	base := action.Base(s.cfg)
	awarded := s.applyBonuses(base, rec)

	delta := store.AwardDelta{
		Points:  int64(awarded),
		Day:     s.clock().UTC().Format("2006-01-02"),
		Counter: counterFor(action),
	}
	if p, ok := action.(points.Policy); ok {
		delta.PolicyType = policyKey(p.Type, s.cfg)
	}

	updated, err := s.progress.ApplyAward(ctx, userID, se.ID, delta, derivedRank)
	if err != nil {
		return nil, fmt.Errorf("award %s to %s: %w", action.Kind(), userID, err)
	}

	if xp := int64(awarded) / seasonToXPDivisor; xp > 0 {
		if _, err := s.lifetime.AddXP(ctx, userID, xp, XPPerLevel); err != nil {
			return nil, fmt.Errorf("mirror lifetime xp for %s: %w", userID, err)
		}
	}

	var policyType *string
	if delta.PolicyType != "" {
		policyType = &delta.PolicyType
	}
	if err := s.ledger.Record(ctx, userID, se.ID, string(action.Kind()), awarded, policyType); err != nil {
		return nil, fmt.Errorf("record point event: %w", err)
	}

	if s.board != nil {
		if err := s.board.UpdateSR(ctx, se.ID, userID, updated.CurrentSR); err != nil {
			s.logger.Warn("leaderboard mirror update failed", "user", userID, "err", err)
		}
	}
	if s.notifier != nil {
		s.notifier.PublishAward(AwardEvent{
			UserID:   userID,
			SeasonID: se.ID,
			Kind:     string(action.Kind()),
			Points:   awarded,
			SR:       updated.CurrentSR,
			Rank:     updated.CurrentRank,
			Division: updated.CurrentDivision,
		})
	}

	return &AwardResult{
		PointsAwarded: awarded,
		NewTotal:      updated.SeasonPoints,
		Rank:          updated.CurrentRank,
		Division:      updated.CurrentDivision,
		SR:            updated.CurrentSR,
	}, nil
}

// applyBonuses stacks the active goal bonuses multiplicatively against the
// base and truncates to an integer.
func (s *Service) applyBonuses(base int, rec *store.Progress) int {
	v := float64(base)
	if rec.IndividualGoalBonus {
		v *= 1 + s.cfg.IndividualGoalBonus
	}
	if rec.TeamGoalBonus {
		v *= 1 + s.cfg.TeamGoalBonus
	}
	return int(v)
}

// derivedRank recomputes the rank snapshot from a post-increment season
// total. SR is the placement floor plus the point-derived rating, so the
// rank and SR columns can never drift apart.
func derivedRank(seasonPoints int64, placementSR int) store.RankState {
	sr := placementSR + rank.SRFromPoints(int(seasonPoints))
	r := rank.FromSR(sr)
	return store.RankState{SR: sr, Rank: r.Name, Division: r.Division, Tier: r.Tier}
}

func counterFor(action points.Action) store.Counter {
	switch action.(type) {
	case points.Login:
		return store.CounterLogins
	case points.DailyIntentions:
		return store.CounterIntentions
	case points.NightlyWrap:
		return store.CounterWraps
	case points.Policy:
		return store.CounterPolicies
	case points.CheerSent:
		return store.CounterCheersSent
	case points.CheerReceived:
		return store.CounterCheersRecv
	default:
		return store.CounterNone
	}
}

// policyKey normalizes unknown policy types onto "other" so the per-type
// tallies match the payout actually made.
func policyKey(policyType string, cfg points.Config) string {
	if _, ok := cfg.Policies[policyType]; ok {
		return policyType
	}
	return "other"
}

// BonusKind selects which goal-bonus flag ApplyGoalBonus sets.
type BonusKind string

const (
	BonusIndividual BonusKind = "individual"
	BonusTeam       BonusKind = "team"
)

// ApplyGoalBonus flips a member's goal-bonus multiplier for the current
// season. Subsequent awards pick it up.
func (s *Service) ApplyGoalBonus(ctx context.Context, userID string, kind BonusKind) error {
	if kind != BonusIndividual && kind != BonusTeam {
		return fmt.Errorf("%w: bonus kind %q", ErrInvalidAction, kind)
	}
	se, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if _, err := s.ensureRecord(ctx, userID, se); err != nil {
		return err
	}
	return s.progress.SetGoalBonus(ctx, userID, se.ID, kind == BonusTeam)
}

// UserStatus is the full progress view for one member.
type UserStatus struct {
	Season   *store.Season   `json:"season"`
	Record   *store.Progress `json:"record"`
	Next     rank.Progress   `json:"next_rank"`
	Lifetime *store.Lifetime `json:"lifetime,omitempty"`
}

// UserProgress returns a member's season record (created on first read),
// band progress toward the next rank, and lifetime progression.
func (s *Service) UserProgress(ctx context.Context, userID string) (*UserStatus, error) {
	se, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.ensureRecord(ctx, userID, se)
	if err != nil {
		return nil, err
	}
	life, err := s.lifetime.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserStatus{
		Season:   se,
		Record:   rec,
		Next:     rank.ProgressToNext(rec.CurrentSR),
		Lifetime: life,
	}, nil
}

// Leaderboard returns ranked standings for a season (the current one when
// seasonID is empty). A season with no participants yields an empty list.
func (s *Service) Leaderboard(ctx context.Context, seasonID string, limit int) ([]store.Standing, error) {
	if limit <= 0 {
		limit = 50
	}
	if seasonID == "" {
		se, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		seasonID = se.ID
	}
	standings, err := s.progress.ListBySeason(ctx, seasonID, limit)
	if err != nil {
		return nil, err
	}
	if standings == nil {
		standings = []store.Standing{}
	}
	return standings, nil
}

// ensureRecord fetches the member's record for the season, creating it
// lazily at their soft-reset placement. A userID with no member document
// still gets a default bronze record rather than an error.
func (s *Service) ensureRecord(ctx context.Context, userID string, se *store.Season) (*store.Progress, error) {
	rec, err := s.progress.Get(ctx, userID, se.ID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	var lastRank string
	var lastDiv int
	m, err := s.members.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m != nil && m.LastSeasonRank != nil {
		lastRank = *m.LastSeasonRank
		if m.LastSeasonDivision != nil {
			lastDiv = *m.LastSeasonDivision
		}
	}

	rec, err = s.progress.Create(ctx, placementRecord(userID, se.ID, lastRank, lastDiv))
	if err != nil {
		return nil, fmt.Errorf("create season record for %s: %w", userID, err)
	}
	return rec, nil
}

// placementRecord builds a fresh season record at a member's soft-reset
// placement. Counters start zeroed; the peak starts at the entry rank.
func placementRecord(userID, seasonID, lastRank string, lastDiv int) *store.Progress {
	pl := rank.PlaceForNewSeason(lastRank, lastDiv)
	rs := derivedRank(int64(pl.StartingPoints), pl.PlacementSR)
	return &store.Progress{
		UserID:            userID,
		SeasonID:          seasonID,
		CurrentRank:       rs.Rank,
		CurrentDivision:   rs.Division,
		CurrentSR:         rs.SR,
		PlacementSR:       pl.PlacementSR,
		SeasonPoints:      int64(pl.StartingPoints),
		PlacementRank:     pl.Rank.Name,
		PlacementDivision: pl.Rank.Division,
		PeakRank:          rs.Rank,
		PeakDivision:      rs.Division,
		PeakTier:          rs.Tier,
	}
}
