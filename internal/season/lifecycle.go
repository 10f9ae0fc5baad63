package season

import (
	"context"
	"fmt"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/store"
)

const (
	// maxSeasonRevisions bounds how many times a single month's season can
	// be ended and reopened (an administrative operation).
	maxSeasonRevisions = 12

	transitionPollInterval = 100 * time.Millisecond
	transitionPollAttempts = 5
)

// SeasonID derives the deterministic season id for a point in time.
func SeasonID(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

func monthBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// Current resolves the season valid for "now": expired seasons are closed
// first, then the month's season is fetched or created. It never returns
// an ended or stale season. When another process holds the transition
// claim, it polls briefly and then surfaces ErrSeasonTransitioning for the
// caller to retry.
func (s *Service) Current(ctx context.Context) (*store.Season, error) {
	now := s.clock().UTC()

	expired, err := s.seasons.ActiveExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("scan expired seasons: %w", err)
	}
	for i := range expired {
		if err := s.EndSeason(ctx, expired[i].ID); err != nil {
			return nil, err
		}
	}

	id := SeasonID(now)
	for rev := 2; rev < maxSeasonRevisions+2; rev++ {
		se, err := s.seasons.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if se == nil {
			return s.createSeason(ctx, id, now)
		}
		switch se.Status {
		case store.SeasonActive:
			return se, nil
		case store.SeasonEnding:
			se, err = s.awaitTransition(ctx, id)
			if err != nil {
				return nil, err
			}
			if se.Status == store.SeasonActive {
				return se, nil
			}
			// Ended while we waited: fall through to the next revision.
			fallthrough
		case store.SeasonEnded:
			// The month's season was closed early; open a successor under
			// a revision suffix so ids stay deterministic.
			id = fmt.Sprintf("%s-r%d", SeasonID(now), rev)
		}
	}
	return nil, fmt.Errorf("season %s: too many revisions", SeasonID(now))
}

func (s *Service) awaitTransition(ctx context.Context, id string) (*store.Season, error) {
	for i := 0; i < transitionPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(transitionPollInterval):
		}
		se, err := s.seasons.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if se != nil && se.Status != store.SeasonEnding {
			return se, nil
		}
	}
	return nil, ErrSeasonTransitioning
}

// createSeason opens a season for the month and seeds a placement record
// for every member on the roster: prior-season ranks decay per their
// tier's keep rule, everyone else starts at bronze. Seeding is idempotent,
// so a crash mid-seed heals on the next call.
func (s *Service) createSeason(ctx context.Context, id string, now time.Time) (*store.Season, error) {
	num, err := s.seasons.MaxSeasonNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next season number: %w", err)
	}
	start, end := monthBounds(now)

	se, err := s.seasons.Create(ctx, &store.Season{
		ID:           id,
		SeasonNumber: num + 1,
		Name:         fmt.Sprintf("Season %d", num+1),
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		return nil, fmt.Errorf("create season %s: %w", id, err)
	}

	roster, err := s.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	records := make([]store.Progress, 0, len(roster))
	for _, m := range roster {
		var lastRank string
		var lastDiv int
		if m.LastSeasonRank != nil {
			lastRank = *m.LastSeasonRank
			if m.LastSeasonDivision != nil {
				lastDiv = *m.LastSeasonDivision
			}
		}
		records = append(records, *placementRecord(m.ID, se.ID, lastRank, lastDiv))
	}
	if len(records) > 0 {
		if err := s.progress.CreateBatch(ctx, records); err != nil {
			return nil, fmt.Errorf("seed season %s: %w", id, err)
		}
		if err := s.seasons.SetParticipants(ctx, se.ID, len(records)); err != nil {
			return nil, err
		}
		se.Participants = len(records)
	}

	s.logger.Info("season created",
		"season", se.ID,
		"number", se.SeasonNumber,
		"participants", len(records),
	)
	return se, nil
}

// EndSeason settles a season: every participant's points convert to
// lifetime XP, their closing rank is stamped onto the member record for
// the next placement, and the season flips to ended, all inside one
// transaction behind an exclusive claim. If another process holds the
// claim, this waits for the outcome instead of racing it.
func (s *Service) EndSeason(ctx context.Context, seasonID string) error {
	claimed, err := s.seasons.ClaimTransition(ctx, seasonID)
	if err != nil {
		return fmt.Errorf("claim season %s: %w", seasonID, err)
	}
	if !claimed {
		se, err := s.seasons.Get(ctx, seasonID)
		if err != nil {
			return err
		}
		if se == nil || se.Status == store.SeasonEnded {
			return nil
		}
		if _, err := s.awaitTransition(ctx, seasonID); err != nil {
			return err
		}
		return nil
	}

	records, err := s.progress.ListAll(ctx, seasonID)
	if err != nil {
		s.release(ctx, seasonID)
		return fmt.Errorf("list season %s records: %w", seasonID, err)
	}

	rollovers := make([]store.Rollover, 0, len(records))
	for _, rec := range records {
		rollovers = append(rollovers, store.Rollover{
			UserID:       rec.UserID,
			Rank:         rec.CurrentRank,
			Division:     rec.CurrentDivision,
			SeasonPoints: rec.SeasonPoints,
			XPDelta:      rec.SeasonPoints / seasonToXPDivisor,
		})
	}

	if err := s.seasons.FinalizeSeason(ctx, seasonID, rollovers, XPPerLevel, s.clock().UTC()); err != nil {
		// Leave the season active so a retry starts clean rather than
		// stranding a half-migrated "ended" state.
		s.release(ctx, seasonID)
		return fmt.Errorf("finalize season %s: %w", seasonID, err)
	}

	if s.board != nil {
		if err := s.board.ResetSeason(ctx, seasonID); err != nil {
			s.logger.Warn("leaderboard mirror reset failed", "season", seasonID, "err", err)
		}
	}

	s.logger.Info("season ended", "season", seasonID, "participants", len(rollovers))
	return nil
}

func (s *Service) release(ctx context.Context, seasonID string) {
	if err := s.seasons.ReleaseTransition(ctx, seasonID); err != nil {
		s.logger.Error("release season claim", "season", seasonID, "err", err)
	}
}
