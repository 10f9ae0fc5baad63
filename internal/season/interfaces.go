package season

import (
	"context"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/store"
)

// The engine depends on narrow views of the stores so tests can swap in
// in-memory fakes.

type MemberRepo interface {
	Get(ctx context.Context, id string) (*store.Member, error)
	List(ctx context.Context) ([]store.Member, error)
}

type SeasonRepo interface {
	Get(ctx context.Context, id string) (*store.Season, error)
	Create(ctx context.Context, se *store.Season) (*store.Season, error)
	MaxSeasonNumber(ctx context.Context) (int, error)
	SetParticipants(ctx context.Context, id string, n int) error
	ActiveExpired(ctx context.Context, now time.Time) ([]store.Season, error)
	ClaimTransition(ctx context.Context, id string) (bool, error)
	ReleaseTransition(ctx context.Context, id string) error
	FinalizeSeason(ctx context.Context, id string, rollovers []store.Rollover, xpPerLevel int64, processedAt time.Time) error
}

type ProgressRepo interface {
	Get(ctx context.Context, userID, seasonID string) (*store.Progress, error)
	Create(ctx context.Context, p *store.Progress) (*store.Progress, error)
	CreateBatch(ctx context.Context, records []store.Progress) error
	ApplyAward(ctx context.Context, userID, seasonID string, d store.AwardDelta, rankFor func(seasonPoints int64, placementSR int) store.RankState) (*store.Progress, error)
	SetGoalBonus(ctx context.Context, userID, seasonID string, team bool) error
	ListBySeason(ctx context.Context, seasonID string, limit int) ([]store.Standing, error)
	ListAll(ctx context.Context, seasonID string) ([]store.Progress, error)
}

type LifetimeRepo interface {
	Get(ctx context.Context, userID string) (*store.Lifetime, error)
	AddXP(ctx context.Context, userID string, delta, xpPerLevel int64) (*store.Lifetime, error)
}

type Ledger interface {
	Record(ctx context.Context, userID, seasonID, kind string, pts int, policyType *string) error
}

// Board is the Redis SR mirror. Mirror writes are best-effort; failures
// are logged, not surfaced, since PostgreSQL remains the system of record.
type Board interface {
	UpdateSR(ctx context.Context, seasonID, userID string, sr int) error
	ResetSeason(ctx context.Context, seasonID string) error
}

// Notifier fans an award out to live dashboard clients.
type Notifier interface {
	PublishAward(ev AwardEvent)
}
