package season

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/memstore"
	"github.com/kristian206/agent-ascend-server/internal/points"
	"github.com/kristian206/agent-ascend-server/internal/store"
)

var jan15 = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

// newTestEngine wires the engine against the in-memory store with a frozen
// clock. Advance time through the returned pointer.
func newTestEngine(t *testing.T, start time.Time) (*Service, *memstore.Store, *time.Time) {
	t.Helper()
	now := start
	mem := memstore.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(points.Default(), mem.Members(), mem.Seasons(), mem.Progress(), mem.Lifetimes(), mem.Ledger(), logger)
	svc.SetClock(func() time.Time { return now })
	return svc, mem, &now
}

func mustAward(t *testing.T, svc *Service, userID string, a points.Action) *AwardResult {
	t.Helper()
	res, err := svc.AwardPoints(context.Background(), userID, a)
	if err != nil {
		t.Fatalf("AwardPoints(%s, %v): %v", userID, a, err)
	}
	return res
}

func record(t *testing.T, svc *Service, mem *memstore.Store, userID string) *store.Progress {
	t.Helper()
	se, err := svc.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := mem.Progress().Get(context.Background(), userID, se.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatalf("no season record for %s", userID)
	}
	return rec
}

// ---------------------------------------------------------------------------
// 1. Basic awards
// ---------------------------------------------------------------------------

func TestAwardLogin(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)
	mem.AddMember(store.Member{ID: "u1", Name: "Uma"})

	res := mustAward(t, svc, "u1", points.Login{})
	if res.PointsAwarded != 10 || res.NewTotal != 10 {
		t.Fatalf("login awarded %d (total %d), want 10", res.PointsAwarded, res.NewTotal)
	}
	if res.Rank != "bronze" || res.Division != 5 || res.SR != 10 {
		t.Fatalf("fresh member at %s d%d SR %d, want bronze d5 SR 10", res.Rank, res.Division, res.SR)
	}

	rec := record(t, svc, mem, "u1")
	if rec.LoginDays != 1 {
		t.Errorf("login days = %d, want 1", rec.LoginDays)
	}
	if rec.DailyPoints["2025-01-15"] != 10 {
		t.Errorf("daily bucket = %d, want 10", rec.DailyPoints["2025-01-15"])
	}

	events := mem.Events()
	if len(events) != 1 || events[0].Kind != "login" || events[0].Points != 10 {
		t.Fatalf("ledger = %+v, want one login event worth 10", events)
	}
}

func TestAwardPolicySale(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)

	res := mustAward(t, svc, "u1", points.Policy{Type: "house"})
	if res.PointsAwarded != 50 || res.SR != 50 {
		t.Fatalf("house sale awarded %d SR %d, want 50/50", res.PointsAwarded, res.SR)
	}

	rec := record(t, svc, mem, "u1")
	if rec.PoliciesSold["house"] != 1 {
		t.Errorf("house tally = %d, want 1", rec.PoliciesSold["house"])
	}
}

func TestAwardUnknownPolicyType(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)

	res := mustAward(t, svc, "u1", points.Policy{Type: "spaceship"})
	if res.PointsAwarded != 20 {
		t.Fatalf("unknown type awarded %d, want the other rate 20", res.PointsAwarded)
	}

	// The tally lands under "other" so the bucket matches the payout.
	rec := record(t, svc, mem, "u1")
	if rec.PoliciesSold["other"] != 1 || rec.PoliciesSold["spaceship"] != 0 {
		t.Errorf("tallies = %v, want other:1", rec.PoliciesSold)
	}
}

func TestAwardDailyBucketAccumulates(t *testing.T) {
	svc, mem, now := newTestEngine(t, jan15)

	mustAward(t, svc, "u1", points.Login{})
	mustAward(t, svc, "u1", points.DailyIntentions{})
	*now = now.AddDate(0, 0, 1)
	mustAward(t, svc, "u1", points.Login{})

	rec := record(t, svc, mem, "u1")
	if rec.DailyPoints["2025-01-15"] != 25 {
		t.Errorf("first day = %d, want 25", rec.DailyPoints["2025-01-15"])
	}
	if rec.DailyPoints["2025-01-16"] != 10 {
		t.Errorf("second day = %d, want 10", rec.DailyPoints["2025-01-16"])
	}
	if rec.LoginDays != 2 {
		t.Errorf("login days = %d, want 2", rec.LoginDays)
	}
}

// ---------------------------------------------------------------------------
// 2. Invalid actions
// ---------------------------------------------------------------------------

func TestAwardInvalid(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)
	ctx := context.Background()

	if _, err := svc.AwardPoints(ctx, "u1", nil); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("nil action: got %v, want ErrInvalidAction", err)
	}
	for _, pts := range []int{0, -5} {
		if _, err := svc.AwardPoints(ctx, "u1", points.Custom{Points: pts}); !errors.Is(err, ErrInvalidAction) {
			t.Errorf("custom %d: got %v, want ErrInvalidAction", pts, err)
		}
	}
}

// ---------------------------------------------------------------------------
// 3. Cheer cap
// ---------------------------------------------------------------------------

func TestCheerCapSilentZero(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)

	mustAward(t, svc, "u1", points.CheerSent{SentToday: 0})
	before := record(t, svc, mem, "u1")
	eventsBefore := len(mem.Events())

	res := mustAward(t, svc, "u1", points.CheerSent{SentToday: 10})
	if !res.Capped || res.PointsAwarded != 0 {
		t.Fatalf("capped cheer = %+v, want Capped with 0 points", res)
	}
	if res.NewTotal != before.SeasonPoints {
		t.Errorf("total moved to %d on a capped cheer", res.NewTotal)
	}

	after := record(t, svc, mem, "u1")
	if after.CheersSent != before.CheersSent {
		t.Errorf("cheer counter moved %d -> %d on a capped cheer", before.CheersSent, after.CheersSent)
	}
	if len(mem.Events()) != eventsBefore {
		t.Error("capped cheer should not reach the ledger")
	}
}

// ---------------------------------------------------------------------------
// 4. Goal bonuses
// ---------------------------------------------------------------------------

func TestGoalBonusStacking(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)
	ctx := context.Background()

	if err := svc.ApplyGoalBonus(ctx, "u1", BonusIndividual); err != nil {
		t.Fatal(err)
	}
	res := mustAward(t, svc, "u1", points.Login{})
	if res.PointsAwarded != 12 { // 10 * 1.25, truncated
		t.Fatalf("individual bonus: %d, want 12", res.PointsAwarded)
	}

	if err := svc.ApplyGoalBonus(ctx, "u1", BonusTeam); err != nil {
		t.Fatal(err)
	}
	res = mustAward(t, svc, "u1", points.Login{})
	if res.PointsAwarded != 18 { // 10 * 1.25 * 1.5 = 18.75, truncated
		t.Fatalf("stacked bonuses: %d, want 18", res.PointsAwarded)
	}
}

func TestGoalBonusInvalidKind(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)
	if err := svc.ApplyGoalBonus(context.Background(), "u1", "cosmic"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("got %v, want ErrInvalidAction", err)
	}
}

// ---------------------------------------------------------------------------
// 5. Lifetime XP mirror
// ---------------------------------------------------------------------------

func TestAwardMirrorsLifetimeXP(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)

	mustAward(t, svc, "u1", points.Policy{Type: "life"}) // 75 points
	life, err := mem.Lifetimes().Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if life == nil || life.LifetimeXP != 7 { // 75/10, truncated
		t.Fatalf("lifetime = %+v, want 7 XP", life)
	}

	// Sub-divisor awards mirror nothing.
	mustAward(t, svc, "u1", points.CheerReceived{ReceivedToday: 0}) // 3 points
	life, _ = mem.Lifetimes().Get(context.Background(), "u1")
	if life.LifetimeXP != 7 {
		t.Fatalf("lifetime XP = %d after a 3-point award, want still 7", life.LifetimeXP)
	}
}

// ---------------------------------------------------------------------------
// 6. Rank derivation and peak tracking
// ---------------------------------------------------------------------------

func TestAwardClimbsRanks(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)

	res := mustAward(t, svc, "u1", points.Custom{Points: 600})
	if res.Rank != "silver" || res.Division != 4 || res.SR != 600 {
		t.Fatalf("600 SR = %s d%d, want silver d4", res.Rank, res.Division)
	}

	rec := record(t, svc, mem, "u1")
	if rec.PeakRank != "silver" || rec.PeakDivision != 4 || rec.PeakTier != 2 {
		t.Errorf("peak = %s d%d tier %d, want silver d4 tier 2", rec.PeakRank, rec.PeakDivision, rec.PeakTier)
	}
	if rec.CurrentSR != rec.PlacementSR+int(rec.SeasonPoints) {
		t.Errorf("SR %d drifted from placement %d + points %d", rec.CurrentSR, rec.PlacementSR, rec.SeasonPoints)
	}
}

// ---------------------------------------------------------------------------
// 7. User progress view
// ---------------------------------------------------------------------------

func TestUserProgress(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)

	mustAward(t, svc, "u1", points.Custom{Points: 150})
	status, err := svc.UserProgress(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Record.CurrentSR != 150 {
		t.Fatalf("SR = %d, want 150", status.Record.CurrentSR)
	}
	if status.Next.Percent != 30 || status.Next.PointsNeeded != 350 {
		t.Errorf("next rank = %d%% / %d needed, want 30%% / 350", status.Next.Percent, status.Next.PointsNeeded)
	}
	if status.Season == nil || status.Season.ID != "2025-01" {
		t.Errorf("season = %+v, want 2025-01", status.Season)
	}
}

// ---------------------------------------------------------------------------
// 8. Leaderboard ordering
// ---------------------------------------------------------------------------

func TestLeaderboardOrderingAndTieBreak(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)

	mustAward(t, svc, "bea", points.Custom{Points: 100})
	mustAward(t, svc, "alf", points.Custom{Points: 100})
	mustAward(t, svc, "cyd", points.Custom{Points: 50})

	standings, err := svc.Leaderboard(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alf", "bea", "cyd"} // SR desc, then user id asc on the tie
	if len(standings) != len(want) {
		t.Fatalf("got %d standings, want %d", len(standings), len(want))
	}
	for i, id := range want {
		if standings[i].UserID != id || standings[i].Position != i+1 {
			t.Errorf("position %d = %s (#%d), want %s", i+1, standings[i].UserID, standings[i].Position, id)
		}
	}
}

func TestLeaderboardEmptySeason(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)
	standings, err := svc.Leaderboard(context.Background(), "2030-01", 10)
	if err != nil {
		t.Fatal(err)
	}
	if standings == nil || len(standings) != 0 {
		t.Fatalf("got %v, want an empty list", standings)
	}
}
