package season

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/points"
	"github.com/kristian206/agent-ascend-server/internal/store"
)

// ---------------------------------------------------------------------------
// 1. Season creation
// ---------------------------------------------------------------------------

func TestCurrentCreatesMonthSeason(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)
	mem.AddMember(store.Member{ID: "u1", Name: "Uma"})
	mem.AddMember(store.Member{ID: "u2", Name: "Vic"})
	ctx := context.Background()

	se, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if se.ID != "2025-01" || se.SeasonNumber != 1 {
		t.Fatalf("season = %s #%d, want 2025-01 #1", se.ID, se.SeasonNumber)
	}
	if !se.StartDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want Jan 1", se.StartDate)
	}
	if !se.EndDate.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want Feb 1", se.EndDate)
	}
	if se.Participants != 2 {
		t.Errorf("participants = %d, want 2", se.Participants)
	}

	// The roster got placement records.
	for _, id := range []string{"u1", "u2"} {
		rec, err := mem.Progress().Get(ctx, id, se.ID)
		if err != nil || rec == nil {
			t.Fatalf("no seeded record for %s: %v", id, err)
		}
		if rec.CurrentRank != "bronze" || rec.CurrentDivision != 5 {
			t.Errorf("%s seeded at %s d%d, want bronze d5", id, rec.CurrentRank, rec.CurrentDivision)
		}
	}

	// A second call returns the same season.
	again, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != se.ID || again.SeasonNumber != se.SeasonNumber {
		t.Fatalf("second call returned %s #%d", again.ID, again.SeasonNumber)
	}
}

// ---------------------------------------------------------------------------
// 2. Month rollover: settlement and soft-reset placement
// ---------------------------------------------------------------------------

func TestMonthRollover(t *testing.T) {
	svc, mem, now := newTestEngine(t, jan15)
	mem.AddMember(store.Member{ID: "u1", Name: "Uma"})
	ctx := context.Background()

	// Climb to gold division 4 during January.
	mustAward(t, svc, "u1", points.Custom{Points: 1100})

	*now = time.Date(2025, time.February, 2, 9, 0, 0, 0, time.UTC)
	se, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if se.ID != "2025-02" || se.SeasonNumber != 2 {
		t.Fatalf("season = %s #%d, want 2025-02 #2", se.ID, se.SeasonNumber)
	}

	jan, err := mem.Seasons().Get(ctx, "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	if jan.Status != store.SeasonEnded || jan.ProcessedAt == nil {
		t.Fatalf("january = %s processed=%v, want ended and stamped", jan.Status, jan.ProcessedAt)
	}

	// Closing rank stamped for the next placement.
	m, _ := mem.Members().Get(ctx, "u1")
	if m.LastSeasonRank == nil || *m.LastSeasonRank != "gold" || *m.LastSeasonDivision != 4 {
		t.Fatalf("last season stamp = %+v, want gold d4", m)
	}

	// XP: 110 mirrored during the award, 110 more at settlement.
	life, _ := mem.Lifetimes().Get(ctx, "u1")
	if life.LifetimeXP != 220 {
		t.Errorf("lifetime XP = %d, want 220", life.LifetimeXP)
	}
	if life.TotalSeasons != 1 {
		t.Errorf("seasons = %d, want 1", life.TotalSeasons)
	}

	// Soft reset: gold keeps three divisions, so gold d4 drops two steps
	// (gold d5, then silver d1), with gold's starting bonus credited on
	// top of the division floor.
	rec, err := mem.Progress().Get(ctx, "u1", "2025-02")
	if err != nil || rec == nil {
		t.Fatalf("no february record: %v", err)
	}
	if rec.PlacementRank != "silver" || rec.PlacementDivision != 1 {
		t.Errorf("placement = %s d%d, want silver d1", rec.PlacementRank, rec.PlacementDivision)
	}
	if rec.PlacementSR != 900 || rec.SeasonPoints != 100 {
		t.Errorf("placement SR %d points %d, want 900/100", rec.PlacementSR, rec.SeasonPoints)
	}
	if rec.CurrentSR != 1000 || rec.CurrentRank != "gold" || rec.CurrentDivision != 5 {
		t.Errorf("entry = %s d%d SR %d, want gold d5 SR 1000", rec.CurrentRank, rec.CurrentDivision, rec.CurrentSR)
	}
}

// ---------------------------------------------------------------------------
// 3. Ending a season early opens a revision
// ---------------------------------------------------------------------------

func TestEarlyEndOpensRevision(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)
	ctx := context.Background()

	first, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.EndSeason(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	next, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != "2025-01-r2" {
		t.Fatalf("revision id = %s, want 2025-01-r2", next.ID)
	}
	if next.SeasonNumber <= first.SeasonNumber {
		t.Fatalf("revision number %d should exceed %d", next.SeasonNumber, first.SeasonNumber)
	}
	if next.Status != store.SeasonActive {
		t.Fatalf("revision status = %s, want active", next.Status)
	}
}

// ---------------------------------------------------------------------------
// 4. Settlement failure leaves the season retryable
// ---------------------------------------------------------------------------

func TestFinalizeFailureKeepsSeasonActive(t *testing.T) {
	svc, mem, now := newTestEngine(t, jan15)
	mem.AddMember(store.Member{ID: "u1", Name: "Uma"})
	ctx := context.Background()

	mustAward(t, svc, "u1", points.Custom{Points: 500})

	mem.FailFinalize = true
	*now = time.Date(2025, time.February, 2, 9, 0, 0, 0, time.UTC)
	if _, err := svc.Current(ctx); err == nil {
		t.Fatal("expected the settlement failure to surface")
	}

	jan, _ := mem.Seasons().Get(ctx, "2025-01")
	if jan.Status != store.SeasonActive {
		t.Fatalf("january = %s after a failed settlement, want active for retry", jan.Status)
	}
	life, _ := mem.Lifetimes().Get(ctx, "u1")
	if life.TotalSeasons != 0 {
		t.Fatalf("settlement credited despite failing: %+v", life)
	}

	// The retry heals.
	se, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if se.ID != "2025-02" {
		t.Fatalf("retry gave %s, want 2025-02", se.ID)
	}
	jan, _ = mem.Seasons().Get(ctx, "2025-01")
	if jan.Status != store.SeasonEnded {
		t.Fatalf("january = %s after retry, want ended", jan.Status)
	}
}

// ---------------------------------------------------------------------------
// 5. Settlement is idempotent
// ---------------------------------------------------------------------------

func TestEndSeasonIdempotent(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)
	mem.AddMember(store.Member{ID: "u1", Name: "Uma"})
	ctx := context.Background()

	mustAward(t, svc, "u1", points.Custom{Points: 400})
	if err := svc.EndSeason(ctx, "2025-01"); err != nil {
		t.Fatal(err)
	}
	life, _ := mem.Lifetimes().Get(ctx, "u1")
	xpAfterFirst := life.LifetimeXP

	if err := svc.EndSeason(ctx, "2025-01"); err != nil {
		t.Fatal(err)
	}
	life, _ = mem.Lifetimes().Get(ctx, "u1")
	if life.LifetimeXP != xpAfterFirst {
		t.Fatalf("second settlement moved XP %d -> %d", xpAfterFirst, life.LifetimeXP)
	}
	if life.TotalSeasons != 1 {
		t.Fatalf("seasons = %d, want 1", life.TotalSeasons)
	}
}

func TestEndSeasonUnknownID(t *testing.T) {
	svc, _, _ := newTestEngine(t, jan15)
	if err := svc.EndSeason(context.Background(), "1999-12"); err != nil {
		t.Fatalf("ending a nonexistent season should be a no-op, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// 6. A stuck transition surfaces a retryable error
// ---------------------------------------------------------------------------

func TestCurrentDuringStuckTransition(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)
	ctx := context.Background()

	if _, err := svc.Current(ctx); err != nil {
		t.Fatal(err)
	}
	// Another process claims the transition and never finishes.
	claimed, err := mem.Seasons().ClaimTransition(ctx, "2025-01")
	if err != nil || !claimed {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	if _, err := svc.Current(ctx); !errors.Is(err, ErrSeasonTransitioning) {
		t.Fatalf("got %v, want ErrSeasonTransitioning", err)
	}
}

func TestAwardDuringStuckTransition(t *testing.T) {
	svc, mem, _ := newTestEngine(t, jan15)
	ctx := context.Background()

	if _, err := svc.Current(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Seasons().ClaimTransition(ctx, "2025-01"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.AwardPoints(ctx, "u1", points.Login{})
	if !errors.Is(err, ErrSeasonTransitioning) {
		t.Fatalf("got %v, want ErrSeasonTransitioning", err)
	}
}

// ---------------------------------------------------------------------------
// 7. Deterministic ids
// ---------------------------------------------------------------------------

func TestSeasonID(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-01"},
		{time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), "2025-12"},
		// New York is still in the previous month at this instant.
		{time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC), "2025-03"},
	}
	for _, tt := range tests {
		if got := SeasonID(tt.at); got != tt.want {
			t.Errorf("SeasonID(%v) = %s, want %s", tt.at, got, tt.want)
		}
	}

	loc := time.FixedZone("UTC+13", 13*3600)
	if got := SeasonID(time.Date(2025, 4, 1, 1, 0, 0, 0, loc)); !strings.HasPrefix(got, "2025-03") {
		t.Errorf("ids derive from UTC: got %s, want 2025-03", got)
	}
}
