// seasonsim runs a synthetic month of sales activity against the engine
// on in-memory storage, rolls the season over, and prints the resulting
// rank distribution. Useful for tuning the scoring tables and the decay
// rules without touching a database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/memstore"
	"github.com/kristian206/agent-ascend-server/internal/points"
	"github.com/kristian206/agent-ascend-server/internal/season"
	"github.com/kristian206/agent-ascend-server/internal/store"
)

type archetype struct {
	name        string
	loginProb   float64
	ritualProb  float64 // intentions + wrap
	salesPerDay float64
	cheersSent  int
}

var archetypes = []archetype{
	{name: "grinder", loginProb: 0.98, ritualProb: 0.9, salesPerDay: 1.2, cheersSent: 4},
	{name: "closer", loginProb: 0.85, ritualProb: 0.4, salesPerDay: 2.5, cheersSent: 1},
	{name: "casual", loginProb: 0.6, ritualProb: 0.3, salesPerDay: 0.4, cheersSent: 2},
	{name: "lurker", loginProb: 0.3, ritualProb: 0.05, salesPerDay: 0.1, cheersSent: 0},
}

var policyTypes = []string{"house", "car", "life", "condo", "renters", "umbrella", "commercial", "pet"}

func main() {
	agents := flag.Int("agents", 200, "number of simulated members")
	months := flag.Int("months", 2, "number of months to simulate")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()

	mem := memstore.New()
	for i := 0; i < *agents; i++ {
		mem.AddMember(store.Member{
			ID:   fmt.Sprintf("agent-%04d", i),
			Name: fmt.Sprintf("Agent %04d", i),
		})
	}

	now := time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)
	svc := season.NewService(points.Default(), mem.Members(), mem.Seasons(), mem.Progress(), mem.Lifetimes(), mem.Ledger(), logger)
	svc.SetClock(func() time.Time { return now })

	// Fixed iteration order keeps a given seed reproducible.
	ids := make([]string, *agents)
	kinds := make(map[string]archetype, *agents)
	for i := 0; i < *agents; i++ {
		ids[i] = fmt.Sprintf("agent-%04d", i)
		kinds[ids[i]] = archetypes[rng.Intn(len(archetypes))]
	}

	for m := 0; m < *months; m++ {
		se, err := svc.Current(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "season:", err)
			os.Exit(1)
		}
		fmt.Printf("=== %s (%s, %d participants) ===\n", se.Name, se.ID, se.Participants)

		days := now.AddDate(0, 1, 0).Sub(now).Hours() / 24
		for d := 0; d < int(days); d++ {
			for _, id := range ids {
				a := kinds[id]
				if rng.Float64() > a.loginProb {
					continue
				}
				mustAward(ctx, svc, id, points.Login{})
				if rng.Float64() < a.ritualProb {
					mustAward(ctx, svc, id, points.DailyIntentions{})
					mustAward(ctx, svc, id, points.NightlyWrap{})
				}
				sales := int(a.salesPerDay)
				if rng.Float64() < a.salesPerDay-float64(sales) {
					sales++
				}
				for i := 0; i < sales; i++ {
					mustAward(ctx, svc, id, points.Policy{Type: policyTypes[rng.Intn(len(policyTypes))]})
				}
				for i := 0; i < a.cheersSent; i++ {
					mustAward(ctx, svc, id, points.CheerSent{SentToday: i})
				}
			}
			now = now.AddDate(0, 0, 1)
		}

		printStandings(ctx, svc, se.ID)
	}
}

func mustAward(ctx context.Context, svc *season.Service, id string, a points.Action) {
	if _, err := svc.AwardPoints(ctx, id, a); err != nil {
		fmt.Fprintln(os.Stderr, "award:", err)
		os.Exit(1)
	}
}

func printStandings(ctx context.Context, svc *season.Service, seasonID string) {
	standings, err := svc.Leaderboard(ctx, seasonID, 10)
	if err != nil {
		fmt.Fprintln(os.Stderr, "leaderboard:", err)
		os.Exit(1)
	}
	fmt.Println("top 10:")
	for _, st := range standings {
		fmt.Printf("  %2d. %-12s %s d%d  SR %-5d %d pts\n",
			st.Position, st.UserID, st.Rank, st.Division, st.SR, st.SeasonPoints)
	}

	full, err := svc.Leaderboard(ctx, seasonID, 1_000_000)
	if err != nil {
		fmt.Fprintln(os.Stderr, "leaderboard:", err)
		os.Exit(1)
	}
	dist := make(map[string]int)
	for _, st := range full {
		dist[st.Rank]++
	}
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("rank distribution:")
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, dist[name])
	}
}
