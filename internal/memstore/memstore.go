// Package memstore is an in-memory implementation of the season engine's
// storage interfaces. The simulator runs whole seasons against it, and the
// engine tests use it in place of PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kristian206/agent-ascend-server/internal/store"
)

type Event struct {
	UserID     string
	SeasonID   string
	Kind       string
	Points     int
	PolicyType *string
}

// Store holds all collections behind one lock. Repo views over it satisfy
// the engine's storage interfaces.
type Store struct {
	mu       sync.Mutex
	members  map[string]*store.Member
	seasons  map[string]*store.Season
	progress map[string]*store.Progress
	lifetime map[string]*store.Lifetime
	events   []Event

	// FailFinalize makes the next FinalizeSeason call fail, for exercising
	// the retry path.
	FailFinalize bool
}

func New() *Store {
	return &Store{
		members:  make(map[string]*store.Member),
		seasons:  make(map[string]*store.Season),
		progress: make(map[string]*store.Progress),
		lifetime: make(map[string]*store.Lifetime),
	}
}

func (s *Store) Members() *Members     { return &Members{s} }
func (s *Store) Seasons() *Seasons     { return &Seasons{s} }
func (s *Store) Progress() *Progress   { return &Progress{s} }
func (s *Store) Lifetimes() *Lifetimes { return &Lifetimes{s} }
func (s *Store) Ledger() *Ledger       { return &Ledger{s} }

func (s *Store) AddMember(m store.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := m
	s.members[m.ID] = &cp
}

func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// --- members ---

type Members struct{ s *Store }

func (v *Members) Get(ctx context.Context, id string) (*store.Member, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	m, ok := v.s.members[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (v *Members) List(ctx context.Context) ([]store.Member, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	ids := make([]string, 0, len(v.s.members))
	for id := range v.s.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]store.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, *v.s.members[id])
	}
	return out, nil
}

// --- seasons ---

type Seasons struct{ s *Store }

func (v *Seasons) Get(ctx context.Context, id string) (*store.Season, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	se, ok := v.s.seasons[id]
	if !ok {
		return nil, nil
	}
	cp := *se
	return &cp, nil
}

func (v *Seasons) Create(ctx context.Context, se *store.Season) (*store.Season, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if existing, ok := v.s.seasons[se.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *se
	cp.Status = store.SeasonActive
	cp.CreatedAt = time.Now()
	v.s.seasons[se.ID] = &cp
	out := cp
	return &out, nil
}

func (v *Seasons) MaxSeasonNumber(ctx context.Context) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	max := 0
	for _, se := range v.s.seasons {
		if se.SeasonNumber > max {
			max = se.SeasonNumber
		}
	}
	return max, nil
}

func (v *Seasons) SetParticipants(ctx context.Context, id string, n int) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if se, ok := v.s.seasons[id]; ok {
		se.Participants = n
	}
	return nil
}

func (v *Seasons) ActiveExpired(ctx context.Context, now time.Time) ([]store.Season, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []store.Season
	for _, se := range v.s.seasons {
		if se.Status == store.SeasonActive && !se.EndDate.After(now) {
			out = append(out, *se)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeasonNumber < out[j].SeasonNumber })
	return out, nil
}

func (v *Seasons) ClaimTransition(ctx context.Context, id string) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	se, ok := v.s.seasons[id]
	if !ok || se.Status != store.SeasonActive {
		return false, nil
	}
	se.Status = store.SeasonEnding
	return true, nil
}

func (v *Seasons) ReleaseTransition(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if se, ok := v.s.seasons[id]; ok && se.Status == store.SeasonEnding {
		se.Status = store.SeasonActive
	}
	return nil
}

func (v *Seasons) FinalizeSeason(ctx context.Context, id string, rollovers []store.Rollover, xpPerLevel int64, processedAt time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.FailFinalize {
		v.s.FailFinalize = false
		return fmt.Errorf("injected finalize failure")
	}
	se, ok := v.s.seasons[id]
	if !ok || se.Status != store.SeasonEnding {
		return fmt.Errorf("season %s not in ending state", id)
	}
	for _, r := range rollovers {
		l, ok := v.s.lifetime[r.UserID]
		if !ok {
			l = &store.Lifetime{UserID: r.UserID, Level: 1}
			v.s.lifetime[r.UserID] = l
		}
		already := false
		for _, sid := range l.SeasonsParticipated {
			if sid == id {
				already = true
				break
			}
		}
		if !already {
			l.LifetimeXP += r.XPDelta
			l.Level = int(l.LifetimeXP/xpPerLevel) + 1
			l.TotalSeasons++
			l.SeasonsParticipated = append(l.SeasonsParticipated, id)
		}

		if m, ok := v.s.members[r.UserID]; ok {
			rank, div, pts := r.Rank, r.Division, r.SeasonPoints
			m.LastSeasonRank = &rank
			m.LastSeasonDivision = &div
			m.LastSeasonPoints = &pts
		}
	}
	se.Status = store.SeasonEnded
	t := processedAt
	se.ProcessedAt = &t
	return nil
}

// --- progress ---

type Progress struct{ s *Store }

func (v *Progress) Get(ctx context.Context, userID, seasonID string) (*store.Progress, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.progress[store.ProgressKey(userID, seasonID)]
	if !ok {
		return nil, nil
	}
	return copyProgress(p), nil
}

func (v *Progress) Create(ctx context.Context, p *store.Progress) (*store.Progress, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.createLocked(p)
}

func (v *Progress) createLocked(p *store.Progress) (*store.Progress, error) {
	key := store.ProgressKey(p.UserID, p.SeasonID)
	if existing, ok := v.s.progress[key]; ok {
		return copyProgress(existing), nil
	}
	cp := *p
	cp.ID = key
	cp.DailyPoints = map[string]int64{}
	cp.PoliciesSold = map[string]int64{}
	cp.CreatedAt = time.Now()
	v.s.progress[key] = &cp
	return copyProgress(&cp), nil
}

func (v *Progress) CreateBatch(ctx context.Context, records []store.Progress) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for i := range records {
		if _, err := v.createLocked(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *Progress) ApplyAward(ctx context.Context, userID, seasonID string, d store.AwardDelta, rankFor func(seasonPoints int64, placementSR int) store.RankState) (*store.Progress, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := store.ProgressKey(userID, seasonID)
	p, ok := v.s.progress[key]
	if !ok {
		return nil, fmt.Errorf("no season record %s", key)
	}

	p.SeasonPoints += d.Points
	p.DailyPoints[d.Day] += d.Points
	switch d.Counter {
	case store.CounterLogins:
		p.LoginDays++
	case store.CounterIntentions:
		p.IntentionsCompleted++
	case store.CounterWraps:
		p.WrapsCompleted++
	case store.CounterPolicies:
		p.PoliciesSold[d.PolicyType]++
	case store.CounterCheersSent:
		p.CheersSent++
	case store.CounterCheersRecv:
		p.CheersReceived++
	}

	rs := rankFor(p.SeasonPoints, p.PlacementSR)
	p.CurrentSR = rs.SR
	p.CurrentRank = rs.Rank
	p.CurrentDivision = rs.Division
	if rs.Tier > p.PeakTier {
		p.PeakTier = rs.Tier
		p.PeakRank = rs.Rank
		p.PeakDivision = rs.Division
	}
	return copyProgress(p), nil
}

func (v *Progress) SetGoalBonus(ctx context.Context, userID, seasonID string, team bool) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.progress[store.ProgressKey(userID, seasonID)]
	if !ok {
		return fmt.Errorf("no season record %s", store.ProgressKey(userID, seasonID))
	}
	if team {
		p.TeamGoalBonus = true
	} else {
		p.IndividualGoalBonus = true
	}
	return nil
}

func (v *Progress) ListBySeason(ctx context.Context, seasonID string, limit int) ([]store.Standing, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var recs []*store.Progress
	for _, p := range v.s.progress {
		if p.SeasonID == seasonID {
			recs = append(recs, p)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.CurrentSR != b.CurrentSR {
			return a.CurrentSR > b.CurrentSR
		}
		if a.SeasonPoints != b.SeasonPoints {
			return a.SeasonPoints > b.SeasonPoints
		}
		return a.UserID < b.UserID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]store.Standing, 0, len(recs))
	for i, p := range recs {
		st := store.Standing{
			Position:     i + 1,
			UserID:       p.UserID,
			Rank:         p.CurrentRank,
			Division:     p.CurrentDivision,
			SR:           p.CurrentSR,
			SeasonPoints: p.SeasonPoints,
		}
		if m, ok := v.s.members[p.UserID]; ok {
			st.Name = m.Name
			st.AvatarURL = m.AvatarURL
			st.TeamID = m.TeamID
		}
		out = append(out, st)
	}
	return out, nil
}

func (v *Progress) ListAll(ctx context.Context, seasonID string) ([]store.Progress, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []store.Progress
	for _, p := range v.s.progress {
		if p.SeasonID == seasonID {
			out = append(out, *copyProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// --- lifetime ---

type Lifetimes struct{ s *Store }

func (v *Lifetimes) Get(ctx context.Context, userID string) (*store.Lifetime, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	l, ok := v.s.lifetime[userID]
	if !ok {
		return nil, nil
	}
	cp := *l
	cp.SeasonsParticipated = append([]string(nil), l.SeasonsParticipated...)
	return &cp, nil
}

func (v *Lifetimes) AddXP(ctx context.Context, userID string, delta, xpPerLevel int64) (*store.Lifetime, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	l, ok := v.s.lifetime[userID]
	if !ok {
		l = &store.Lifetime{UserID: userID, Level: 1}
		v.s.lifetime[userID] = l
	}
	l.LifetimeXP += delta
	l.Level = int(l.LifetimeXP/xpPerLevel) + 1
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

// --- ledger ---

type Ledger struct{ s *Store }

func (v *Ledger) Record(ctx context.Context, userID, seasonID, kind string, pts int, policyType *string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.events = append(v.s.events, Event{UserID: userID, SeasonID: seasonID, Kind: kind, Points: pts, PolicyType: policyType})
	return nil
}

func copyProgress(p *store.Progress) *store.Progress {
	cp := *p
	cp.DailyPoints = make(map[string]int64, len(p.DailyPoints))
	for k, v := range p.DailyPoints {
		cp.DailyPoints[k] = v
	}
	cp.PoliciesSold = make(map[string]int64, len(p.PoliciesSold))
	for k, v := range p.PoliciesSold {
		cp.PoliciesSold[k] = v
	}
	return &cp
}
