package rank

// Tier describes one competitive rank band. Bands are contiguous, 500 SR
// wide, and split into five 100-SR divisions. Division 1 is the highest
// division within a tier, division 5 the lowest.
type Tier struct {
	Name          string
	Ordinal       int // 1 = lowest
	SRMin         int // inclusive
	SRMax         int // exclusive
	StartingBonus int // season points credited at next-season placement
	KeepDivisions int // divisions preserved across a soft reset
}

const (
	BandWidth     = 500
	DivisionWidth = 100
	DivisionsPer  = 5
)

// Tiers is the canonical rank table, ordered ascending by ordinal.
var Tiers = []Tier{
	{Name: "bronze", Ordinal: 1, SRMin: 0, SRMax: 500, StartingBonus: 0, KeepDivisions: 5},
	{Name: "silver", Ordinal: 2, SRMin: 500, SRMax: 1000, StartingBonus: 50, KeepDivisions: 4},
	{Name: "gold", Ordinal: 3, SRMin: 1000, SRMax: 1500, StartingBonus: 100, KeepDivisions: 3},
	{Name: "platinum", Ordinal: 4, SRMin: 1500, SRMax: 2000, StartingBonus: 150, KeepDivisions: 2},
	{Name: "diamond", Ordinal: 5, SRMin: 2000, SRMax: 2500, StartingBonus: 200, KeepDivisions: 2},
	{Name: "master", Ordinal: 6, SRMin: 2500, SRMax: 3000, StartingBonus: 250, KeepDivisions: 1},
	{Name: "grandmaster", Ordinal: 7, SRMin: 3000, SRMax: 3500, StartingBonus: 300, KeepDivisions: 1},
}

// ByName returns the tier with the given name, or false if unknown.
func ByName(name string) (Tier, bool) {
	for _, t := range Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Rank is a concrete (tier, division) position on the ladder.
type Rank struct {
	Name     string
	Tier     int
	Division int // 1 = highest within tier
}

// FromSR maps a skill rating onto the rank table. SR below the lowest band
// clamps to bronze division 5; SR at or beyond the top band clamps to the
// top rank, division 1.
func FromSR(sr int) Rank {
	lowest := Tiers[0]
	if sr < lowest.SRMin {
		return Rank{Name: lowest.Name, Tier: lowest.Ordinal, Division: DivisionsPer}
	}
	top := Tiers[len(Tiers)-1]
	if sr >= top.SRMax {
		return Rank{Name: top.Name, Tier: top.Ordinal, Division: 1}
	}
	for _, t := range Tiers {
		if sr >= t.SRMin && sr < t.SRMax {
			div := DivisionsPer - (sr-t.SRMin)/DivisionWidth
			if div < 1 {
				div = 1
			}
			if div > DivisionsPer {
				div = DivisionsPer
			}
			return Rank{Name: t.Name, Tier: t.Ordinal, Division: div}
		}
	}
	// Bands are contiguous, so this is unreachable.
	return Rank{Name: lowest.Name, Tier: lowest.Ordinal, Division: DivisionsPer}
}

// SRFromPoints converts cumulative season points into skill rating. The
// curve is the identity: one point of season score is one point of SR.
// It is the exact inverse basis of FromSR and must stay monotonic.
func SRFromPoints(points int) int {
	if points < 0 {
		return 0
	}
	return points
}

// Progress reports how far through the current rank band an SR value is.
type Progress struct {
	Percent      int // 0..100 through the current tier band
	PointsNeeded int // SR distance to the next tier; 0 at the top rank
}

// ProgressToNext returns band progress for the given SR. At the maximum
// rank progress saturates at 100.
func ProgressToNext(sr int) Progress {
	top := Tiers[len(Tiers)-1]
	if sr >= top.SRMax {
		return Progress{Percent: 100, PointsNeeded: 0}
	}
	if sr < 0 {
		sr = 0
	}
	r := FromSR(sr)
	for _, t := range Tiers {
		if t.Ordinal != r.Tier {
			continue
		}
		pct := (sr - t.SRMin) * 100 / BandWidth
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return Progress{Percent: pct, PointsNeeded: t.SRMax - sr}
	}
	return Progress{}
}
