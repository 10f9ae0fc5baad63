package rank

// divisionIndex flattens a (tier, division) pair onto a single monotonic
// scale: 0 is bronze division 5, each step up is one division, five per
// tier.
func divisionIndex(tier, division int) int {
	if tier < 1 {
		tier = 1
	}
	if division < 1 {
		division = 1
	}
	if division > DivisionsPer {
		division = DivisionsPer
	}
	return (tier-1)*DivisionsPer + (DivisionsPer - division)
}

func fromDivisionIndex(idx int) Rank {
	if idx < 0 {
		idx = 0
	}
	maxIdx := len(Tiers)*DivisionsPer - 1
	if idx > maxIdx {
		idx = maxIdx
	}
	t := Tiers[idx/DivisionsPer]
	return Rank{
		Name:     t.Name,
		Tier:     t.Ordinal,
		Division: DivisionsPer - idx%DivisionsPer,
	}
}

// Decay applies the soft reset to a prior-season rank: the holder keeps
// KeepDivisions of the tier's five divisions and drops the rest, clamped
// at bronze division 5. The returned index never exceeds the input's.
func Decay(prior Rank) Rank {
	t, ok := ByName(prior.Name)
	if !ok {
		return Rank{Name: Tiers[0].Name, Tier: 1, Division: DivisionsPer}
	}
	steps := DivisionsPer - t.KeepDivisions
	idx := divisionIndex(t.Ordinal, prior.Division) - steps
	return fromDivisionIndex(idx)
}

// Placement is where a member starts a fresh season.
type Placement struct {
	Rank           Rank
	PlacementSR    int // SR floor of the placement division
	StartingPoints int // season points credited for the prior rank held
}

// PlaceForNewSeason computes a member's soft-reset placement from the rank
// they ended the previous season with. priorName == "" means no history:
// bronze, division 5, zero points.
func PlaceForNewSeason(priorName string, priorDivision int) Placement {
	if priorName == "" {
		return Placement{
			Rank: Rank{Name: Tiers[0].Name, Tier: 1, Division: DivisionsPer},
		}
	}
	prior, ok := ByName(priorName)
	if !ok {
		return Placement{
			Rank: Rank{Name: Tiers[0].Name, Tier: 1, Division: DivisionsPer},
		}
	}
	placed := Decay(Rank{Name: priorName, Tier: prior.Ordinal, Division: priorDivision})
	return Placement{
		Rank:           placed,
		PlacementSR:    SRFloor(placed),
		StartingPoints: prior.StartingBonus,
	}
}

// SRFloor returns the lowest SR inside the given rank's division.
func SRFloor(r Rank) int {
	t, ok := ByName(r.Name)
	if !ok {
		return 0
	}
	div := r.Division
	if div < 1 {
		div = 1
	}
	if div > DivisionsPer {
		div = DivisionsPer
	}
	return t.SRMin + (DivisionsPer-div)*DivisionWidth
}
