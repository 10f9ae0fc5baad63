package season

import "errors"

var (
	// ErrInvalidAction marks a caller bug: an action the scoring table
	// does not know. It is never returned for capped cheers, which award
	// zero but succeed.
	ErrInvalidAction = errors.New("invalid action")

	// ErrSeasonTransitioning means the current season is mid-migration.
	// Callers should back off and retry.
	ErrSeasonTransitioning = errors.New("season transition in progress")
)
