package points

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the scoring tables: base values per action, policy payouts
// by type, cheer values and the daily cheer cap, and goal-bonus fractions.
type Config struct {
	Login           int            `toml:"login"`
	DailyIntentions int            `toml:"daily_intentions"`
	NightlyWrap     int            `toml:"nightly_wrap"`
	Policies        map[string]int `toml:"policies"`
	CheerSent       int            `toml:"cheer_sent"`
	CheerReceived   int            `toml:"cheer_received"`
	MaxCheersPerDay int            `toml:"max_cheers_per_day"`

	// Goal bonuses are fractions of the base award, stacked
	// multiplicatively when both flags are set.
	IndividualGoalBonus float64 `toml:"individual_goal_bonus"`
	TeamGoalBonus       float64 `toml:"team_goal_bonus"`
}

// Default returns the built-in scoring table.
func Default() Config {
	return Config{
		Login:           10,
		DailyIntentions: 15,
		NightlyWrap:     15,
		Policies: map[string]int{
			"house":      50,
			"car":        40,
			"life":       75,
			"condo":      50,
			"renters":    25,
			"umbrella":   30,
			"commercial": 60,
			"other":      20,
		},
		CheerSent:           5,
		CheerReceived:       3,
		MaxCheersPerDay:     10,
		IndividualGoalBonus: 0.25,
		TeamGoalBonus:       0.50,
	}
}

// PolicyPoints returns the payout for a policy type, falling back to the
// "other" value for unknown types.
func (c Config) PolicyPoints(policyType string) int {
	if v, ok := c.Policies[policyType]; ok {
		return v
	}
	return c.Policies["other"]
}

// Load reads a TOML override file on top of the defaults. Fields absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load points config %s: %w", path, err)
	}
	if cfg.Policies["other"] == 0 {
		return Config{}, fmt.Errorf("points config %s: policies.other must be set", path)
	}
	return cfg, nil
}
