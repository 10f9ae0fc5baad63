package points

import (
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// 1. Default scoring table
// ---------------------------------------------------------------------------

func TestDefaultTable(t *testing.T) {
	cfg := Default()

	tests := []struct {
		action Action
		want   int
	}{
		{Login{}, 10},
		{DailyIntentions{}, 15},
		{NightlyWrap{}, 15},
		{Policy{Type: "house"}, 50},
		{Policy{Type: "life"}, 75},
		{Policy{Type: "renters"}, 25},
		{CheerSent{}, 5},
		{CheerReceived{}, 3},
		{Custom{Points: 42}, 42},
	}
	for _, tt := range tests {
		if got := tt.action.Base(cfg); got != tt.want {
			t.Errorf("%s base = %d, want %d", tt.action.Kind(), got, tt.want)
		}
	}

	if cfg.MaxCheersPerDay != 10 {
		t.Errorf("MaxCheersPerDay = %d, want 10", cfg.MaxCheersPerDay)
	}
	if cfg.IndividualGoalBonus != 0.25 || cfg.TeamGoalBonus != 0.50 {
		t.Errorf("goal bonuses = %v/%v, want 0.25/0.50", cfg.IndividualGoalBonus, cfg.TeamGoalBonus)
	}
}

func TestPolicyFallback(t *testing.T) {
	cfg := Default()
	for _, unknown := range []string{"pet", "boat", ""} {
		if got := cfg.PolicyPoints(unknown); got != cfg.Policies["other"] {
			t.Errorf("PolicyPoints(%q) = %d, want the other rate %d", unknown, got, cfg.Policies["other"])
		}
	}
}

// ---------------------------------------------------------------------------
// 2. Cheer cap
// ---------------------------------------------------------------------------

func TestCapExceeded(t *testing.T) {
	cfg := Default()

	tests := []struct {
		action Action
		want   bool
	}{
		{CheerSent{SentToday: 0}, false},
		{CheerSent{SentToday: 9}, false},
		{CheerSent{SentToday: 10}, true},
		{CheerSent{SentToday: 50}, true},
		{CheerReceived{ReceivedToday: 9}, false},
		{CheerReceived{ReceivedToday: 10}, true},
		{Login{}, false},
		{Policy{Type: "house"}, false},
		{Custom{Points: 99999}, false},
	}
	for _, tt := range tests {
		if got := CapExceeded(tt.action, cfg); got != tt.want {
			t.Errorf("CapExceeded(%+v) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// 3. Wire decoding
// ---------------------------------------------------------------------------

func TestFromWire(t *testing.T) {
	a, ok := FromWire(KindPolicy, "car", 0, 0)
	if !ok {
		t.Fatal("policy should decode")
	}
	if p, isPolicy := a.(Policy); !isPolicy || p.Type != "car" {
		t.Fatalf("decoded %+v, want Policy{car}", a)
	}

	a, ok = FromWire(KindCheerSent, "", 7, 0)
	if !ok {
		t.Fatal("cheer_sent should decode")
	}
	if c, isCheer := a.(CheerSent); !isCheer || c.SentToday != 7 {
		t.Fatalf("decoded %+v, want CheerSent{7}", a)
	}

	a, ok = FromWire(KindCustom, "", 0, 25)
	if !ok {
		t.Fatal("custom should decode")
	}
	if c, isCustom := a.(Custom); !isCustom || c.Points != 25 {
		t.Fatalf("decoded %+v, want Custom{25}", a)
	}

	if _, ok := FromWire("teleport", "", 0, 0); ok {
		t.Fatal("unknown kind should not decode")
	}
}

// ---------------------------------------------------------------------------
// 4. TOML overrides
// ---------------------------------------------------------------------------

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.toml")
	data := `
login = 20
max_cheers_per_day = 3

[policies]
house = 100
other = 10
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Login != 20 {
		t.Errorf("login override = %d, want 20", cfg.Login)
	}
	if cfg.MaxCheersPerDay != 3 {
		t.Errorf("cap override = %d, want 3", cfg.MaxCheersPerDay)
	}
	if cfg.Policies["house"] != 100 {
		t.Errorf("house override = %d, want 100", cfg.Policies["house"])
	}
	// Untouched fields keep their defaults.
	if cfg.NightlyWrap != 15 {
		t.Errorf("nightly_wrap = %d, want default 15", cfg.NightlyWrap)
	}
}

func TestLoadRejectsZeroOtherRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.toml")
	data := `
[policies]
house = 100
other = 0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("zeroing the other rate should be rejected")
	}
}

func TestLoadMergesPolicyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.toml")
	data := `
[policies]
house = 100
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policies["house"] != 100 {
		t.Errorf("house = %d, want 100", cfg.Policies["house"])
	}
	// Types absent from the override keep their default rates.
	if cfg.Policies["car"] != 40 || cfg.Policies["other"] != 20 {
		t.Errorf("default rates lost: car=%d other=%d", cfg.Policies["car"], cfg.Policies["other"])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("missing file should error")
	}
}
