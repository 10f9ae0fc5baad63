package points

// Kind identifies a point-earning action.
type Kind string

const (
	KindLogin           Kind = "login"
	KindDailyIntentions Kind = "daily_intentions"
	KindNightlyWrap     Kind = "nightly_wrap"
	KindPolicy          Kind = "policy"
	KindCheerSent       Kind = "cheer_sent"
	KindCheerReceived   Kind = "cheer_received"
	KindCustom          Kind = "custom"
)

// Action is a sealed set of award variants. Each variant carries exactly
// the context its action needs, so callers cannot submit a policy sale
// without a type or a cheer without today's count.
type Action interface {
	Kind() Kind
	// Base returns the pre-bonus point value for this action.
	Base(cfg Config) int
}

// Login is the once-per-day app login award.
type Login struct{}

// DailyIntentions marks the morning intentions ritual as completed.
type DailyIntentions struct{}

// NightlyWrap marks the evening wrap-up as completed.
type NightlyWrap struct{}

// Policy records a policy sale. Unknown types pay out at the "other" rate.
type Policy struct {
	Type string
}

// CheerSent records sending a cheer to a teammate. SentToday is the
// sender's cheer count so far today; at or past the daily cap the award
// is zero.
type CheerSent struct {
	SentToday int
}

// CheerReceived mirrors CheerSent for the receiving side.
type CheerReceived struct {
	ReceivedToday int
}

// Custom is an ad-hoc award with an explicit point value. It increments
// no per-action counter.
type Custom struct {
	Points int
}

func (Login) Kind() Kind           { return KindLogin }
func (DailyIntentions) Kind() Kind { return KindDailyIntentions }
func (NightlyWrap) Kind() Kind     { return KindNightlyWrap }
func (Policy) Kind() Kind          { return KindPolicy }
func (CheerSent) Kind() Kind       { return KindCheerSent }
func (CheerReceived) Kind() Kind   { return KindCheerReceived }
func (Custom) Kind() Kind          { return KindCustom }

func (Login) Base(cfg Config) int           { return cfg.Login }
func (DailyIntentions) Base(cfg Config) int { return cfg.DailyIntentions }
func (NightlyWrap) Base(cfg Config) int     { return cfg.NightlyWrap }
func (a Policy) Base(cfg Config) int        { return cfg.PolicyPoints(a.Type) }
func (CheerSent) Base(cfg Config) int       { return cfg.CheerSent }
func (CheerReceived) Base(cfg Config) int   { return cfg.CheerReceived }
func (a Custom) Base(cfg Config) int        { return a.Points }

// CapExceeded reports whether a cheer action is already at the daily cap.
// Non-cheer actions are never capped.
func CapExceeded(a Action, cfg Config) bool {
	switch v := a.(type) {
	case CheerSent:
		return v.SentToday >= cfg.MaxCheersPerDay
	case CheerReceived:
		return v.ReceivedToday >= cfg.MaxCheersPerDay
	default:
		return false
	}
}

// FromWire rebuilds an Action from its over-the-wire representation.
// Unknown kinds return false; the caller treats that as an invalid action.
func FromWire(kind Kind, policyType string, countToday, amount int) (Action, bool) {
	switch kind {
	case KindLogin:
		return Login{}, true
	case KindDailyIntentions:
		return DailyIntentions{}, true
	case KindNightlyWrap:
		return NightlyWrap{}, true
	case KindPolicy:
		return Policy{Type: policyType}, true
	case KindCheerSent:
		return CheerSent{SentToday: countToday}, true
	case KindCheerReceived:
		return CheerReceived{ReceivedToday: countToday}, true
	case KindCustom:
		return Custom{Points: amount}, true
	default:
		return nil, false
	}
}
