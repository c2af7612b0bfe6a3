package machiavelli

// PressMode controls how players may talk to each other.
type PressMode int

const (
	PressNormal PressMode = iota
	PressGunboat
)

// Configuration is the set of optional rules enabled for a game.
type Configuration struct {
	Finances        bool      `json:"finances"`
	Assassinations  bool      `json:"assassinations"`
	Excommunication bool      `json:"excommunication"`
	SpecialUnits    bool      `json:"special_units"`
	Lenders         bool      `json:"lenders"`
	UnbalancedLoans bool      `json:"unbalanced_loans"`
	Conquering      bool      `json:"conquering"`
	Famine          bool      `json:"famine"`
	Plague          bool      `json:"plague"`
	Storms          bool      `json:"storms"`
	Strategic       bool      `json:"strategic"`
	VariableHome    bool      `json:"variable_home"`
	Taxation        bool      `json:"taxation"`
	FogOfWar        bool      `json:"fow"`
	TradeRoutes     bool      `json:"trade_routes"`
	ReligiousWar    bool      `json:"religious_war"`
	Press           PressMode `json:"press"`
}

// Normalize switches on the rules other enabled rules depend on.
func (c Configuration) Normalize() Configuration {
	if c.Assassinations || c.SpecialUnits || c.Lenders || c.Taxation {
		c.Finances = true
	}
	if c.Taxation {
		c.Famine = true
	}
	if c.VariableHome {
		c.Conquering = false
	}
	if c.UnbalancedLoans {
		c.Lenders = true
		c.Finances = true
	}
	return c
}
